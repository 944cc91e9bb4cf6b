package proxy

import (
	"bytes"
	"testing"

	"github.com/tether-iot/tether-go/pkg/schema"
)

func TestValueConstructors(t *testing.T) {
	t.Run("bool", func(t *testing.T) {
		v := BoolValue(true)
		if v.Kind() != schema.KindBool || !v.Bool() {
			t.Fatalf("unexpected value %v", v)
		}
		if v.ByteLen() != 1 {
			t.Errorf("expected length 1, got %d", v.ByteLen())
		}
	})

	t.Run("int32", func(t *testing.T) {
		v := Int32Value(-42)
		if v.Kind() != schema.KindInt32 || v.Int32() != -42 {
			t.Fatalf("unexpected value %v", v)
		}
		if v.ByteLen() != 4 {
			t.Errorf("expected length 4, got %d", v.ByteLen())
		}
	})

	t.Run("float32", func(t *testing.T) {
		v := Float32Value(1.5)
		if v.Kind() != schema.KindFloat32 || v.Float32() != 1.5 {
			t.Fatalf("unexpected value %v", v)
		}
	})

	t.Run("raw", func(t *testing.T) {
		v := RawValue([]byte("plate"))
		if v.Kind() != schema.KindRaw {
			t.Fatalf("unexpected kind %v", v.Kind())
		}
		if !bytes.Equal(v.Raw(), []byte("plate")) {
			t.Errorf("unexpected payload %q", v.Raw())
		}
		if v.ByteLen() != 5 {
			t.Errorf("expected length 5, got %d", v.ByteLen())
		}
	})
}

func TestRawValueClamp(t *testing.T) {
	long := bytes.Repeat([]byte{0xAB}, schema.RawValueSize+7)
	v := RawValue(long)

	if v.ByteLen() != schema.RawValueSize {
		t.Fatalf("expected clamp to %d bytes, got %d", schema.RawValueSize, v.ByteLen())
	}
	if !bytes.Equal(v.Raw(), long[:schema.RawValueSize]) {
		t.Errorf("clamped payload differs from prefix")
	}
}

func TestValueEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"bool equal", BoolValue(true), BoolValue(true), true},
		{"bool differ", BoolValue(true), BoolValue(false), false},
		{"int equal", Int32Value(7), Int32Value(7), true},
		{"int differ", Int32Value(7), Int32Value(8), false},
		{"float differ", Float32Value(1), Float32Value(2), false},
		{"kind differ", Int32Value(1), Float32Value(1), false},
		{"raw equal", RawValue([]byte("ab")), RawValue([]byte("ab")), true},
		{"raw length differs", RawValue([]byte("ab")), RawValue([]byte("abc")), false},
		{"raw contents differ", RawValue([]byte("ab")), RawValue([]byte("ax")), false},
		{"zero values", Value{}, Value{}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Equal(tc.b); got != tc.want {
				t.Errorf("Equal(%v, %v) = %t, want %t", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
