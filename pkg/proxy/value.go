package proxy

import (
	"fmt"

	"github.com/tether-iot/tether-go/pkg/schema"
)

// Value is a channel value: a closed tagged union over the supported
// kinds. The raw payload and its length travel with the tag as one
// inseparable unit, so raw length bookkeeping can never desync from the
// bytes. The zero Value has kind schema.KindUnknown.
type Value struct {
	kind   schema.ValueKind
	b      bool
	i      int32
	f      float32
	raw    [schema.RawValueSize]byte
	rawLen uint8
}

// BoolValue returns a bool value.
func BoolValue(v bool) Value {
	return Value{kind: schema.KindBool, b: v}
}

// Int32Value returns an int32 value.
func Int32Value(v int32) Value {
	return Value{kind: schema.KindInt32, i: v}
}

// Float32Value returns a float32 value.
func Float32Value(v float32) Value {
	return Value{kind: schema.KindFloat32, f: v}
}

// RawValue returns a raw value holding a copy of b. Payloads longer than
// schema.RawValueSize are silently clamped.
func RawValue(b []byte) Value {
	v := Value{kind: schema.KindRaw}
	n := len(b)
	if n > schema.RawValueSize {
		n = schema.RawValueSize
	}
	copy(v.raw[:n], b[:n])
	v.rawLen = uint8(n)
	return v
}

// Kind returns the value's kind tag.
func (v Value) Kind() schema.ValueKind { return v.kind }

// Bool returns the bool payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.b }

// Int32 returns the int32 payload. Valid only for KindInt32.
func (v Value) Int32() int32 { return v.i }

// Float32 returns the float32 payload. Valid only for KindFloat32.
func (v Value) Float32() float32 { return v.f }

// Raw returns a copy of the raw payload. Valid only for KindRaw.
func (v Value) Raw() []byte {
	out := make([]byte, v.rawLen)
	copy(out, v.raw[:v.rawLen])
	return out
}

// ByteLen returns the transmit length of the value in bytes: the kind's
// fixed width, or the current payload length for raw values.
func (v Value) ByteLen() int {
	if v.kind == schema.KindRaw {
		return int(v.rawLen)
	}
	return v.kind.FixedSize()
}

// Equal reports whether two values have the same kind and payload.
// Raw values compare both length and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case schema.KindBool:
		return v.b == o.b
	case schema.KindInt32:
		return v.i == o.i
	case schema.KindFloat32:
		return v.f == o.f
	case schema.KindRaw:
		if v.rawLen != o.rawLen {
			return false
		}
		return string(v.raw[:v.rawLen]) == string(o.raw[:o.rawLen])
	default:
		return false
	}
}

// String returns a human-readable rendering of the value.
func (v Value) String() string {
	switch v.kind {
	case schema.KindBool:
		return fmt.Sprintf("%t", v.b)
	case schema.KindInt32:
		return fmt.Sprintf("%d", v.i)
	case schema.KindFloat32:
		return fmt.Sprintf("%g", v.f)
	case schema.KindRaw:
		return fmt.Sprintf("%q", v.raw[:v.rawLen])
	default:
		return "<unset>"
	}
}
