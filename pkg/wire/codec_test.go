package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
)

func TestEncodeDecodeRegister(t *testing.T) {
	msg := NewRegisterRequest(0xdeadbeef, "multisensor")

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, OpRegisterReq, got.Opcode)
	require.NotNil(t, got.Register)
	assert.Equal(t, uint64(0xdeadbeef), got.Register.DeviceID)
	assert.Equal(t, "multisensor", got.Register.Name)
}

func TestEncodeDecodeAuth(t *testing.T) {
	msg := NewAuthRequest("bf2a0a01-7b10-4a08-8c53-9f2fb3c7e0a1", "secret-token")

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, got.Credentials)
	assert.Equal(t, "bf2a0a01-7b10-4a08-8c53-9f2fb3c7e0a1", got.Credentials.UUID)
	assert.Equal(t, "secret-token", got.Credentials.Token)
}

func TestEncodeDecodeSchemaFragment(t *testing.T) {
	s := schema.Schema{
		TypeID: schema.TypeTemperature,
		Unit:   schema.UnitCelsius,
		Kind:   schema.KindInt32,
		Name:   "thermo",
	}
	msg := NewSchemaFragment(3, s, true)

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, OpSchemaEndReq, got.Opcode)
	require.NotNil(t, got.Schema)
	assert.True(t, got.Schema.End)
	assert.Equal(t, uint8(3), got.Schema.ChannelID)
	assert.Equal(t, s, got.Schema.ToSchema())
}

func TestEncodeDecodeDataPoints(t *testing.T) {
	cases := []struct {
		name  string
		value proxy.Value
	}{
		{"bool", proxy.BoolValue(true)},
		{"int32", proxy.Int32Value(-17)},
		{"float32", proxy.Float32Value(3.25)},
		{"raw", proxy.RawValue([]byte("KNT0001"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := NewDataPush(7, tc.value, false)
			require.NoError(t, err)

			data, err := Encode(msg)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			require.NotNil(t, got.Data)
			assert.Equal(t, uint8(7), got.Data.ChannelID)

			v, err := DecodeValue(got.Data.Value)
			require.NoError(t, err)
			assert.True(t, v.Equal(tc.value), "decoded %v, want %v", v, tc.value)
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	msg, err := NewDataPush(1, proxy.Int32Value(42), false)
	require.NoError(t, err)

	a, err := Encode(msg)
	require.NoError(t, err)
	b, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestValidate(t *testing.T) {
	t.Run("unknown opcode", func(t *testing.T) {
		_, err := Encode(&Message{Opcode: Opcode(0xEE)})
		assert.ErrorIs(t, err, ErrUnknownOpcode)
	})

	t.Run("missing payload", func(t *testing.T) {
		_, err := Encode(&Message{Opcode: OpRegisterReq})
		assert.ErrorIs(t, err, ErrMissingPayload)
	})

	t.Run("result response needs no payload", func(t *testing.T) {
		data, err := Encode(NewResult(OpSchemaEndRsp, ResultOK))
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ResultOK, got.Result)
	})

	t.Run("failed register response needs no credentials", func(t *testing.T) {
		_, err := Encode(NewResult(OpRegisterRsp, ResultErrUnavailable))
		assert.NoError(t, err)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := Decode([]byte{0xff, 0x00, 0x13})
		assert.Error(t, err)
	})
}

func TestEncodeValueUnknownKind(t *testing.T) {
	_, err := EncodeValue(proxy.Value{})
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = DecodeValue(Value{Kind: 0x7f})
	assert.ErrorIs(t, err, ErrUnknownKind)
}
