package wire

import (
	"errors"
	"fmt"

	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
)

// Message validation errors.
var (
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrMissingPayload = errors.New("missing payload for opcode")
	ErrUnknownKind    = errors.New("unknown value kind")
)

// Message is the envelope for every Tether PDU. Exactly one payload
// field is set, according to the opcode; absent payloads are omitted
// from the encoding.
type Message struct {
	// Opcode identifies the message type.
	Opcode Opcode `cbor:"1,keyasint"`

	// Result carries the outcome for response opcodes.
	Result Result `cbor:"2,keyasint,omitempty"`

	// Register is set for OpRegisterReq.
	Register *RegisterRequest `cbor:"3,keyasint,omitempty"`

	// Credentials is set for OpRegisterRsp and OpAuthReq.
	Credentials *Credentials `cbor:"4,keyasint,omitempty"`

	// Schema is set for OpSchemaFragReq and OpSchemaEndReq.
	Schema *SchemaFragment `cbor:"5,keyasint,omitempty"`

	// Data is set for data opcodes.
	Data *DataPoint `cbor:"6,keyasint,omitempty"`
}

// RegisterRequest asks the gateway to register a new device.
type RegisterRequest struct {
	// DeviceID is the device-chosen random identifier.
	DeviceID uint64 `cbor:"1,keyasint"`

	// Name is the human-readable device name.
	Name string `cbor:"2,keyasint"`
}

// Credentials identify a registered device.
type Credentials struct {
	// DeviceID is the device identifier confirmed by the gateway.
	DeviceID uint64 `cbor:"1,keyasint,omitempty"`

	// UUID is the gateway-issued device UUID.
	UUID string `cbor:"2,keyasint"`

	// Token is the gateway-issued authentication token.
	Token string `cbor:"3,keyasint"`
}

// SchemaFragment carries one channel's schema descriptor.
type SchemaFragment struct {
	// ChannelID is the channel identifier.
	ChannelID uint8 `cbor:"1,keyasint"`

	// TypeID is the sensor/actuator type.
	TypeID uint16 `cbor:"2,keyasint"`

	// Unit is the measurement unit.
	Unit uint8 `cbor:"3,keyasint"`

	// Kind is the value representation.
	Kind uint8 `cbor:"4,keyasint"`

	// Name is the channel name.
	Name string `cbor:"5,keyasint"`

	// End marks the last fragment of the exchange.
	End bool `cbor:"6,keyasint,omitempty"`
}

// ToSchema converts the fragment to a schema descriptor.
func (f *SchemaFragment) ToSchema() schema.Schema {
	return schema.Schema{
		TypeID: schema.TypeID(f.TypeID),
		Unit:   schema.Unit(f.Unit),
		Kind:   schema.ValueKind(f.Kind),
		Name:   f.Name,
	}
}

// DataPoint carries one channel value.
type DataPoint struct {
	// ChannelID is the channel identifier.
	ChannelID uint8 `cbor:"1,keyasint"`

	// Value is the wire form of the channel value.
	Value Value `cbor:"2,keyasint"`
}

// Value is the wire representation of a proxy value. The kind tag and
// the matching payload field travel together; only the payload for the
// tagged kind is encoded.
type Value struct {
	Kind  uint8    `cbor:"1,keyasint"`
	Bool  *bool    `cbor:"2,keyasint,omitempty"`
	Int   *int32   `cbor:"3,keyasint,omitempty"`
	Float *float32 `cbor:"4,keyasint,omitempty"`
	Raw   []byte   `cbor:"5,keyasint,omitempty"`
}

// EncodeValue converts a proxy value to its wire form.
func EncodeValue(v proxy.Value) (Value, error) {
	out := Value{Kind: uint8(v.Kind())}
	switch v.Kind() {
	case schema.KindBool:
		b := v.Bool()
		out.Bool = &b
	case schema.KindInt32:
		i := v.Int32()
		out.Int = &i
	case schema.KindFloat32:
		f := v.Float32()
		out.Float = &f
	case schema.KindRaw:
		out.Raw = v.Raw()
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownKind, v.Kind())
	}
	return out, nil
}

// DecodeValue converts a wire value back to a proxy value. A payload
// missing for the tagged kind decodes to that kind's zero value.
func DecodeValue(v Value) (proxy.Value, error) {
	switch schema.ValueKind(v.Kind) {
	case schema.KindBool:
		var b bool
		if v.Bool != nil {
			b = *v.Bool
		}
		return proxy.BoolValue(b), nil
	case schema.KindInt32:
		var i int32
		if v.Int != nil {
			i = *v.Int
		}
		return proxy.Int32Value(i), nil
	case schema.KindFloat32:
		var f float32
		if v.Float != nil {
			f = *v.Float
		}
		return proxy.Float32Value(f), nil
	case schema.KindRaw:
		return proxy.RawValue(v.Raw), nil
	default:
		return proxy.Value{}, fmt.Errorf("%w: %d", ErrUnknownKind, v.Kind)
	}
}

// Validate checks that the envelope is well-formed: a known opcode and
// the payload that opcode requires.
func (m *Message) Validate() error {
	if !m.Opcode.valid() {
		return fmt.Errorf("%w: 0x%02x", ErrUnknownOpcode, uint8(m.Opcode))
	}
	switch m.Opcode {
	case OpRegisterReq:
		if m.Register == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	case OpAuthReq:
		if m.Credentials == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	case OpRegisterRsp:
		if m.Result == ResultOK && m.Credentials == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	case OpSchemaFragReq, OpSchemaEndReq:
		if m.Schema == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	case OpPushDataReq:
		if m.Data == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	case OpPollDataReq:
		if m.Data == nil {
			return fmt.Errorf("%w: %s", ErrMissingPayload, m.Opcode)
		}
	}
	return nil
}

// NewRegisterRequest builds a registration request.
func NewRegisterRequest(deviceID uint64, name string) *Message {
	return &Message{
		Opcode:   OpRegisterReq,
		Register: &RegisterRequest{DeviceID: deviceID, Name: name},
	}
}

// NewAuthRequest builds an authentication request.
func NewAuthRequest(uuid, token string) *Message {
	return &Message{
		Opcode:      OpAuthReq,
		Credentials: &Credentials{UUID: uuid, Token: token},
	}
}

// NewSchemaFragment builds a schema fragment message for one channel.
// end marks the last fragment and selects the end opcode.
func NewSchemaFragment(channelID uint8, s schema.Schema, end bool) *Message {
	op := OpSchemaFragReq
	if end {
		op = OpSchemaEndReq
	}
	return &Message{
		Opcode: op,
		Schema: &SchemaFragment{
			ChannelID: channelID,
			TypeID:    uint16(s.TypeID),
			Unit:      uint8(s.Unit),
			Kind:      uint8(s.Kind),
			Name:      s.Name,
			End:       end,
		},
	}
}

// NewDataPush builds a data message carrying a channel value. response
// selects the response opcode, used when echoing a delivered value.
func NewDataPush(channelID uint8, v proxy.Value, response bool) (*Message, error) {
	wv, err := EncodeValue(v)
	if err != nil {
		return nil, err
	}
	op := OpPushDataReq
	if response {
		op = OpPushDataRsp
	}
	return &Message{
		Opcode: op,
		Data:   &DataPoint{ChannelID: channelID, Value: wv},
	}, nil
}

// NewPollRequest builds a request for the current value of a channel.
func NewPollRequest(channelID uint8) *Message {
	return &Message{
		Opcode: OpPollDataReq,
		Data:   &DataPoint{ChannelID: channelID},
	}
}

// NewResult builds a bare response message carrying a result code.
func NewResult(op Opcode, result Result) *Message {
	return &Message{Opcode: op, Result: result}
}
