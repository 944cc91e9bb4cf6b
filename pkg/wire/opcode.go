package wire

// Opcode identifies a message type.
type Opcode uint8

const (
	// OpNone marks "no opcode"; never sent on the wire.
	OpNone Opcode = 0x00

	// OpRegisterReq requests registration of a new device.
	OpRegisterReq Opcode = 0x10
	// OpRegisterRsp answers a registration with credentials.
	OpRegisterRsp Opcode = 0x11

	// OpUnregisterReq asks the device to drop its credentials.
	OpUnregisterReq Opcode = 0x12

	// OpAuthReq authenticates a known device.
	OpAuthReq Opcode = 0x14
	// OpAuthRsp answers an authentication request.
	OpAuthRsp Opcode = 0x15

	// OpSchemaFragReq carries one channel schema.
	OpSchemaFragReq Opcode = 0x20
	// OpSchemaFragRsp acknowledges a schema fragment.
	OpSchemaFragRsp Opcode = 0x21
	// OpSchemaEndReq carries the last channel schema.
	OpSchemaEndReq Opcode = 0x22
	// OpSchemaEndRsp acknowledges the whole schema exchange.
	OpSchemaEndRsp Opcode = 0x23

	// OpPushDataReq carries a channel value, in either direction.
	OpPushDataReq Opcode = 0x30
	// OpPushDataRsp acknowledges a pushed value.
	OpPushDataRsp Opcode = 0x31

	// OpPollDataReq asks the device for a fresh reading of one channel.
	OpPollDataReq Opcode = 0x32
)

// String returns the opcode name.
func (o Opcode) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpRegisterReq:
		return "registerReq"
	case OpRegisterRsp:
		return "registerRsp"
	case OpUnregisterReq:
		return "unregisterReq"
	case OpAuthReq:
		return "authReq"
	case OpAuthRsp:
		return "authRsp"
	case OpSchemaFragReq:
		return "schemaFragReq"
	case OpSchemaFragRsp:
		return "schemaFragRsp"
	case OpSchemaEndReq:
		return "schemaEndReq"
	case OpSchemaEndRsp:
		return "schemaEndRsp"
	case OpPushDataReq:
		return "pushDataReq"
	case OpPushDataRsp:
		return "pushDataRsp"
	case OpPollDataReq:
		return "pollDataReq"
	default:
		return "unknown"
	}
}

// valid reports whether the opcode is defined.
func (o Opcode) valid() bool {
	switch o {
	case OpRegisterReq, OpRegisterRsp, OpUnregisterReq,
		OpAuthReq, OpAuthRsp,
		OpSchemaFragReq, OpSchemaFragRsp, OpSchemaEndReq, OpSchemaEndRsp,
		OpPushDataReq, OpPushDataRsp, OpPollDataReq:
		return true
	default:
		return false
	}
}

// Result is the outcome code carried by responses.
type Result uint8

const (
	// ResultOK indicates success.
	ResultOK Result = 0

	// ResultErrInvalid indicates a malformed or unknown request.
	ResultErrInvalid Result = 1

	// ResultErrPermission indicates the device must re-authenticate.
	ResultErrPermission Result = 2

	// ResultErrUnavailable indicates the gateway cannot serve the
	// request right now.
	ResultErrUnavailable Result = 3
)

// String returns the result name.
func (r Result) String() string {
	names := []string{"ok", "invalid", "permission", "unavailable"}
	if int(r) < len(names) {
		return names[r]
	}
	return "unknown"
}
