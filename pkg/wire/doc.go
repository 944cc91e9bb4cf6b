// Package wire defines the CBOR wire format exchanged between a Tether
// device and its gateway.
//
// Messages use CBOR (RFC 8949) with integer keys for compact encoding.
// Every PDU is a Message envelope carrying an opcode, a result code for
// responses, and at most one typed payload. Encoding is deterministic;
// decoding is lenient for forward compatibility.
//
// # Message flow
//
// A device session exchanges, in order: Register (or Auth when
// credentials exist), one SchemaFragment per channel with End set on the
// last, then PushData/PollData traffic while online. The gateway may
// push values (PushData request toward the device) or request a fresh
// reading (PollData).
package wire
