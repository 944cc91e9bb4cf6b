// Package session implements the device-side connection lifecycle as a
// cooperative state machine: register with the gateway (or authenticate
// with stored credentials), upload the channel schemas, then go online
// and exchange data.
//
// The machine is driven by Run, which takes at most one inbound message
// per call and returns at most one outbound message. The caller owns the
// transport and the pacing; the session itself never blocks. Requests
// that expect a response are retransmitted when no matching response
// arrives within the response window.
package session
