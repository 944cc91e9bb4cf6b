// Package transport moves Tether frames between device and gateway.
//
// It provides length-prefixed framing over stream connections, a small
// Conn abstraction with TCP and MQTT implementations plus an in-memory
// pipe for tests, and Loop, which pumps a connection into a cooperative
// protocol machine.
package transport
