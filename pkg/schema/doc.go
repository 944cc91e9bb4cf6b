// Package schema defines the descriptor vocabulary for Tether channels:
// value kinds, sensor/actuator type identifiers, measurement units and
// event-configuration flags, together with the validation rules that
// decide whether a (type, kind, unit) combination or an event
// configuration is legal.
//
// The proxy layer treats this package as its schema validator: a channel
// registration or configuration that this package rejects never reaches
// the channel table.
package schema
