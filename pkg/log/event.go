package log

import "time"

// Level is the severity of an event.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	names := []string{"debug", "info", "warn", "error"}
	if int(l) < len(names) {
		return names[l]
	}
	return "debug"
}

// Category identifies which part of the stack produced an event.
type Category uint8

const (
	CategoryChannel Category = iota
	CategorySession
	CategoryFrame
	CategoryDiscovery
)

// String returns the category name.
func (c Category) String() string {
	names := []string{"channel", "session", "frame", "discovery"}
	if int(c) < len(names) {
		return names[c]
	}
	return "channel"
}

// Direction indicates whether an event concerns inbound or outbound data.
type Direction uint8

const (
	DirectionNone Direction = iota
	DirectionIn
	DirectionOut
)

// String returns the direction name.
func (d Direction) String() string {
	names := []string{"", "in", "out"}
	if int(d) < len(names) {
		return names[d]
	}
	return ""
}

// NoChannel marks an event that is not scoped to a single channel.
const NoChannel = -1

// Event is one structured log record.
type Event struct {
	// Time is when the event occurred.
	Time time.Time

	// Level is the severity.
	Level Level

	// Category identifies the producing layer.
	Category Category

	// ChannelID is the affected channel, or NoChannel.
	ChannelID int

	// State is the session state name, if session-scoped.
	State string

	// Direction marks inbound or outbound data events.
	Direction Direction

	// Message is the human-readable description.
	Message string

	// Err carries the error for warn/error events.
	Err error
}
