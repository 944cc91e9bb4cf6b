package schema

import (
	"strings"
	"time"
)

// EventFlags selects which conditions make a channel value significant
// enough to transmit. Flags combine with bitwise OR.
type EventFlags uint8

const (
	// EventNone disables event detection; values are only sent when
	// explicitly requested.
	EventNone EventFlags = 0

	// OnChange triggers when the candidate value differs from the
	// stored one.
	OnChange EventFlags = 1 << iota

	// OnTimer triggers periodically regardless of the value.
	OnTimer

	// OnUpperThreshold triggers when a numeric value crosses above the
	// configured upper limit.
	OnUpperThreshold

	// OnLowerThreshold triggers when a numeric value crosses below the
	// configured lower limit.
	OnLowerThreshold
)

// eventMask covers every defined flag bit.
const eventMask = OnChange | OnTimer | OnUpperThreshold | OnLowerThreshold

// Has returns true if all bits of f are set.
func (e EventFlags) Has(f EventFlags) bool { return e&f == f }

// String returns the flags as a comma-separated list.
func (e EventFlags) String() string {
	if e == EventNone {
		return "none"
	}
	var parts []string
	if e.Has(OnChange) {
		parts = append(parts, "change")
	}
	if e.Has(OnTimer) {
		parts = append(parts, "timer")
	}
	if e.Has(OnUpperThreshold) {
		parts = append(parts, "upper")
	}
	if e.Has(OnLowerThreshold) {
		parts = append(parts, "lower")
	}
	if e&^eventMask != 0 {
		parts = append(parts, "invalid")
	}
	return strings.Join(parts, ",")
}

// ValidateEventConfig checks an event configuration against the channel's
// value kind. Threshold flags are only legal on numeric kinds, and a
// timer flag requires a positive period.
func ValidateEventConfig(kind ValueKind, events EventFlags, period time.Duration) error {
	if events&^eventMask != 0 {
		return ErrUnknownEventFlag
	}
	if events.Has(OnTimer) && period <= 0 {
		return ErrTimerPeriod
	}
	if (events.Has(OnUpperThreshold) || events.Has(OnLowerThreshold)) && !kind.IsNumeric() {
		return ErrThresholdKind
	}
	return nil
}
