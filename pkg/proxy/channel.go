package proxy

import (
	"sync"
	"time"

	"github.com/tether-iot/tether-go/pkg/schema"
)

// Callback is an application handler invoked with the channel handle.
// Poll callbacks produce fresh local readings and report them through
// Set; delivered callbacks react to remotely pushed values and may
// produce a reply through the same Set pathway.
type Callback func(*Channel)

// Config is a channel's complete event configuration. Configure replaces
// the previous configuration atomically; there is no partial update.
// LowerLimit and UpperLimit are only consulted when the corresponding
// threshold flag is set, and must then match the channel's value kind.
type Config struct {
	// Events selects the trigger conditions.
	Events schema.EventFlags

	// TimerPeriod is the OnTimer interval.
	TimerPeriod time.Duration

	// LowerLimit is the OnLowerThreshold limit.
	LowerLimit Value

	// UpperLimit is the OnUpperThreshold limit.
	UpperLimit Value
}

// Channel is a single registered sensor/actuator property: its schema,
// last stored value, event configuration and transient send state.
// All exported methods serialize on the channel's own mutex; channels
// are independent of each other.
type Channel struct {
	mu sync.Mutex

	id     uint8
	schema schema.Schema
	config Config

	value Value

	// Transient send state.
	pending       bool // value needs to go out
	awaitResponse bool // keep retransmitting until acknowledged
	upperCrossed  bool // beyond upper limit since last evaluation
	lowerCrossed  bool // beyond lower limit since last evaluation
	lastTimerTick time.Time
	outLen        int  // transmit length from the last trigger
	await         bool // await mode requested by the current Observe

	pollCB      Callback
	deliveredCB Callback

	now func() time.Time
}

// ID returns the channel identifier.
func (c *Channel) ID() uint8 { return c.id }

// Schema returns the channel's schema descriptor.
func (c *Channel) Schema() schema.Schema { return c.schema }

// Kind returns the channel's value kind.
func (c *Channel) Kind() schema.ValueKind { return c.schema.Kind }

// Config returns the current event configuration.
func (c *Channel) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// Value returns the last stored value and its transmit length in bytes.
// For raw channels the length is the stored payload length; for
// fixed-size kinds it is the kind's byte width.
func (c *Channel) Value() (Value, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.value.ByteLen()
}

// WriteValue stores a value directly, bypassing trigger evaluation.
// The value kind must match the channel's registered kind.
func (c *Channel) WriteValue(v Value) error {
	if v.Kind() != c.schema.Kind {
		return ErrTypeMismatch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	return nil
}

// Pending reports whether the channel holds a value awaiting transmission.
func (c *Channel) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// AwaitingResponse reports whether the last triggered value must be
// retransmitted until explicitly acknowledged.
func (c *Channel) AwaitingResponse() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaitResponse
}

// markPending forces the pending flag regardless of trigger evaluation.
// The next Set call will trigger and hand the value to the caller.
func (c *Channel) markPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = true
}

// clearPending acknowledges that the pending value has been transmitted.
// It also clears the await-response latch.
func (c *Channel) clearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = false
	c.awaitResponse = false
}

// setConfig replaces the configuration and rebases the timer tick so a
// fresh OnTimer period starts from activation.
func (c *Channel) setConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = cfg
	c.lastTimerTick = c.now()
}
