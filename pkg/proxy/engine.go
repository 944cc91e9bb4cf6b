package proxy

import "github.com/tether-iot/tether-go/pkg/schema"

// Observe runs the channel's poll callback so the owning application can
// fetch a fresh local reading and report it back through Set. If that
// Set call triggered, Observe returns the stored value and its transmit
// length; otherwise ok is false and nothing needs to be sent.
//
// await selects the wait-for-acknowledgement mode applied by a
// triggering Set: with await true the channel stays pending until
// ClearPending, with await false a triggered value is handed out once
// and the channel returns to idle.
//
// A channel without a poll callback observes nothing.
func (c *Channel) Observe(await bool) (v Value, n int, ok bool) {
	c.mu.Lock()
	cb := c.pollCB
	if cb == nil {
		c.mu.Unlock()
		return Value{}, 0, false
	}
	c.outLen = 0
	c.await = await
	c.mu.Unlock()

	// Callback runs unlocked; it reports candidates through Set.
	cb(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outLen <= 0 {
		return Value{}, 0, false
	}
	return c.value, c.outLen, true
}

// Set evaluates the triggering policy for a candidate value. If the
// candidate is significant it replaces the stored value, the transmit
// length is recorded, and true is returned. A candidate whose kind does
// not match the channel performs no mutation and returns false.
func (c *Channel) Set(v Value) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if v.Kind() != c.schema.Kind {
		return false
	}

	// The timeout check runs once per invocation regardless of kind.
	timeout := c.timerElapsed()

	flags := c.config.Events
	change := flags.Has(schema.OnChange) && !v.Equal(c.value)

	var triggered bool
	if c.schema.Kind.IsNumeric() {
		upper := flags.Has(schema.OnUpperThreshold) && numericGreater(v, c.config.UpperLimit)
		lower := flags.Has(schema.OnLowerThreshold) && numericLess(v, c.config.LowerLimit)

		triggered = c.pending || timeout || change ||
			(upper && !c.upperCrossed) || (lower && !c.lowerCrossed)

		// Latches update every call, independent of the trigger
		// outcome, so a value sitting beyond a limit notifies once
		// and re-arms only after returning within range.
		c.upperCrossed = upper
		c.lowerCrossed = lower
	} else {
		triggered = c.pending || timeout || change
	}

	if !triggered {
		return false
	}

	c.value = v
	c.outLen = v.ByteLen()
	c.awaitResponse = c.await
	// An awaited value stays pending until acknowledged; otherwise the
	// value is handed to the caller now and the channel goes idle.
	c.pending = c.await
	return true
}

// timerElapsed checks the cooperative OnTimer condition and rebases the
// last tick to now when the period has elapsed. Caller holds c.mu.
func (c *Channel) timerElapsed() bool {
	if !c.config.Events.Has(schema.OnTimer) {
		return false
	}
	now := c.now()
	if now.Sub(c.lastTimerTick) >= c.config.TimerPeriod {
		c.lastTimerTick = now
		return true
	}
	return false
}

// numericGreater reports v > limit for matching numeric kinds.
func numericGreater(v, limit Value) bool {
	if v.Kind() != limit.Kind() {
		return false
	}
	switch v.Kind() {
	case schema.KindInt32:
		return v.Int32() > limit.Int32()
	case schema.KindFloat32:
		return v.Float32() > limit.Float32()
	default:
		return false
	}
}

// numericLess reports v < limit for matching numeric kinds.
func numericLess(v, limit Value) bool {
	if v.Kind() != limit.Kind() {
		return false
	}
	switch v.Kind() {
	case schema.KindInt32:
		return v.Int32() < limit.Int32()
	case schema.KindFloat32:
		return v.Float32() < limit.Float32()
	default:
		return false
	}
}

// Deliver stores a remotely delivered value and routes it to the owning
// application through the delivered callback. The callback may produce a
// reply through Set; the resulting transmit length is returned. Without
// a delivered callback the delivery is a silent no-op returning zero.
func (c *Channel) Deliver(v Value) (int, error) {
	if v.Kind() != c.schema.Kind {
		return 0, ErrTypeMismatch
	}

	c.mu.Lock()
	cb := c.deliveredCB
	if cb == nil {
		c.mu.Unlock()
		return 0, nil
	}
	c.value = v
	c.outLen = 0
	c.await = false
	c.mu.Unlock()

	cb(c)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outLen, nil
}
