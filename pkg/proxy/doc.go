// Package proxy implements the Tether channel value proxy: a
// fixed-capacity registry of typed channels and the event-detection
// engine that decides, per channel, whether a freshly observed or
// remotely delivered value is significant enough to transmit.
//
// # Channels
//
// A channel is one named, typed sensor or actuator property. It owns a
// schema (validated by package schema at registration), the last stored
// value, an event configuration and a pair of application callbacks:
// a poll callback that produces fresh local readings and a delivered
// callback that reacts to values pushed from the remote side.
//
// # Triggers
//
// Set evaluates the triggering policy for a candidate value:
//
//   - a forced send (MarkPending) always triggers;
//   - OnTimer triggers once per configured period, rebased at each fire;
//   - OnChange triggers when the candidate differs from the stored value;
//   - OnUpperThreshold/OnLowerThreshold trigger edge-wise: only on the
//     transition into the beyond-limit state, re-arming once the value
//     returns within range.
//
// On a trigger the candidate replaces the stored value and the transmit
// length is recorded; a channel observed in await-response mode stays
// pending until ClearPending acknowledges the transmission.
//
// # Concurrency
//
// The proxy is designed for a single cooperative scheduling context, but
// each channel serializes access to its mutable state with its own
// mutex, so an interrupt-style caller and a poll loop may share a
// channel safely. Callbacks are invoked without the channel lock held.
package proxy
