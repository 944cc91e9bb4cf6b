package proxy

import (
	"fmt"
	"time"

	"github.com/tether-iot/tether-go/pkg/log"
	"github.com/tether-iot/tether-go/pkg/schema"
)

// DefaultCapacity is the default number of channel slots.
const DefaultCapacity = 32

// slot is one entry of the channel arena. The occupied tag replaces the
// sentinel identifier the slot index would otherwise have to carry.
type slot struct {
	occupied bool
	ch       *Channel
}

// Registry is the fixed-capacity channel table. Channel identifiers
// index directly into the slot arena, so the registry accepts ids in
// [0, capacity).
type Registry struct {
	slots      []slot
	highest    uint8
	registered bool // at least one channel registered

	clock  func() time.Time
	logger log.Logger
}

// NewRegistry creates a registry with the given number of slots.
// A capacity of 0 or less selects DefaultCapacity; capacities are capped
// at 256 so identifiers fit in a byte.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if capacity > 256 {
		capacity = 256
	}
	return &Registry{
		slots:  make([]slot, capacity),
		clock:  time.Now,
		logger: log.NoopLogger{},
	}
}

// SetLogger sets the event logger for the registry and for channels
// registered afterwards. Pass nil to disable logging.
func (r *Registry) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	r.logger = logger
}

// SetClock overrides the time source used for timer triggers.
// Intended for tests; call before registering channels.
func (r *Registry) SetClock(clock func() time.Time) {
	if clock != nil {
		r.clock = clock
	}
}

// Capacity returns the number of channel slots.
func (r *Registry) Capacity() int { return len(r.slots) }

// Register creates a channel in the slot for id. It fails with
// ErrCapacityExceeded when id is outside the slot range, ErrDuplicateID
// when the slot is taken, and ErrInvalidSchema when the schema validator
// rejects the descriptor. All transient flags start cleared and the
// event configuration starts empty.
func (r *Registry) Register(id uint8, name string, typeID schema.TypeID,
	kind schema.ValueKind, unit schema.Unit, deliveredCB, pollCB Callback) (*Channel, error) {

	if int(id) >= len(r.slots) {
		return nil, fmt.Errorf("%w: id %d, capacity %d", ErrCapacityExceeded, id, len(r.slots))
	}
	if r.slots[id].occupied {
		return nil, fmt.Errorf("%w: id %d", ErrDuplicateID, id)
	}

	sc := schema.Schema{TypeID: typeID, Unit: unit, Kind: kind, Name: name}
	if err := schema.Validate(sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	ch := &Channel{
		id:          id,
		schema:      sc,
		pollCB:      pollCB,
		deliveredCB: deliveredCB,
		now:         r.clock,
	}
	r.slots[id] = slot{occupied: true, ch: ch}

	if !r.registered || id > r.highest {
		r.highest = id
	}
	r.registered = true

	r.logger.Log(log.Event{
		Time:      r.clock(),
		Level:     log.LevelInfo,
		Category:  log.CategoryChannel,
		ChannelID: int(id),
		Message:   "channel registered: " + sc.String(),
	})
	return ch, nil
}

// Configure replaces the channel's event configuration atomically. It
// fails with ErrUnknownChannel when id is not registered and
// ErrInvalidConfig when the validator rejects the combination; on
// failure the previous configuration stays in effect.
func (r *Registry) Configure(id uint8, cfg Config) error {
	ch := r.HandleOf(id)
	if ch == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownChannel, id)
	}

	kind := ch.schema.Kind
	if err := schema.ValidateEventConfig(kind, cfg.Events, cfg.TimerPeriod); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Events.Has(schema.OnUpperThreshold) && cfg.UpperLimit.Kind() != kind {
		return fmt.Errorf("%w: upper limit kind %s on %s channel",
			ErrInvalidConfig, cfg.UpperLimit.Kind(), kind)
	}
	if cfg.Events.Has(schema.OnLowerThreshold) && cfg.LowerLimit.Kind() != kind {
		return fmt.Errorf("%w: lower limit kind %s on %s channel",
			ErrInvalidConfig, cfg.LowerLimit.Kind(), kind)
	}

	ch.setConfig(cfg)

	r.logger.Log(log.Event{
		Time:      r.clock(),
		Level:     log.LevelInfo,
		Category:  log.CategoryChannel,
		ChannelID: int(id),
		Message:   "channel configured: " + cfg.Events.String(),
	})
	return nil
}

// HandleOf returns the channel registered for id, or nil.
func (r *Registry) HandleOf(id uint8) *Channel {
	if int(id) >= len(r.slots) || !r.slots[id].occupied {
		return nil
	}
	return r.slots[id].ch
}

// MarkPending forces the channel's pending-send flag regardless of
// trigger evaluation. The next Set call will hand the value out.
func (r *Registry) MarkPending(id uint8) error {
	ch := r.HandleOf(id)
	if ch == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownChannel, id)
	}
	ch.markPending()
	return nil
}

// ClearPending acknowledges that the channel's pending value has been
// transmitted. It also clears the await-response latch.
func (r *Registry) ClearPending(id uint8) error {
	ch := r.HandleOf(id)
	if ch == nil {
		return fmt.Errorf("%w: id %d", ErrUnknownChannel, id)
	}
	ch.clearPending()
	return nil
}

// HighestRegisteredID returns the largest registered identifier. ok is
// false while no channel is registered.
func (r *Registry) HighestRegisteredID() (id uint8, ok bool) {
	return r.highest, r.registered
}

// DeliverTo routes a remotely delivered value to the channel registered
// for id. See Channel.Deliver for the callback contract; the returned
// length is the reply transmit length produced by the callback, if any.
func (r *Registry) DeliverTo(id uint8, v Value) (int, error) {
	ch := r.HandleOf(id)
	if ch == nil {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownChannel, id)
	}
	n, err := ch.Deliver(v)
	if err != nil {
		return 0, err
	}
	r.logger.Log(log.Event{
		Time:      r.clock(),
		Level:     log.LevelDebug,
		Category:  log.CategoryChannel,
		ChannelID: int(id),
		Direction: log.DirectionIn,
		Message:   "value delivered: " + v.String(),
	})
	return n, nil
}
