package session

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tether-iot/tether-go/pkg/log"
	"github.com/tether-iot/tether-go/pkg/persistence"
	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/wire"
)

// ResponseWindow is how long a request may go unanswered before it is
// retransmitted.
const ResponseWindow = 3 * time.Second

// ErrSessionFailed is returned by Run once the session has entered the
// error state. The session cannot recover; call Start to begin again.
var ErrSessionFailed = errors.New("session failed")

// State is the lifecycle state of a session.
type State uint8

const (
	// StateRegister: requesting credentials from the gateway.
	StateRegister State = iota
	// StateAuth: authenticating with stored credentials.
	StateAuth
	// StateSchema: uploading channel schemas.
	StateSchema
	// StateOnline: registered, authenticated and exchanging data.
	StateOnline
	// StateError: unrecoverable failure.
	StateError
)

// String returns the state name.
func (s State) String() string {
	names := []string{"register", "auth", "schema", "online", "error"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// Session drives the device-side lifecycle over an external transport.
// It is a cooperative machine: each Run call consumes at most one
// inbound message and produces at most one outbound message, and never
// blocks.
type Session struct {
	mu sync.Mutex

	name     string
	registry *proxy.Registry
	store    *persistence.Store
	logger   log.Logger
	clock    func() time.Time

	state State
	creds persistence.Credentials

	// expected is the response opcode the last request awaits, or
	// OpNone. deadline bounds the wait.
	expected wire.Opcode
	deadline time.Time

	schemaIndex uint8
	sweepIndex  uint8
	waitingID   uint8
}

// New creates a session for the named device, announcing the channels
// held by registry and persisting credentials through store.
func New(name string, registry *proxy.Registry, store *persistence.Store) *Session {
	return &Session{
		name:     name,
		registry: registry,
		store:    store,
		logger:   log.NoopLogger{},
		clock:    time.Now,
		state:    StateRegister,
	}
}

// SetLogger installs the logger. The default discards all events.
func (s *Session) SetLogger(logger log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetClock overrides the time source, for tests.
func (s *Session) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Credentials returns the identity material the session currently holds.
func (s *Session) Credentials() persistence.Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creds
}

// Start loads stored credentials and primes the machine: with
// credentials the session authenticates, without it registers as a new
// device under a random identifier.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if creds != nil && creds.Token != "" {
		s.creds = *creds
		s.state = StateAuth
	} else {
		s.creds = persistence.Credentials{DeviceID: rand.Uint64()}
		s.state = StateRegister
	}
	s.expected = wire.OpNone
	s.logEvent(log.LevelInfo, "session starting", nil)
	return nil
}

// Run advances the machine by one step. in carries one inbound frame,
// or nil when the caller is only ticking the machine. The returned
// frame, if any, must be sent to the gateway.
func (s *Session) Run(in []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateError {
		return nil, ErrSessionFailed
	}

	var msg *wire.Message
	if len(in) > 0 {
		m, err := wire.Decode(in)
		if err != nil {
			// Garbage on the wire is dropped, not fatal.
			s.logEvent(log.LevelWarn, "dropping undecodable frame", err)
			return nil, nil
		}
		msg = m
	}

	// Sort the input against the outstanding request. A matching
	// response satisfies it; selected commands pass through while the
	// session is online; anything else waits until the window expires
	// and the request is retransmitted.
	var resp, cmd *wire.Message
	switch {
	case s.expected == wire.OpNone:
		cmd = msg
	case msg != nil && msg.Opcode == s.expected:
		resp = msg
		s.expected = wire.OpNone
	case msg != nil && s.state == StateOnline && passthrough(msg.Opcode):
		cmd = msg
	case s.clock().After(s.deadline):
		s.expected = wire.OpNone
		s.logEvent(log.LevelWarn, "response window expired, retransmitting", nil)
	default:
		return nil, nil
	}

	prev := s.state
	var out *wire.Message
	switch s.state {
	case StateRegister:
		out = s.stepRegister(resp)
	case StateAuth:
		out = s.stepAuth(resp)
	case StateSchema:
		out = s.stepSchema(resp)
	case StateOnline:
		out = s.stepOnline(resp, cmd)
	}

	if s.state != prev {
		s.expected = wire.OpNone
		s.logEvent(log.LevelInfo, "state changed from "+prev.String(), nil)
	}
	if s.state == StateError {
		return nil, ErrSessionFailed
	}
	if out == nil {
		return nil, nil
	}
	return wire.Encode(out)
}

// passthrough reports whether the opcode may be handled while a
// response to an earlier request is still outstanding.
func passthrough(op wire.Opcode) bool {
	switch op {
	case wire.OpPushDataReq, wire.OpPollDataReq, wire.OpUnregisterReq:
		return true
	default:
		return false
	}
}

// expect records that the request being sent awaits the given response.
func (s *Session) expect(op wire.Opcode) {
	s.expected = op
	s.deadline = s.clock().Add(ResponseWindow)
}

func (s *Session) stepRegister(resp *wire.Message) *wire.Message {
	if resp == nil {
		s.expect(wire.OpRegisterRsp)
		return wire.NewRegisterRequest(s.creds.DeviceID, s.name)
	}
	if resp.Result != wire.ResultOK || resp.Credentials == nil {
		s.fail("registration rejected: " + resp.Result.String())
		return nil
	}
	id, err := uuid.Parse(resp.Credentials.UUID)
	if err != nil {
		s.fail("registration returned malformed uuid")
		return nil
	}
	s.creds.UUID = id
	s.creds.Token = resp.Credentials.Token
	if resp.Credentials.DeviceID != 0 {
		s.creds.DeviceID = resp.Credentials.DeviceID
	}
	s.state = StateSchema
	return nil
}

func (s *Session) stepAuth(resp *wire.Message) *wire.Message {
	if resp == nil {
		s.expect(wire.OpAuthRsp)
		return wire.NewAuthRequest(s.creds.UUID.String(), s.creds.Token)
	}
	switch resp.Result {
	case wire.ResultOK:
		s.state = StateOnline
	case wire.ResultErrPermission:
		// Stored credentials are no longer honored; register anew.
		s.logEvent(log.LevelWarn, "credentials rejected, re-registering", nil)
		s.forgetCredentials()
	default:
		s.fail("authentication rejected: " + resp.Result.String())
	}
	return nil
}

func (s *Session) stepSchema(resp *wire.Message) *wire.Message {
	if resp == nil {
		// Fresh attempt or retransmit: the whole schema is resent.
		return s.sendSchema(0)
	}
	if resp.Result != wire.ResultOK {
		return s.sendSchema(int(s.schemaIndex))
	}
	if resp.Opcode == wire.OpSchemaEndRsp {
		if err := s.store.Save(&s.creds); err != nil {
			s.logEvent(log.LevelWarn, "persisting credentials", err)
		}
		s.state = StateOnline
		return nil
	}
	return s.sendSchema(int(s.schemaIndex) + 1)
}

// sendSchema emits the fragment for the first registered channel at or
// after the given identifier. The fragment for the highest channel
// carries the end marker.
func (s *Session) sendSchema(from int) *wire.Message {
	highest, ok := s.registry.HighestRegisteredID()
	if !ok {
		// No channels to announce.
		s.logEvent(log.LevelWarn, "no channels registered, skipping schema", nil)
		s.state = StateOnline
		return nil
	}
	for id := from; id <= int(highest); id++ {
		ch := s.registry.HandleOf(uint8(id))
		if ch == nil {
			continue
		}
		s.schemaIndex = uint8(id)
		end := uint8(id) == highest
		if end {
			s.expect(wire.OpSchemaEndRsp)
		} else {
			s.expect(wire.OpSchemaFragRsp)
		}
		return wire.NewSchemaFragment(uint8(id), ch.Schema(), end)
	}
	s.state = StateOnline
	return nil
}

func (s *Session) stepOnline(resp, cmd *wire.Message) *wire.Message {
	if cmd != nil {
		return s.handleCommand(cmd)
	}
	if resp != nil {
		switch resp.Result {
		case wire.ResultOK:
			if err := s.registry.ClearPending(s.waitingID); err != nil {
				s.logEvent(log.LevelWarn, "confirming data push", err)
			}
		case wire.ResultErrPermission:
			s.state = StateAuth
			return nil
		default:
			s.logEvent(log.LevelWarn, "data push rejected: "+resp.Result.String(), nil)
		}
	}
	return s.sweep()
}

// handleCommand serves a gateway-initiated request.
func (s *Session) handleCommand(cmd *wire.Message) *wire.Message {
	switch cmd.Opcode {
	case wire.OpPollDataReq:
		return s.pollChannel(cmd.Data.ChannelID)

	case wire.OpPushDataReq:
		return s.deliverValue(cmd.Data)

	case wire.OpUnregisterReq:
		s.logEvent(log.LevelInfo, "unregistered by gateway", nil)
		s.forgetCredentials()
		return nil
	}
	return nil
}

// pollChannel forces a fresh reading of one channel and replies with it.
func (s *Session) pollChannel(id uint8) *wire.Message {
	ch := s.registry.HandleOf(id)
	if ch == nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	if err := s.registry.MarkPending(id); err != nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	v, n, ok := ch.Observe(false)
	if !ok || n == 0 {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrUnavailable)
	}
	msg, err := wire.NewDataPush(id, v, false)
	if err != nil {
		s.logEvent(log.LevelWarn, "encoding polled value", err)
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	s.logIO(log.DirectionOut, int(id), "answering data poll")
	return msg
}

// deliverValue hands a gateway-written value to the owning channel and
// acknowledges it, echoing the resulting reading when the channel's
// handler produced one.
func (s *Session) deliverValue(data *wire.DataPoint) *wire.Message {
	v, err := wire.DecodeValue(data.Value)
	if err != nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	n, err := s.registry.DeliverTo(data.ChannelID, v)
	if err != nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	s.logIO(log.DirectionIn, int(data.ChannelID), "value delivered")
	if n > 0 {
		ch := s.registry.HandleOf(data.ChannelID)
		cur, _ := ch.Value()
		if msg, err := wire.NewDataPush(data.ChannelID, cur, true); err == nil {
			return msg
		}
	}
	return wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)
}

// sweep polls the channels round-robin, starting after the last channel
// served, and emits a data push for the first one with a triggered
// event.
func (s *Session) sweep() *wire.Message {
	highest, ok := s.registry.HighestRegisteredID()
	if !ok {
		return nil
	}
	n := int(highest) + 1
	start := (int(s.sweepIndex) + 1) % n
	for i := 0; i < n; i++ {
		id := uint8((start + i) % n)
		ch := s.registry.HandleOf(id)
		if ch == nil {
			continue
		}
		v, _, ok := ch.Observe(true)
		if !ok {
			continue
		}
		msg, err := wire.NewDataPush(id, v, false)
		if err != nil {
			s.logEvent(log.LevelWarn, "encoding channel value", err)
			continue
		}
		s.sweepIndex = id
		s.waitingID = id
		s.expect(wire.OpPushDataRsp)
		s.logIO(log.DirectionOut, int(id), "pushing data")
		return msg
	}
	return nil
}

// forgetCredentials drops the stored identity and restarts registration
// under a fresh device identifier.
func (s *Session) forgetCredentials() {
	if err := s.store.Clear(); err != nil {
		s.logEvent(log.LevelWarn, "clearing credentials", err)
	}
	s.creds = persistence.Credentials{DeviceID: rand.Uint64()}
	s.state = StateRegister
}

func (s *Session) fail(reason string) {
	s.state = StateError
	s.logEvent(log.LevelError, reason, nil)
}

func (s *Session) logEvent(level log.Level, msg string, err error) {
	s.logger.Log(log.Event{
		Time:      s.clock(),
		Level:     level,
		Category:  log.CategorySession,
		ChannelID: log.NoChannel,
		State:     s.state.String(),
		Message:   msg,
		Err:       err,
	})
}

func (s *Session) logIO(dir log.Direction, channel int, msg string) {
	s.logger.Log(log.Event{
		Time:      s.clock(),
		Level:     log.LevelDebug,
		Category:  log.CategorySession,
		ChannelID: channel,
		State:     s.state.String(),
		Direction: dir,
		Message:   msg,
	})
}
