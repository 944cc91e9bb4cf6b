package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tether-iot/tether-go/pkg/log"
	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
	"github.com/tether-iot/tether-go/pkg/transport"
	"github.com/tether-iot/tether-go/pkg/wire"
)

// deviceRecord is the gateway's view of one registered device. conn is
// nil while the device is offline.
type deviceRecord struct {
	creds   wire.Credentials
	name    string
	schemas map[uint8]schema.Schema
	values  map[uint8]proxy.Value
	conn    transport.Conn
}

// connState binds a connection to the device it authenticated as.
type connState struct {
	conn transport.Conn
	dev  *deviceRecord
}

// Gateway implements the gateway side of the protocol: it issues
// credentials, collects channel schemas and receives pushed data.
type Gateway struct {
	mu      sync.Mutex
	devices map[string]*deviceRecord // keyed by UUID
	logger  log.Logger
}

// NewGateway creates an empty gateway.
func NewGateway(logger log.Logger) *Gateway {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Gateway{
		devices: make(map[string]*deviceRecord),
		logger:  logger,
	}
}

// HandleMessage processes one device message and returns the reply, or
// nil when no reply is due.
func (g *Gateway) HandleMessage(st *connState, msg *wire.Message) *wire.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch msg.Opcode {
	case wire.OpRegisterReq:
		return g.register(st, msg)

	case wire.OpAuthReq:
		return g.authenticate(st, msg)

	case wire.OpSchemaFragReq, wire.OpSchemaEndReq:
		return g.storeSchema(st, msg)

	case wire.OpPushDataReq:
		return g.storeData(st, msg)

	case wire.OpPushDataRsp:
		// Reply to a poll we issued; keep the reading, nothing to send.
		if st.dev != nil && msg.Data != nil {
			if v, err := wire.DecodeValue(msg.Data.Value); err == nil {
				st.dev.values[msg.Data.ChannelID] = v
			}
		}
		return nil

	default:
		return nil
	}
}

func (g *Gateway) register(st *connState, msg *wire.Message) *wire.Message {
	creds := wire.Credentials{
		DeviceID: msg.Register.DeviceID,
		UUID:     uuid.NewString(),
		Token:    uuid.NewString(),
	}
	dev := &deviceRecord{
		creds:   creds,
		name:    msg.Register.Name,
		schemas: make(map[uint8]schema.Schema),
		values:  make(map[uint8]proxy.Value),
	}
	g.devices[creds.UUID] = dev
	dev.conn = st.conn
	st.dev = dev

	g.logEvent(log.LevelInfo, fmt.Sprintf("registered device %q as %s", dev.name, creds.UUID))
	return &wire.Message{Opcode: wire.OpRegisterRsp, Credentials: &creds}
}

func (g *Gateway) authenticate(st *connState, msg *wire.Message) *wire.Message {
	dev, ok := g.devices[msg.Credentials.UUID]
	if !ok || dev.creds.Token != msg.Credentials.Token {
		g.logEvent(log.LevelWarn, "rejecting auth for unknown or mismatched credentials")
		return wire.NewResult(wire.OpAuthRsp, wire.ResultErrPermission)
	}
	dev.conn = st.conn
	st.dev = dev
	g.logEvent(log.LevelInfo, fmt.Sprintf("device %q authenticated", dev.name))
	return wire.NewResult(wire.OpAuthRsp, wire.ResultOK)
}

func (g *Gateway) storeSchema(st *connState, msg *wire.Message) *wire.Message {
	rsp := wire.OpSchemaFragRsp
	if msg.Opcode == wire.OpSchemaEndReq {
		rsp = wire.OpSchemaEndRsp
	}
	if st.dev == nil {
		return wire.NewResult(rsp, wire.ResultErrPermission)
	}

	s := msg.Schema.ToSchema()
	if err := schema.Validate(s); err != nil {
		g.logEvent(log.LevelWarn, fmt.Sprintf("rejecting schema for channel %d: %v", msg.Schema.ChannelID, err))
		return wire.NewResult(rsp, wire.ResultErrInvalid)
	}
	st.dev.schemas[msg.Schema.ChannelID] = s

	if msg.Opcode == wire.OpSchemaEndReq {
		g.logEvent(log.LevelInfo, fmt.Sprintf("device %q announced %d channels", st.dev.name, len(st.dev.schemas)))
	}
	return wire.NewResult(rsp, wire.ResultOK)
}

func (g *Gateway) storeData(st *connState, msg *wire.Message) *wire.Message {
	if st.dev == nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrPermission)
	}
	v, err := wire.DecodeValue(msg.Data.Value)
	if err != nil {
		return wire.NewResult(wire.OpPushDataRsp, wire.ResultErrInvalid)
	}
	st.dev.values[msg.Data.ChannelID] = v

	g.logger.Log(log.Event{
		Time:      time.Now(),
		Level:     log.LevelInfo,
		Category:  log.CategoryChannel,
		ChannelID: int(msg.Data.ChannelID),
		Direction: log.DirectionIn,
		Message:   fmt.Sprintf("data from %q: %s", st.dev.name, v),
	})
	return wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)
}

// ServeConn runs the message loop for one device connection until the
// peer disconnects.
func (g *Gateway) ServeConn(conn transport.Conn) error {
	st := &connState{conn: conn}
	defer g.detach(st)
	for {
		raw, err := conn.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		msg, err := wire.Decode(raw)
		if err != nil {
			g.logEvent(log.LevelWarn, fmt.Sprintf("dropping undecodable frame: %v", err))
			continue
		}
		rsp := g.HandleMessage(st, msg)
		if rsp == nil {
			continue
		}
		out, err := wire.Encode(rsp)
		if err != nil {
			g.logEvent(log.LevelError, fmt.Sprintf("encoding reply: %v", err))
			continue
		}
		if err := conn.Send(out); err != nil {
			return fmt.Errorf("sending reply: %w", err)
		}
	}
}

// detach marks the connection's device offline, unless the device has
// reconnected through another link in the meantime.
func (g *Gateway) detach(st *connState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st.dev != nil && st.dev.conn == st.conn {
		st.dev.conn = nil
	}
}

// DeviceCount returns the number of registered devices.
func (g *Gateway) DeviceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.devices)
}

// DeviceInfo is a console-facing snapshot of one registered device.
type DeviceInfo struct {
	Name     string
	UUID     string
	Online   bool
	Channels int
	Values   map[uint8]proxy.Value
}

// Devices returns a snapshot of all registered devices, including the
// last value seen per channel.
func (g *Gateway) Devices() []DeviceInfo {
	g.mu.Lock()
	defer g.mu.Unlock()

	infos := make([]DeviceInfo, 0, len(g.devices))
	for id, dev := range g.devices {
		values := make(map[uint8]proxy.Value, len(dev.values))
		for ch, v := range dev.values {
			values[ch] = v
		}
		infos = append(infos, DeviceInfo{
			Name:     dev.name,
			UUID:     id,
			Online:   dev.conn != nil,
			Channels: len(dev.schemas),
			Values:   values,
		})
	}
	return infos
}

// lookup resolves a device by name or UUID. Callers hold g.mu.
func (g *Gateway) lookup(key string) (*deviceRecord, error) {
	if dev, ok := g.devices[key]; ok {
		return dev, nil
	}
	for _, dev := range g.devices {
		if dev.name == key {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("unknown device %q", key)
}

// send encodes msg and writes it to the device resolved from key.
func (g *Gateway) send(key string, msg *wire.Message) error {
	g.mu.Lock()
	dev, err := g.lookup(key)
	var conn transport.Conn
	if err == nil {
		conn = dev.conn
	}
	g.mu.Unlock()

	if err != nil {
		return err
	}
	if conn == nil {
		return fmt.Errorf("device %q is offline", key)
	}
	raw, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return conn.Send(raw)
}

// Poll asks a device for the current value of one channel. The answer
// arrives asynchronously and lands in the device's value snapshot.
func (g *Gateway) Poll(key string, channelID uint8) error {
	return g.send(key, wire.NewPollRequest(channelID))
}

// Push writes a value to a device channel. The text is parsed against
// the kind the device announced for the channel.
func (g *Gateway) Push(key string, channelID uint8, text string) error {
	g.mu.Lock()
	dev, err := g.lookup(key)
	var sc schema.Schema
	var known bool
	if err == nil {
		sc, known = dev.schemas[channelID]
	}
	g.mu.Unlock()

	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("device %q has no channel %d", key, channelID)
	}
	v, err := parseValue(sc.Kind, text)
	if err != nil {
		return err
	}
	msg, err := wire.NewDataPush(channelID, v, false)
	if err != nil {
		return err
	}
	return g.send(key, msg)
}

// parseValue converts console text to a typed channel value.
func parseValue(kind schema.ValueKind, text string) (proxy.Value, error) {
	switch kind {
	case schema.KindBool:
		on, err := strconv.ParseBool(text)
		if err != nil {
			return proxy.Value{}, fmt.Errorf("parsing %q as bool: %w", text, err)
		}
		return proxy.BoolValue(on), nil
	case schema.KindInt32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return proxy.Value{}, fmt.Errorf("parsing %q as int32: %w", text, err)
		}
		return proxy.Int32Value(int32(n)), nil
	case schema.KindFloat32:
		f, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return proxy.Value{}, fmt.Errorf("parsing %q as float32: %w", text, err)
		}
		return proxy.Float32Value(float32(f)), nil
	case schema.KindRaw:
		return proxy.RawValue([]byte(text)), nil
	default:
		return proxy.Value{}, fmt.Errorf("unsupported value kind %d", kind)
	}
}

func (g *Gateway) logEvent(level log.Level, msg string) {
	g.logger.Log(log.Event{
		Time:      time.Now(),
		Level:     level,
		Category:  log.CategorySession,
		ChannelID: log.NoChannel,
		Message:   msg,
	})
}
