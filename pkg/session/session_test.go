package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tether-iot/tether-go/pkg/persistence"
	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
	"github.com/tether-iot/tether-go/pkg/wire"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fixture wires a session to a registry with three channels: a polled
// temperature sensor (0), a write-only dimmer (1) and a polled switch
// (2). temp and switchOn back the poll callbacks.
type fixture struct {
	session  *Session
	registry *proxy.Registry
	store    *persistence.Store
	clock    *fakeClock

	temp     int32
	switchOn bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: &fakeClock{t: time.Unix(1000, 0)}}

	f.registry = proxy.NewRegistry(8)
	f.registry.SetClock(f.clock.Now)

	_, err := f.registry.Register(0, "temperature", schema.TypeTemperature,
		schema.KindInt32, schema.UnitCelsius, nil,
		func(c *proxy.Channel) { c.Set(proxy.Int32Value(f.temp)) })
	require.NoError(t, err)
	require.NoError(t, f.registry.Configure(0, proxy.Config{Events: schema.OnChange}))

	_, err = f.registry.Register(1, "brightness", schema.TypeLuminosity,
		schema.KindInt32, schema.UnitLux,
		func(c *proxy.Channel) {
			if v, _ := c.Value(); v.Int32() > 100 {
				c.Set(proxy.Int32Value(100))
			}
		}, nil)
	require.NoError(t, err)
	require.NoError(t, f.registry.Configure(1, proxy.Config{Events: schema.OnChange}))

	_, err = f.registry.Register(2, "switch", schema.TypePresence,
		schema.KindBool, schema.UnitNone, nil,
		func(c *proxy.Channel) { c.Set(proxy.BoolValue(f.switchOn)) })
	require.NoError(t, err)
	require.NoError(t, f.registry.Configure(2, proxy.Config{Events: schema.OnChange}))

	f.store = persistence.NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	f.session = New("test-device", f.registry, f.store)
	f.session.SetClock(f.clock.Now)
	return f
}

// step encodes in (nil for a bare tick), runs the machine once and
// decodes the output frame, if any.
func (f *fixture) step(t *testing.T, in *wire.Message) *wire.Message {
	t.Helper()
	var raw []byte
	if in != nil {
		var err error
		raw, err = wire.Encode(in)
		require.NoError(t, err)
	}
	out, err := f.session.Run(raw)
	require.NoError(t, err)
	if out == nil {
		return nil
	}
	m, err := wire.Decode(out)
	require.NoError(t, err)
	return m
}

func registerRsp() *wire.Message {
	return &wire.Message{
		Opcode:      wire.OpRegisterRsp,
		Credentials: &wire.Credentials{UUID: uuid.NewString(), Token: "secret"},
	}
}

func pollReq(id uint8) *wire.Message {
	return &wire.Message{
		Opcode: wire.OpPollDataReq,
		Data:   &wire.DataPoint{ChannelID: id},
	}
}

func dataPush(t *testing.T, id uint8, v proxy.Value) *wire.Message {
	t.Helper()
	m, err := wire.NewDataPush(id, v, false)
	require.NoError(t, err)
	return m
}

// online drives the fixture through registration and schema upload,
// then drains the initial channel readings.
func (f *fixture) online(t *testing.T) {
	t.Helper()
	require.NoError(t, f.session.Start())

	msg := f.step(t, nil)
	require.Equal(t, wire.OpRegisterReq, msg.Opcode)
	require.Nil(t, f.step(t, registerRsp()))

	msg = f.step(t, nil)
	for msg.Opcode == wire.OpSchemaFragReq {
		msg = f.step(t, wire.NewResult(wire.OpSchemaFragRsp, wire.ResultOK))
	}
	require.Equal(t, wire.OpSchemaEndReq, msg.Opcode)
	require.Nil(t, f.step(t, wire.NewResult(wire.OpSchemaEndRsp, wire.ResultOK)))
	require.Equal(t, StateOnline, f.session.State())

	for out := f.step(t, nil); out != nil; {
		require.Equal(t, wire.OpPushDataReq, out.Opcode)
		out = f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultOK))
	}
}

func TestLifecycle(t *testing.T) {
	t.Run("registers and uploads schemas", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Start())
		require.Equal(t, StateRegister, f.session.State())

		msg := f.step(t, nil)
		require.Equal(t, wire.OpRegisterReq, msg.Opcode)
		require.NotNil(t, msg.Register)
		assert.Equal(t, "test-device", msg.Register.Name)
		assert.NotZero(t, msg.Register.DeviceID)

		// Still waiting, nothing to send.
		require.Nil(t, f.step(t, nil))

		require.Nil(t, f.step(t, registerRsp()))
		require.Equal(t, StateSchema, f.session.State())

		msg = f.step(t, nil)
		require.Equal(t, wire.OpSchemaFragReq, msg.Opcode)
		assert.Equal(t, uint8(0), msg.Schema.ChannelID)
		assert.Equal(t, "temperature", msg.Schema.Name)

		msg = f.step(t, wire.NewResult(wire.OpSchemaFragRsp, wire.ResultOK))
		require.Equal(t, wire.OpSchemaFragReq, msg.Opcode)
		assert.Equal(t, uint8(1), msg.Schema.ChannelID)

		msg = f.step(t, wire.NewResult(wire.OpSchemaFragRsp, wire.ResultOK))
		require.Equal(t, wire.OpSchemaEndReq, msg.Opcode)
		assert.Equal(t, uint8(2), msg.Schema.ChannelID)
		assert.True(t, msg.Schema.End)

		require.Nil(t, f.step(t, wire.NewResult(wire.OpSchemaEndRsp, wire.ResultOK)))
		require.Equal(t, StateOnline, f.session.State())

		saved, err := f.store.Load()
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.Equal(t, "secret", saved.Token)
		assert.NotEqual(t, uuid.Nil, saved.UUID)
	})

	t.Run("repeats rejected schema fragment", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Start())
		f.step(t, nil)
		f.step(t, registerRsp())

		msg := f.step(t, nil)
		require.Equal(t, uint8(0), msg.Schema.ChannelID)

		msg = f.step(t, wire.NewResult(wire.OpSchemaFragRsp, wire.ResultErrUnavailable))
		require.Equal(t, wire.OpSchemaFragReq, msg.Opcode)
		assert.Equal(t, uint8(0), msg.Schema.ChannelID)
	})

	t.Run("authenticates with stored credentials", func(t *testing.T) {
		f := newFixture(t)
		saved := persistence.Credentials{DeviceID: 7, UUID: uuid.New(), Token: "secret"}
		require.NoError(t, f.store.Save(&saved))

		require.NoError(t, f.session.Start())
		require.Equal(t, StateAuth, f.session.State())

		msg := f.step(t, nil)
		require.Equal(t, wire.OpAuthReq, msg.Opcode)
		require.NotNil(t, msg.Credentials)
		assert.Equal(t, saved.UUID.String(), msg.Credentials.UUID)
		assert.Equal(t, "secret", msg.Credentials.Token)

		f.step(t, wire.NewResult(wire.OpAuthRsp, wire.ResultOK))
		require.Equal(t, StateOnline, f.session.State())
	})

	t.Run("re-registers when credentials rejected", func(t *testing.T) {
		f := newFixture(t)
		saved := persistence.Credentials{DeviceID: 7, UUID: uuid.New(), Token: "stale"}
		require.NoError(t, f.store.Save(&saved))
		require.NoError(t, f.session.Start())

		f.step(t, nil)
		require.Nil(t, f.step(t, wire.NewResult(wire.OpAuthRsp, wire.ResultErrPermission)))
		require.Equal(t, StateRegister, f.session.State())

		loaded, err := f.store.Load()
		require.NoError(t, err)
		assert.Nil(t, loaded)

		msg := f.step(t, nil)
		require.Equal(t, wire.OpRegisterReq, msg.Opcode)
	})

	t.Run("auth failure is fatal", func(t *testing.T) {
		f := newFixture(t)
		saved := persistence.Credentials{DeviceID: 7, UUID: uuid.New(), Token: "secret"}
		require.NoError(t, f.store.Save(&saved))
		require.NoError(t, f.session.Start())

		f.step(t, nil)
		raw, err := wire.Encode(wire.NewResult(wire.OpAuthRsp, wire.ResultErrUnavailable))
		require.NoError(t, err)
		_, err = f.session.Run(raw)
		require.ErrorIs(t, err, ErrSessionFailed)
		require.Equal(t, StateError, f.session.State())

		_, err = f.session.Run(nil)
		require.ErrorIs(t, err, ErrSessionFailed)
	})

	t.Run("retransmits unanswered requests", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Start())

		msg := f.step(t, nil)
		require.Equal(t, wire.OpRegisterReq, msg.Opcode)
		require.Nil(t, f.step(t, nil))

		f.clock.Advance(ResponseWindow + time.Second)
		msg = f.step(t, nil)
		require.NotNil(t, msg)
		assert.Equal(t, wire.OpRegisterReq, msg.Opcode)
	})

	t.Run("ignores unrelated messages while waiting", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.session.Start())
		f.step(t, nil)

		require.Nil(t, f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)))
		require.Equal(t, StateRegister, f.session.State())
	})
}

func TestOnlineData(t *testing.T) {
	t.Run("pushes changed value and clears on ack", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		f.temp = 25
		msg := f.step(t, nil)
		require.NotNil(t, msg)
		require.Equal(t, wire.OpPushDataReq, msg.Opcode)
		assert.Equal(t, uint8(0), msg.Data.ChannelID)
		require.NotNil(t, msg.Data.Value.Int)
		assert.Equal(t, int32(25), *msg.Data.Value.Int)
		assert.True(t, f.registry.HandleOf(0).Pending())

		require.Nil(t, f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)))
		assert.False(t, f.registry.HandleOf(0).Pending())

		// Unchanged value does not fire again.
		require.Nil(t, f.step(t, nil))
	})

	t.Run("retransmits push until acknowledged", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		f.switchOn = true
		msg := f.step(t, nil)
		require.Equal(t, uint8(2), msg.Data.ChannelID)

		require.Nil(t, f.step(t, nil))

		f.clock.Advance(ResponseWindow + time.Second)
		msg = f.step(t, nil)
		require.NotNil(t, msg)
		require.Equal(t, wire.OpPushDataReq, msg.Opcode)
		assert.Equal(t, uint8(2), msg.Data.ChannelID)

		require.Nil(t, f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)))
		assert.False(t, f.registry.HandleOf(2).Pending())
	})

	t.Run("permission error forces re-authentication", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		f.temp = 30
		msg := f.step(t, nil)
		require.Equal(t, wire.OpPushDataReq, msg.Opcode)

		require.Nil(t, f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultErrPermission)))
		require.Equal(t, StateAuth, f.session.State())

		msg = f.step(t, nil)
		require.Equal(t, wire.OpAuthReq, msg.Opcode)
		require.Nil(t, f.step(t, wire.NewResult(wire.OpAuthRsp, wire.ResultOK)))
		require.Equal(t, StateOnline, f.session.State())

		// The unconfirmed reading goes out again.
		msg = f.step(t, nil)
		require.NotNil(t, msg)
		assert.Equal(t, uint8(0), msg.Data.ChannelID)
	})

	t.Run("answers data polls", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		f.temp = 18
		msg := f.step(t, pollReq(0))
		require.Equal(t, wire.OpPushDataReq, msg.Opcode)
		assert.Equal(t, uint8(0), msg.Data.ChannelID)
		require.NotNil(t, msg.Data.Value.Int)
		assert.Equal(t, int32(18), *msg.Data.Value.Int)
	})

	t.Run("rejects poll of unknown channel", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		msg := f.step(t, pollReq(7))
		require.Equal(t, wire.OpPushDataRsp, msg.Opcode)
		assert.Equal(t, wire.ResultErrInvalid, msg.Result)
	})

	t.Run("applies delivered value", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		msg := f.step(t, dataPush(t, 1, proxy.Int32Value(80)))
		require.Equal(t, wire.OpPushDataRsp, msg.Opcode)
		assert.Equal(t, wire.ResultOK, msg.Result)

		v, _ := f.registry.HandleOf(1).Value()
		assert.Equal(t, int32(80), v.Int32())
	})

	t.Run("echoes handler-adjusted value", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		// The brightness handler caps writes at 100.
		msg := f.step(t, dataPush(t, 1, proxy.Int32Value(250)))
		require.Equal(t, wire.OpPushDataRsp, msg.Opcode)
		require.NotNil(t, msg.Data)
		require.NotNil(t, msg.Data.Value.Int)
		assert.Equal(t, int32(100), *msg.Data.Value.Int)
	})

	t.Run("rejects mistyped delivery", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		msg := f.step(t, dataPush(t, 1, proxy.BoolValue(true)))
		require.Equal(t, wire.OpPushDataRsp, msg.Opcode)
		assert.Equal(t, wire.ResultErrInvalid, msg.Result)
	})

	t.Run("rejects delivery to unknown channel", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		msg := f.step(t, dataPush(t, 5, proxy.Int32Value(1)))
		require.Equal(t, wire.OpPushDataRsp, msg.Opcode)
		assert.Equal(t, wire.ResultErrInvalid, msg.Result)
	})

	t.Run("serves commands while awaiting ack", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)

		f.temp = 40
		msg := f.step(t, nil)
		require.Equal(t, uint8(0), msg.Data.ChannelID)

		// A poll for another channel is served before the ack arrives.
		msg = f.step(t, pollReq(2))
		require.Equal(t, wire.OpPushDataReq, msg.Opcode)
		assert.Equal(t, uint8(2), msg.Data.ChannelID)

		require.Nil(t, f.step(t, wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)))
		assert.False(t, f.registry.HandleOf(0).Pending())
	})

	t.Run("unregister restarts registration", func(t *testing.T) {
		f := newFixture(t)
		f.online(t)
		before := f.session.Credentials()

		require.Nil(t, f.step(t, &wire.Message{Opcode: wire.OpUnregisterReq}))
		require.Equal(t, StateRegister, f.session.State())

		loaded, err := f.store.Load()
		require.NoError(t, err)
		assert.Nil(t, loaded)

		msg := f.step(t, nil)
		require.Equal(t, wire.OpRegisterReq, msg.Opcode)
		assert.NotEqual(t, before.DeviceID, msg.Register.DeviceID)
	})
}
