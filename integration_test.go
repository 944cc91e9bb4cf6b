package tether_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tether-iot/tether-go/pkg/persistence"
	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/schema"
	"github.com/tether-iot/tether-go/pkg/session"
	"github.com/tether-iot/tether-go/pkg/transport"
	"github.com/tether-iot/tether-go/pkg/wire"
)

// runGateway answers a device over conn the way a minimal gateway
// would: it issues credentials, acknowledges schemas, and confirms
// every data push while forwarding it to pushes.
func runGateway(conn transport.Conn, pushes chan<- wire.DataPoint) {
	for {
		raw, err := conn.Receive()
		if err != nil {
			return
		}
		msg, err := wire.Decode(raw)
		if err != nil {
			continue
		}

		var rsp *wire.Message
		switch msg.Opcode {
		case wire.OpRegisterReq:
			rsp = &wire.Message{
				Opcode:      wire.OpRegisterRsp,
				Credentials: &wire.Credentials{UUID: uuid.NewString(), Token: "integration"},
			}
		case wire.OpSchemaFragReq:
			rsp = wire.NewResult(wire.OpSchemaFragRsp, wire.ResultOK)
		case wire.OpSchemaEndReq:
			rsp = wire.NewResult(wire.OpSchemaEndRsp, wire.ResultOK)
		case wire.OpPushDataReq:
			select {
			case pushes <- *msg.Data:
			default:
			}
			rsp = wire.NewResult(wire.OpPushDataRsp, wire.ResultOK)
		}
		if rsp == nil {
			continue
		}
		out, err := wire.Encode(rsp)
		if err != nil {
			continue
		}
		if err := conn.Send(out); err != nil {
			return
		}
	}
}

// waitForPush drains pushes until one matches the wanted channel and
// int32 value.
func waitForPush(t *testing.T, pushes <-chan wire.DataPoint, id uint8, want int32) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case dp := <-pushes:
			if dp.ChannelID == id && dp.Value.Int != nil && *dp.Value.Int == want {
				return
			}
		case <-deadline:
			t.Fatalf("no push for channel %d with value %d", id, want)
		}
	}
}

func TestDeviceGatewayExchange(t *testing.T) {
	var temperature atomic.Int32
	var led atomic.Bool
	temperature.Store(21)

	registry := proxy.NewRegistry(proxy.DefaultCapacity)
	_, err := registry.Register(0, "thermometer", schema.TypeTemperature,
		schema.KindInt32, schema.UnitCelsius, nil,
		func(c *proxy.Channel) { c.Set(proxy.Int32Value(temperature.Load())) })
	require.NoError(t, err)
	require.NoError(t, registry.Configure(0, proxy.Config{Events: schema.OnChange}))

	_, err = registry.Register(1, "led", schema.TypeSwitch,
		schema.KindBool, schema.UnitNone,
		func(c *proxy.Channel) {
			v, _ := c.Value()
			led.Store(v.Bool())
		}, nil)
	require.NoError(t, err)
	require.NoError(t, registry.Configure(1, proxy.Config{Events: schema.OnChange}))

	store := persistence.NewStore(filepath.Join(t.TempDir(), "credentials.json"))
	sess := session.New("integration-device", registry, store)
	require.NoError(t, sess.Start())

	deviceConn, gatewayConn := transport.Pipe()
	defer deviceConn.Close()
	defer gatewayConn.Close()

	pushes := make(chan wire.DataPoint, 16)
	go runGateway(gatewayConn, pushes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- transport.Loop(ctx, deviceConn, sess, 5*time.Millisecond, nil) }()

	// Registration, schema upload and the initial reading all complete
	// without intervention.
	require.Eventually(t, func() bool { return sess.State() == session.StateOnline },
		5*time.Second, 5*time.Millisecond)
	waitForPush(t, pushes, 0, 21)

	// Credentials were persisted during the exchange.
	require.Eventually(t, func() bool {
		creds, err := store.Load()
		return err == nil && creds != nil && creds.Token == "integration"
	}, 5*time.Second, 5*time.Millisecond)

	// A local change propagates to the gateway.
	temperature.Store(28)
	waitForPush(t, pushes, 0, 28)

	// A gateway write reaches the local handler.
	write, err := wire.NewDataPush(1, proxy.BoolValue(true), false)
	require.NoError(t, err)
	raw, err := wire.Encode(write)
	require.NoError(t, err)
	require.NoError(t, gatewayConn.Send(raw))
	require.Eventually(t, func() bool { return led.Load() },
		5*time.Second, 5*time.Millisecond)

	cancel()
	deviceConn.Close()
	<-loopDone
}
