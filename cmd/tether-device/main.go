// Command tether-device is a reference Tether device implementation.
//
// It simulates a small multisensor with three channels: a thermometer
// reporting on change, on a timer and on threshold crossings, an LED
// the gateway can switch, and a free-form tag. The device registers
// with a gateway, uploads its channel schemas and then exchanges data
// until stopped.
//
// Usage:
//
//	tether-device [flags]
//
// Flags:
//
//	-config string     YAML configuration file path
//	-name string       Device name (default "tether-device")
//	-gateway string    Gateway address as host:port (default: discover via mDNS)
//	-transport string  Transport: tcp, mqtt (default "tcp")
//	-broker string     MQTT broker URL (default "tcp://localhost:1883")
//	-state string      Credential file path
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interactive       Enable the interactive console
//
// Examples:
//
//	# Register with a known gateway
//	tether-device -name bench-sensor -gateway 192.168.1.10:7700
//
//	# Discover the gateway and drive the simulation by hand
//	tether-device -interactive
//
//	# Talk through an MQTT broker
//	tether-device -transport mqtt -broker tcp://broker.local:1883
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tether-iot/tether-go/pkg/discovery"
	"github.com/tether-iot/tether-go/pkg/log"
	"github.com/tether-iot/tether-go/pkg/persistence"
	"github.com/tether-iot/tether-go/pkg/proxy"
	"github.com/tether-iot/tether-go/pkg/session"
	"github.com/tether-iot/tether-go/pkg/transport"
)

// discoverTimeout bounds the mDNS gateway search.
const discoverTimeout = 10 * time.Second

func main() {
	var (
		configPath  = flag.String("config", "", "YAML configuration file path")
		name        = flag.String("name", "", "Device name")
		gateway     = flag.String("gateway", "", "Gateway address as host:port (default: discover via mDNS)")
		transp      = flag.String("transport", "", "Transport: tcp, mqtt")
		broker      = flag.String("broker", "", "MQTT broker URL")
		statePath   = flag.String("state", "", "Credential file path")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
		interactive = flag.Bool("interactive", false, "Enable the interactive console")
	)
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}
	// Flags override the config file.
	if *name != "" {
		cfg.Name = *name
	}
	if *gateway != "" {
		cfg.Gateway = *gateway
	}
	if *transp != "" {
		cfg.Transport = TransportKind(*transp)
	}
	if *broker != "" {
		cfg.Broker = *broker
	}
	if *statePath != "" {
		cfg.StateFile = *statePath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.validate(); err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	registry := proxy.NewRegistry(proxy.DefaultCapacity)
	registry.SetLogger(logger)

	sim := NewSimulation()
	if err := sim.RegisterChannels(registry, cfg.Thermo); err != nil {
		stdlog.Fatalf("Failed to set up channels: %v", err)
	}

	store := persistence.NewStore(cfg.StateFile)
	sess := session.New(cfg.Name, registry, store)
	sess.SetLogger(logger)
	if err := sess.Start(); err != nil {
		stdlog.Fatalf("Failed to start session: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connect(ctx, cfg)
	if err != nil {
		stdlog.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	loopDone := make(chan error, 1)
	go func() { loopDone <- transport.Loop(ctx, conn, sess, cfg.Tick, logger) }()
	go sim.Drift(ctx)

	if *interactive {
		console, err := NewConsole(sim, sess)
		if err != nil {
			stdlog.Fatalf("Failed to start console: %v", err)
		}
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v, shutting down", sig)
		cancel()
		conn.Close()
		<-loopDone
	case err := <-loopDone:
		if err != nil && ctx.Err() == nil {
			stdlog.Fatalf("Connection lost: %v", err)
		}
	case <-ctx.Done():
		conn.Close()
		<-loopDone
	}
}

// connect opens the configured transport, discovering a gateway when
// none is given.
func connect(ctx context.Context, cfg Config) (transport.Conn, error) {
	if cfg.Transport == TransportMQTT {
		return transport.DialMQTT(transport.MQTTConfig{
			Broker:         cfg.Broker,
			ClientID:       cfg.Name,
			PublishTopic:   fmt.Sprintf("tether/%s/up", cfg.Name),
			SubscribeTopic: fmt.Sprintf("tether/%s/down", cfg.Name),
		})
	}

	addr := cfg.Gateway
	if addr == "" {
		stdlog.Println("No gateway configured, browsing mDNS...")
		browser := discovery.NewBrowser(discovery.BrowserConfig{})
		svc, err := browser.FindFirst(ctx, discoverTimeout)
		if err != nil {
			return nil, fmt.Errorf("discovering gateway: %w", err)
		}
		stdlog.Printf("Found gateway %q at %s", svc.Name, svc.Addr())
		addr = svc.Addr()
	}
	return transport.Dial(addr)
}

// newLogger builds the stack logger writing structured records to
// stderr.
func newLogger(level string) log.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return log.NewSlogAdapter(slog.New(handler))
}
