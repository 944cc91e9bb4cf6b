// Command tether-gateway is a reference Tether gateway.
//
// It listens for device connections over TCP, issues credentials,
// collects channel schemas and logs pushed data. The gateway announces
// itself with mDNS so devices on the local network can find it without
// configuration.
//
// Usage:
//
//	tether-gateway [flags]
//
// Flags:
//
//	-port int          Listen port (default 7700)
//	-name string       Gateway name advertised via mDNS (default "tether-gateway")
//	-advertise         Announce the gateway with mDNS (default true)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//	-interactive       Enable the interactive console (devices, values, poll, push)
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/tether-iot/tether-go/pkg/discovery"
	"github.com/tether-iot/tether-go/pkg/log"
	"github.com/tether-iot/tether-go/pkg/transport"
)

func main() {
	var (
		port        = flag.Int("port", discovery.DefaultPort, "Listen port")
		name        = flag.String("name", "tether-gateway", "Gateway name advertised via mDNS")
		advertise   = flag.Bool("advertise", true, "Announce the gateway with mDNS")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		interactive = flag.Bool("interactive", false, "Enable the interactive console")
	)
	flag.Parse()

	logger := newLogger(*logLevel)
	gateway := NewGateway(logger)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		stdlog.Fatalf("Failed to listen on port %d: %v", *port, err)
	}
	stdlog.Printf("Gateway %q listening on %s", *name, listener.Addr())

	if *advertise {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{})
		if err := adv.Advertise(discovery.GatewayInfo{Name: *name, Port: uint16(*port)}); err != nil {
			stdlog.Printf("Warning: mDNS advertising failed: %v", err)
		} else {
			defer adv.Stop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go acceptLoop(ctx, listener, gateway, logger)

	if *interactive {
		console, err := NewConsole(gateway)
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
	case <-ctx.Done():
	}
	cancel()
	listener.Close()
}

func acceptLoop(ctx context.Context, listener net.Listener, gateway *Gateway, logger log.Logger) {
	for {
		netConn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			stdlog.Printf("Accept failed: %v", err)
			continue
		}

		go func() {
			conn := transport.NewNetConn(netConn)
			conn.SetLogger(logger)
			defer conn.Close()

			stdlog.Printf("Device connected from %s", conn.RemoteAddr())
			if err := gateway.ServeConn(conn); err != nil {
				stdlog.Printf("Connection from %s failed: %v", conn.RemoteAddr(), err)
				return
			}
			stdlog.Printf("Device from %s disconnected", conn.RemoteAddr())
		}()
	}
}

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
