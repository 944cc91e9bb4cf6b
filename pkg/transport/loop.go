package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tether-iot/tether-go/pkg/log"
)

// DefaultTick is the default pacing interval for Loop.
const DefaultTick = 100 * time.Millisecond

// Stepper is a cooperative protocol machine: each Run call consumes at
// most one inbound message (nil means a bare tick) and produces at most
// one outbound message. A Run error is terminal.
type Stepper interface {
	Run(in []byte) ([]byte, error)
}

// Loop pumps conn into step until ctx is canceled, the peer disconnects
// or the machine fails. Inbound messages are fed as they arrive and the
// machine is additionally ticked every tick interval so timer-driven
// work proceeds on a quiet line.
//
// Loop does not close conn; the caller should close it after Loop
// returns to release the internal reader. A clean peer disconnect
// returns nil.
func Loop(ctx context.Context, conn Conn, step Stepper, tick time.Duration, logger log.Logger) error {
	if tick <= 0 {
		tick = DefaultTick
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}

	in := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.Receive()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case in <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	drive := func(msg []byte) error {
		out, err := step.Run(msg)
		if err != nil {
			return fmt.Errorf("protocol machine: %w", err)
		}
		if len(out) == 0 {
			return nil
		}
		if err := conn.Send(out); err != nil {
			return fmt.Errorf("sending: %w", err)
		}
		return nil
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				logger.Log(log.Event{
					Time:      time.Now(),
					Level:     log.LevelInfo,
					Category:  log.CategoryFrame,
					ChannelID: log.NoChannel,
					Message:   "peer disconnected",
				})
				return nil
			}
			return fmt.Errorf("receiving: %w", err)

		case msg := <-in:
			if err := drive(msg); err != nil {
				return err
			}

		case <-ticker.C:
			if err := drive(nil); err != nil {
				return err
			}
		}
	}
}
