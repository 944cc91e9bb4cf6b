package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStepper records inbound messages and emits queued outputs,
// one per Run call.
type scriptedStepper struct {
	mu       sync.Mutex
	received [][]byte
	queue    [][]byte
	err      error
}

func (s *scriptedStepper) Run(in []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if in != nil {
		s.received = append(s.received, in)
	}
	if len(s.queue) == 0 {
		return nil, nil
	}
	out := s.queue[0]
	s.queue = s.queue[1:]
	return out, nil
}

func (s *scriptedStepper) receivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func TestLoop(t *testing.T) {
	t.Run("sends machine output and feeds input", func(t *testing.T) {
		local, remote := Pipe()
		defer local.Close()
		defer remote.Close()

		step := &scriptedStepper{queue: [][]byte{[]byte("hello")}}

		ctx, cancel := context.WithCancel(context.Background())
		loopDone := make(chan error, 1)
		go func() { loopDone <- Loop(ctx, local, step, 5*time.Millisecond, nil) }()

		got, err := remote.Receive()
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)

		require.NoError(t, remote.Send([]byte("reply")))
		require.Eventually(t, func() bool { return step.receivedCount() == 1 },
			time.Second, time.Millisecond)

		cancel()
		assert.ErrorIs(t, <-loopDone, context.Canceled)
	})

	t.Run("machine failure is terminal", func(t *testing.T) {
		local, remote := Pipe()
		defer local.Close()
		defer remote.Close()

		boom := errors.New("boom")
		step := &scriptedStepper{err: boom}

		err := Loop(context.Background(), local, step, time.Millisecond, nil)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("peer disconnect ends the loop cleanly", func(t *testing.T) {
		local, remote := Pipe()
		defer local.Close()

		step := &scriptedStepper{}
		loopDone := make(chan error, 1)
		go func() { loopDone <- Loop(context.Background(), local, step, time.Millisecond, nil) }()

		require.NoError(t, remote.Close())
		select {
		case err := <-loopDone:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("loop did not stop after peer close")
		}
	})
}
