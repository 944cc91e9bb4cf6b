package transport

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/tether-iot/tether-go/pkg/log"
)

// Conn is a bidirectional message connection. Message boundaries are
// preserved; Receive blocks until a message arrives, the peer closes,
// or the connection is closed locally.
type Conn interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// NetConn is a Conn over a stream connection, with length-prefixed
// framing.
type NetConn struct {
	conn   net.Conn
	framer *Framer

	closeOnce sync.Once
	closeErr  error
}

// NewNetConn wraps an established stream connection.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{
		conn:   conn,
		framer: NewFramer(conn),
	}
}

// Dial connects to a gateway over TCP.
func Dial(addr string) (*NetConn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewNetConn(conn), nil
}

// SetLogger configures frame logging.
func (c *NetConn) SetLogger(logger log.Logger) {
	c.framer.SetLogger(logger)
}

// RemoteAddr returns the peer address.
func (c *NetConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send writes one framed message.
func (c *NetConn) Send(data []byte) error {
	return c.framer.WriteFrame(data)
}

// Receive reads one framed message. It returns io.EOF when the peer
// closed the connection cleanly.
func (c *NetConn) Receive() ([]byte, error) {
	return c.framer.ReadFrame()
}

// Close closes the underlying connection, unblocking Receive.
func (c *NetConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// pipeConn is one end of an in-memory connection pair.
type pipeConn struct {
	in  chan []byte
	out chan []byte

	closeOnce  sync.Once
	localDone  chan struct{}
	remoteDone chan struct{}
}

// Pipe returns a connected in-memory Conn pair, for tests and loopback
// wiring. Sends do not block until the peer's buffer is full.
func Pipe() (Conn, Conn) {
	a2b := make(chan []byte, 16)
	b2a := make(chan []byte, 16)
	aDone := make(chan struct{})
	bDone := make(chan struct{})

	a := &pipeConn{in: b2a, out: a2b, localDone: aDone, remoteDone: bDone}
	b := &pipeConn{in: a2b, out: b2a, localDone: bDone, remoteDone: aDone}
	return a, b
}

func (p *pipeConn) Send(data []byte) error {
	if len(data) == 0 {
		return ErrMessageEmpty
	}
	msg := make([]byte, len(data))
	copy(msg, data)
	// Closed ends win over available buffer space.
	select {
	case <-p.localDone:
		return net.ErrClosed
	case <-p.remoteDone:
		return io.ErrClosedPipe
	default:
	}
	select {
	case <-p.localDone:
		return net.ErrClosed
	case <-p.remoteDone:
		return io.ErrClosedPipe
	case p.out <- msg:
		return nil
	}
}

func (p *pipeConn) Receive() ([]byte, error) {
	select {
	case <-p.localDone:
		return nil, net.ErrClosed
	case msg := <-p.in:
		return msg, nil
	case <-p.remoteDone:
		// Drain what the peer sent before it closed.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return nil, io.EOF
		}
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.localDone) })
	return nil
}
