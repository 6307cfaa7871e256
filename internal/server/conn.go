package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gatherlab/gatherd/internal/protocol"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrConnClosed is returned by Send after the connection shut down.
	ErrConnClosed = errors.New("connection closed")

	// ErrSendQueueFull is returned when the peer is not draining its
	// socket and the outbound queue has no room left.
	ErrSendQueueFull = errors.New("send queue is full")
)

// flushTimeout bounds how long a closing connection may spend delivering
// frames that were enqueued before Close.
const flushTimeout = 5 * time.Second

// Conn wraps one accepted TCP connection. All outbound frames, responses and
// cross-connection notifications alike, are enqueued on out and written by a
// single writer goroutine, so concurrent senders never interleave bytes and
// never contend with this connection's read loop.
type Conn struct {
	id     string
	nc     net.Conn
	logger *zap.Logger

	out     chan string
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newConn(nc net.Conn, logger *zap.Logger, queueSize int) *Conn {
	c := &Conn{
		id:      uuid.NewString(),
		nc:      nc,
		logger:  logger,
		out:     make(chan string, queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// ID returns the connection's identifier, used as the session binding.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

// Send enqueues an encoded frame body for delivery. It is safe to call from
// any goroutine and never blocks: a full queue is an error, not a stall, so a
// slow consumer cannot back-pressure an unrelated worker.
func (c *Conn) Send(frame string) error {
	select {
	case <-c.closing:
		return ErrConnClosed
	default:
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.closing:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// writeLoop is the sole writer on the socket. On shutdown it drains frames
// that were enqueued before Close, so a response to the peer's final request
// still goes out after the read side saw EOF.
func (c *Conn) writeLoop() {
	defer close(c.done)
	for {
		select {
		case frame := <-c.out:
			if err := protocol.WriteFrame(c.nc, frame); err != nil {
				c.logger.Debug("write failed, closing connection",
					zap.String("conn_id", c.id),
					zap.Error(err))
				c.signalClose()
				_ = c.nc.Close()
				return
			}
		case <-c.closing:
			c.flush()
			_ = c.nc.Close()
			return
		}
	}
}

// flush writes whatever is already queued. The write deadline armed by Close
// bounds the total time spent here.
func (c *Conn) flush() {
	for {
		select {
		case frame := <-c.out:
			if err := protocol.WriteFrame(c.nc, frame); err != nil {
				c.logger.Debug("flush write failed",
					zap.String("conn_id", c.id),
					zap.Error(err))
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) signalClose() {
	c.once.Do(func() {
		close(c.closing)
	})
}

// Close shuts the connection down: pending outbound frames are flushed under
// a deadline, then the socket is closed. It blocks until the writer has
// finished, is safe to call more than once and from any goroutine, and the
// read loop observes it as a read error.
func (c *Conn) Close() {
	c.once.Do(func() {
		// Unblocks an in-flight write to a stalled peer and bounds the
		// flush of anything still queued.
		_ = c.nc.SetWriteDeadline(time.Now().Add(flushTimeout))
		close(c.closing)
	})
	<-c.done
}

// Done is closed once the connection has fully shut down.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}
