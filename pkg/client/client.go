// Package client is a gatherd protocol client: it dials the server, issues
// requests and surfaces server-initiated notifications on a channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gatherlab/gatherd/internal/protocol"
)

// ErrClosed is returned by Do after the client shut down.
var ErrClosed = errors.New("client closed")

const notificationBuffer = 16

// Client holds one connection to a gatherd server. Requests are serialized;
// the protocol has no request IDs, so at most one request may be in flight.
// Notifications arriving between responses are delivered on Notifications.
type Client struct {
	nc     net.Conn
	framer *protocol.Framer

	reqMu sync.Mutex

	responses     chan *protocol.Response
	notifications chan *protocol.Request

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	readErr error
}

// Dial connects to a gatherd server. maxFrameBytes bounds inbound frames the
// same way the server bounds them; pass 0 for the 4 KiB default.
func Dial(addr string, maxFrameBytes int) (*Client, error) {
	if maxFrameBytes <= 0 {
		maxFrameBytes = 4096
	}
	nc, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	c := &Client{
		nc:            nc,
		framer:        protocol.NewFramer(nc, maxFrameBytes),
		responses:     make(chan *protocol.Response),
		notifications: make(chan *protocol.Request, notificationBuffer),
		closed:        make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop is the only reader on the socket. Frames whose first token parses
// as a status code are responses to the pending request; everything else is a
// notification.
func (c *Client) readLoop() {
	for {
		frame, err := c.framer.ReadFrame()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			c.Close()
			return
		}

		if resp, err := protocol.DecodeResponse(frame); err == nil {
			select {
			case c.responses <- resp:
			case <-c.closed:
				return
			}
			continue
		}

		req, err := protocol.DecodeRequest(frame)
		if err != nil {
			continue
		}
		select {
		case c.notifications <- req:
		default:
			// Receiver is not draining; drop rather than stall the
			// response path.
		}
	}
}

// Do sends one request and waits for its response.
func (c *Client) Do(ctx context.Context, command string, fields ...string) (*protocol.Response, error) {
	frame, err := protocol.EncodeRequest(command, fields...)
	if err != nil {
		return nil, err
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.closed:
		return nil, c.closeError()
	default:
	}

	if err := protocol.WriteFrame(c.nc, frame); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case resp := <-c.responses:
		return resp, nil
	case <-c.closed:
		return nil, c.closeError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notifications returns the channel carrying server-initiated frames. The
// channel is buffered; notifications beyond the buffer are dropped.
func (c *Client) Notifications() <-chan *protocol.Request {
	return c.notifications
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.nc.Close()
	})
	return nil
}

func (c *Client) closeError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return ErrClosed
}
