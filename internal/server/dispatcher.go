package server

import (
	"context"
	"time"

	"github.com/gatherlab/gatherd/internal/protocol"
	"github.com/gatherlab/gatherd/pkg/metrics"

	"go.uber.org/zap"
)

// HandlerFunc processes one decoded request on behalf of conn and returns the
// response to send back on the same connection.
type HandlerFunc func(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response

// Dispatcher routes requests to their command handlers.
type Dispatcher struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	handlers map[string]HandlerFunc
}

func NewDispatcher(logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		logger:   logger,
		metrics:  m,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a command name to its handler. Later registrations replace
// earlier ones.
func (d *Dispatcher) Register(command string, h HandlerFunc) {
	d.handlers[command] = h
}

// Dispatch runs the handler for req. Unknown commands are not distinguishable
// from internal failures on the wire, matching the server's catch-all error
// response.
func (d *Dispatcher) Dispatch(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	start := time.Now()

	h, ok := d.handlers[req.Command]
	if !ok {
		d.logger.Warn("unknown command",
			zap.String("command", req.Command),
			zap.String("conn_id", conn.ID()))
		resp := protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
		d.metrics.RequestDone(req.Command, resp.Code, start)
		return resp
	}

	resp := h(ctx, conn, req)
	d.metrics.RequestDone(req.Command, resp.Code, start)
	return resp
}
