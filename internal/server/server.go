// Package server accepts TCP connections and drives the request/response
// loop for each one: read a frame, decode, dispatch, enqueue the response.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gatherlab/gatherd/internal/common/config"
	"github.com/gatherlab/gatherd/internal/protocol"
	"github.com/gatherlab/gatherd/internal/session"
	"github.com/gatherlab/gatherd/pkg/metrics"

	"go.uber.org/zap"
)

// Server owns the listener and one worker goroutine per connection.
type Server struct {
	logger     *zap.Logger
	cfg        *config.ServerConfig
	sessions   session.Store
	dispatcher *Dispatcher
	hub        *Hub
	metrics    *metrics.Metrics

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	closing  bool
}

func New(logger *zap.Logger, cfg *config.ServerConfig, sessions session.Store, dispatcher *Dispatcher, hub *Hub, m *metrics.Metrics) *Server {
	return &Server{
		logger:     logger,
		cfg:        cfg,
		sessions:   sessions,
		dispatcher: dispatcher,
		hub:        hub,
		metrics:    m,
	}
}

// Serve listens on the configured address and accepts until ctx is canceled
// or Shutdown is called. It blocks for the lifetime of the listener.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return net.ErrClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if s.hub.Len() >= s.cfg.MaxConnections {
			s.logger.Warn("connection limit reached, refusing",
				zap.String("remote", nc.RemoteAddr().String()))
			_ = protocol.WriteFrame(nc, protocol.EncodeResponse(
				protocol.StatusServerError, "Server is full, try again later", ""))
			_ = nc.Close()
			continue
		}

		conn := newConn(nc, s.logger, s.cfg.SendQueueSize)
		s.hub.Add(conn)
		s.metrics.ConnOpened()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listen address, for tests that listen on port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every live connection and waits for the
// workers to drain.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	s.hub.CloseAll()
	s.wg.Wait()
}

// serveConn is the worker loop for one connection. It is the only reader on
// the socket; all writes go through the connection's outbound queue.
func (s *Server) serveConn(ctx context.Context, conn *Conn) {
	remote := conn.RemoteAddr()
	s.logger.Debug("connection open",
		zap.String("conn_id", conn.ID()),
		zap.String("remote", remote))

	defer s.teardown(ctx, conn)

	framer := protocol.NewFramer(conn.nc, s.cfg.MaxFrameBytes)
	for {
		frame, err := framer.ReadFrame()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// Peer hung up; normal disconnect.
			case errors.Is(err, protocol.ErrFrameTooLarge):
				s.metrics.FrameError("too_large")
				s.logger.Warn("oversized frame, dropping connection",
					zap.String("conn_id", conn.ID()),
					zap.String("remote", remote))
			default:
				s.logger.Debug("read failed",
					zap.String("conn_id", conn.ID()),
					zap.Error(err))
			}
			return
		}

		var resp *protocol.Response
		req, err := protocol.DecodeRequest(frame)
		if err != nil {
			// Decode failures get the same catch-all answer as
			// unknown commands; the stream is still in sync, so the
			// connection survives.
			s.metrics.FrameError("malformed")
			resp = protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
		} else {
			resp = s.dispatcher.Dispatch(ctx, conn, req)
		}

		if err := conn.Send(resp.Encode()); err != nil {
			s.logger.Debug("response enqueue failed",
				zap.String("conn_id", conn.ID()),
				zap.Error(err))
			return
		}
	}
}

// teardown runs exactly once per connection: it destroys any session bound to
// the connection, unregisters it from the hub and closes the socket.
func (s *Server) teardown(ctx context.Context, conn *Conn) {
	if sess, err := s.sessions.FindByConnection(ctx, conn.ID()); err == nil {
		if err := s.sessions.Destroy(ctx, sess.Token); err != nil {
			s.logger.Warn("session destroy on disconnect failed",
				zap.String("conn_id", conn.ID()),
				zap.Error(err))
		} else {
			s.metrics.SessionDestroyed()
			s.logger.Info("session ended by disconnect",
				zap.Int64("user_id", sess.UserID),
				zap.String("conn_id", conn.ID()))
		}
	}

	s.hub.Remove(conn.ID())
	conn.Close()
	s.metrics.ConnClosed()
	s.logger.Debug("connection closed", zap.String("conn_id", conn.ID()))
}
