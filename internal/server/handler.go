package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gatherlab/gatherd/internal/database"
	"github.com/gatherlab/gatherd/internal/protocol"
	"github.com/gatherlab/gatherd/internal/session"
	"github.com/gatherlab/gatherd/pkg/metrics"

	"go.uber.org/zap"
)

// Handlers implements every protocol command on top of the session store and
// the database. One instance serves all connections.
type Handlers struct {
	logger   *zap.Logger
	db       database.Database
	sessions session.Store
	hub      *Hub
	metrics  *metrics.Metrics
}

func NewHandlers(logger *zap.Logger, db database.Database, sessions session.Store, hub *Hub, m *metrics.Metrics) *Handlers {
	return &Handlers{
		logger:   logger,
		db:       db,
		sessions: sessions,
		hub:      hub,
		metrics:  m,
	}
}

// RegisterAll wires every command into the dispatcher.
func (h *Handlers) RegisterAll(d *Dispatcher) {
	d.Register(protocol.CmdRegister, h.HandleRegister)
	d.Register(protocol.CmdLogin, h.HandleLogin)
	d.Register(protocol.CmdLogout, h.HandleLogout)
	d.Register(protocol.CmdFriendInvite, h.HandleFriendInvite)
	d.Register(protocol.CmdFriendRespond, h.HandleFriendRespond)
	d.Register(protocol.CmdFriendRemove, h.HandleFriendRemove)
	d.Register(protocol.CmdFriendList, h.HandleFriendList)
	d.Register(protocol.CmdFriendRequests, h.HandleFriendRequests)
	d.Register(protocol.CmdEventCreate, h.HandleEventCreate)
	d.Register(protocol.CmdEventUpdate, h.HandleEventUpdate)
	d.Register(protocol.CmdEventDelete, h.HandleEventDelete)
	d.Register(protocol.CmdEventList, h.HandleEventList)
	d.Register(protocol.CmdEventMine, h.HandleEventMine)
	d.Register(protocol.CmdEventDetail, h.HandleEventDetail)
	d.Register(protocol.CmdEventSearch, h.HandleEventSearch)
	d.Register(protocol.CmdEventJoin, h.HandleEventJoin)
	d.Register(protocol.CmdEventLeave, h.HandleEventLeave)
	d.Register(protocol.CmdEventMembers, h.HandleEventParticipants)
	d.Register(protocol.CmdEventInvite, h.HandleEventInvite)
	d.Register(protocol.CmdEventInviteResp, h.HandleEventInviteRespond)
	d.Register(protocol.CmdInvitationList, h.HandleInvitationList)
	d.Register(protocol.CmdEventReqJoin, h.HandleEventRequestJoin)
	d.Register(protocol.CmdEventApprove, h.HandleEventApproveJoin)
	d.Register(protocol.CmdEventJoinReqs, h.HandleEventJoinRequests)
	d.Register(protocol.CmdActivityList, h.HandleActivityList)
}

// authenticate validates the session token carried as the first request field
// and extends its life. On failure the returned response is non-nil and must
// be sent as-is.
func (h *Handlers) authenticate(ctx context.Context, token string) (*session.Session, *protocol.Response) {
	sess, err := h.sessions.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, protocol.NewResponse(protocol.StatusUnauthorized, "Invalid or expired session", "")
		}
		h.logger.Error("session lookup failed", zap.Error(err))
		return nil, protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
	}
	if err := h.sessions.Touch(ctx, sess.Token); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		h.logger.Warn("session touch failed", zap.Error(err))
	}
	return sess, nil
}

// errResponse maps database errors onto protocol status codes. Anything
// unrecognized is logged and reported as an internal error.
func (h *Handlers) errResponse(err error) *protocol.Response {
	switch {
	case errors.Is(err, database.ErrUserNotFound):
		return protocol.NewResponse(protocol.StatusNotFound, "User not found", "")
	case errors.Is(err, database.ErrUsernameTaken):
		return protocol.NewResponse(protocol.StatusConflict, "Username already exists", "")
	case errors.Is(err, database.ErrAlreadyFriends):
		return protocol.NewResponse(protocol.StatusConflict, "Already friends", "")
	case errors.Is(err, database.ErrRequestPending):
		return protocol.NewResponse(protocol.StatusConflict, "Request already pending", "")
	case errors.Is(err, database.ErrRequestNotFound):
		return protocol.NewResponse(protocol.StatusNotFound, "Request not found", "")
	case errors.Is(err, database.ErrNotFriends):
		return protocol.NewResponse(protocol.StatusNotFound, "Not friends with this user", "")
	case errors.Is(err, database.ErrEventNotFound):
		return protocol.NewResponse(protocol.StatusNotFound, "Event not found", "")
	case errors.Is(err, database.ErrNotEventOwner):
		return protocol.NewResponse(protocol.StatusUnauthorized, "Only the event creator may do this", "")
	case errors.Is(err, database.ErrAlreadyJoined):
		return protocol.NewResponse(protocol.StatusConflict, "Already participating", "")
	case errors.Is(err, database.ErrNotParticipant):
		return protocol.NewResponse(protocol.StatusNotFound, "Not participating in this event", "")
	case errors.Is(err, database.ErrAlreadyInvited):
		return protocol.NewResponse(protocol.StatusConflict, "Invitation already pending", "")
	default:
		h.logger.Error("database operation failed", zap.Error(err))
		return protocol.NewResponse(protocol.StatusServerError, "Internal server error", "")
	}
}

// badFields is the response for a wrong field count.
func badFields() *protocol.Response {
	return protocol.NewResponse(protocol.StatusBadRequest, "Invalid message format", "")
}

// parseID parses a decimal entity ID field.
func parseID(field string) (int64, bool) {
	id, err := strconv.ParseInt(field, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// notify delivers a server-initiated frame to userID's live connection, if
// any. Delivery is best effort: an offline user or full queue drops the
// notification without failing the request that triggered it.
func (h *Handlers) notify(ctx context.Context, userID int64, command string, fields ...string) {
	frame, err := protocol.EncodeRequest(command, fields...)
	if err != nil {
		h.logger.Error("notification encode failed",
			zap.String("command", command),
			zap.Error(err))
		return
	}

	sess, err := h.sessions.FindByUser(ctx, userID)
	if err != nil {
		h.metrics.NotificationSent(command, false)
		return
	}
	conn := h.hub.Get(sess.ConnID)
	if conn == nil {
		h.metrics.NotificationSent(command, false)
		return
	}
	if err := conn.Send(frame); err != nil {
		h.logger.Debug("notification dropped",
			zap.String("command", command),
			zap.Int64("user_id", userID),
			zap.Error(err))
		h.metrics.NotificationSent(command, false)
		return
	}
	h.metrics.NotificationSent(command, true)
}

// logActivity records a successful mutating command. Failures are logged and
// otherwise ignored; the command already succeeded.
func (h *Handlers) logActivity(ctx context.Context, userID int64, kind, format string, args ...any) {
	if err := h.db.LogActivity(ctx, userID, kind, fmt.Sprintf(format, args...)); err != nil {
		h.logger.Warn("activity log write failed", zap.Error(err))
	}
}
