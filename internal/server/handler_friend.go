package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gatherlab/gatherd/internal/database"
	"github.com/gatherlab/gatherd/internal/protocol"
)

// HandleFriendInvite sends a friend request: FRIEND_INVITE|token|username.
// The request ID comes back in EXTRA so the sender can reference it, and the
// target is notified if online.
func (h *Handlers) HandleFriendInvite(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	target, err := h.db.GetUserByUsername(ctx, req.Fields[1])
	if err != nil {
		return h.errResponse(err)
	}
	if target.ID == sess.UserID {
		return protocol.NewResponse(protocol.StatusBadRequest, "Cannot befriend yourself", "")
	}

	requestID, err := h.db.CreateFriendRequest(ctx, sess.UserID, target.ID)
	if err != nil {
		return h.errResponse(err)
	}

	sender, err := h.db.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}
	h.notify(ctx, target.ID, protocol.NotifyFriendInvite,
		sender.Username, strconv.FormatInt(requestID, 10))
	h.logActivity(ctx, sess.UserID, "friend_invite", "sent friend request to %s", target.Username)

	return protocol.NewResponse(protocol.StatusOK, "Friend request sent", strconv.FormatInt(requestID, 10))
}

// HandleFriendRespond accepts or declines a pending request addressed to the
// caller: FRIEND_RESPOND|token|request_id|accept.
func (h *Handlers) HandleFriendRespond(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 3 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	requestID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}
	accept, err := strconv.ParseBool(req.Fields[2])
	if err != nil {
		return badFields()
	}

	fr, err := h.db.GetFriendRequest(ctx, requestID)
	if err != nil {
		return h.errResponse(err)
	}
	if fr.ReceiverID != sess.UserID || fr.Status != database.StatusPending {
		return protocol.NewResponse(protocol.StatusNotFound, "Request not found", "")
	}

	if accept {
		if err := h.db.AcceptFriendRequest(ctx, requestID); err != nil {
			return h.errResponse(err)
		}
		receiver, err := h.db.GetUserByID(ctx, sess.UserID)
		if err != nil {
			return h.errResponse(err)
		}
		h.notify(ctx, fr.SenderID, protocol.NotifyFriendAccepted, receiver.Username)
		h.logActivity(ctx, sess.UserID, "friend_accept", "accepted friend request %d", requestID)
		return protocol.NewResponse(protocol.StatusOK, "Friend request accepted", "")
	}

	if err := h.db.DeclineFriendRequest(ctx, requestID); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "friend_decline", "declined friend request %d", requestID)
	return protocol.NewResponse(protocol.StatusOK, "Friend request declined", "")
}

// HandleFriendRemove ends a friendship: FRIEND_REMOVE|token|username.
func (h *Handlers) HandleFriendRemove(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	friend, err := h.db.GetUserByUsername(ctx, req.Fields[1])
	if err != nil {
		return h.errResponse(err)
	}
	if err := h.db.RemoveFriendship(ctx, sess.UserID, friend.ID); err != nil {
		return h.errResponse(err)
	}

	self, err := h.db.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}
	h.notify(ctx, friend.ID, protocol.NotifyFriendRemoved, self.Username)
	h.logActivity(ctx, sess.UserID, "friend_remove", "removed friend %s", friend.Username)

	return protocol.NewResponse(protocol.StatusOK, "Friend removed", "")
}

// HandleFriendList returns the caller's friends: FRIEND_LIST|token. EXTRA
// holds one "id|username|email" record per line.
func (h *Handlers) HandleFriendList(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	friends, err := h.db.ListFriends(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(friends))
	for _, f := range friends {
		lines = append(lines, fmt.Sprintf("%d|%s|%s", f.ID, f.Username, f.Email))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d friends", len(friends)), strings.Join(lines, "\n"))
}

// HandleFriendRequests returns pending incoming requests:
// FRIEND_REQUESTS|token. EXTRA holds one "request_id|sender_username" record
// per line.
func (h *Handlers) HandleFriendRequests(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	pending, err := h.db.ListFriendRequests(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(pending))
	for _, p := range pending {
		lines = append(lines, fmt.Sprintf("%d|%s", p.RequestID, p.SenderUsername))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d pending requests", len(pending)), strings.Join(lines, "\n"))
}
