package server

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gatherlab/gatherd/internal/database"
	"github.com/gatherlab/gatherd/internal/protocol"
)

const eventTimeLayout = "2006-01-02 15:04:05"

// defaultActivityLimit bounds ACTIVITY_LIST when the client sends no limit.
const defaultActivityLimit = 20

func validEventType(t string) bool {
	return t == "public" || t == "private"
}

// HandleEventCreate stores a new event with the caller as creator and first
// participant: EVENT_CREATE|token|title|description|location|event_time|event_type.
// The event ID comes back in EXTRA.
func (h *Handlers) HandleEventCreate(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 6 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	title, description, location := req.Fields[1], req.Fields[2], req.Fields[3]
	eventTime, eventType := req.Fields[4], req.Fields[5]

	if title == "" {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Title must not be empty", "")
	}
	if _, err := time.Parse(eventTimeLayout, eventTime); err != nil {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Event time must be YYYY-MM-DD HH:MM:SS", "")
	}
	if !validEventType(eventType) {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Event type must be public or private", "")
	}

	event := &database.Event{
		CreatorID:   sess.UserID,
		Title:       title,
		Description: description,
		Location:    location,
		EventTime:   eventTime,
		EventType:   eventType,
	}
	if err := h.db.CreateEvent(ctx, event); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "event_create", "created event %q", title)

	return protocol.NewResponse(protocol.StatusCreated, "Event created", strconv.FormatInt(event.ID, 10))
}

// HandleEventUpdate rewrites an event owned by the caller:
// EVENT_UPDATE|token|event_id|title|description|location|event_time|event_type.
func (h *Handlers) HandleEventUpdate(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 7 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}
	title, description, location := req.Fields[2], req.Fields[3], req.Fields[4]
	eventTime, eventType := req.Fields[5], req.Fields[6]

	if title == "" {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Title must not be empty", "")
	}
	if _, err := time.Parse(eventTimeLayout, eventTime); err != nil {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Event time must be YYYY-MM-DD HH:MM:SS", "")
	}
	if !validEventType(eventType) {
		return protocol.NewResponse(protocol.StatusUnprocessable, "Event type must be public or private", "")
	}

	event := &database.Event{
		ID:          eventID,
		Title:       title,
		Description: description,
		Location:    location,
		EventTime:   eventTime,
		EventType:   eventType,
	}
	if err := h.db.UpdateEvent(ctx, sess.UserID, event); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "event_update", "updated event %d", eventID)

	return protocol.NewResponse(protocol.StatusOK, "Event updated", "")
}

// HandleEventDelete removes an event owned by the caller:
// EVENT_DELETE|token|event_id.
func (h *Handlers) HandleEventDelete(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	if err := h.db.DeleteEvent(ctx, sess.UserID, eventID); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "event_delete", "deleted event %d", eventID)

	return protocol.NewResponse(protocol.StatusOK, "Event deleted", "")
}

func eventLines(events []*database.Event) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, fmt.Sprintf("%d|%s|%s|%s|%s", e.ID, e.Title, e.Location, e.EventTime, e.EventType))
	}
	return strings.Join(lines, "\n")
}

// HandleEventList returns every event, newest first: EVENT_LIST|token. EXTRA
// holds one "id|title|location|event_time|event_type" record per line.
func (h *Handlers) HandleEventList(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	if _, resp := h.authenticate(ctx, req.Fields[0]); resp != nil {
		return resp
	}

	events, err := h.db.ListEvents(ctx)
	if err != nil {
		return h.errResponse(err)
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d events", len(events)), eventLines(events))
}

// HandleEventMine returns events the caller created or joined: EVENT_MINE|token.
func (h *Handlers) HandleEventMine(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	events, err := h.db.ListUserEvents(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d events", len(events)), eventLines(events))
}

// HandleEventDetail returns one event in full: EVENT_DETAIL|token|event_id.
// EXTRA is "id|title|description|location|event_time|event_type|creator|participants".
func (h *Handlers) HandleEventDetail(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	if _, resp := h.authenticate(ctx, req.Fields[0]); resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	event, err := h.db.GetEvent(ctx, eventID)
	if err != nil {
		return h.errResponse(err)
	}
	creator, err := h.db.GetUserByID(ctx, event.CreatorID)
	if err != nil {
		return h.errResponse(err)
	}
	participants, err := h.db.ListParticipants(ctx, eventID)
	if err != nil {
		return h.errResponse(err)
	}

	extra := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%d",
		event.ID, event.Title, event.Description, event.Location,
		event.EventTime, event.EventType, creator.Username, len(participants))
	return protocol.NewResponse(protocol.StatusOK, "Event details", extra)
}

// HandleEventSearch filters events by keyword against title and location:
// EVENT_SEARCH|token|keyword.
func (h *Handlers) HandleEventSearch(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	if _, resp := h.authenticate(ctx, req.Fields[0]); resp != nil {
		return resp
	}
	keyword := req.Fields[1]
	if keyword == "" {
		return protocol.NewResponse(protocol.StatusBadRequest, "Search keyword must not be empty", "")
	}

	events, err := h.db.SearchEvents(ctx, keyword)
	if err != nil {
		return h.errResponse(err)
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d events", len(events)), eventLines(events))
}

// HandleEventJoin adds the caller to a public event: EVENT_JOIN|token|event_id.
// Private events require an invitation or an approved join request.
func (h *Handlers) HandleEventJoin(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	event, err := h.db.GetEvent(ctx, eventID)
	if err != nil {
		return h.errResponse(err)
	}
	if event.EventType == "private" && event.CreatorID != sess.UserID {
		return protocol.NewResponse(protocol.StatusUnauthorized, "Private event: request to join or await an invitation", "")
	}

	if err := h.db.JoinEvent(ctx, sess.UserID, eventID); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "event_join", "joined event %d", eventID)

	return protocol.NewResponse(protocol.StatusOK, "Joined event", "")
}

// HandleEventLeave removes the caller from an event: EVENT_LEAVE|token|event_id.
func (h *Handlers) HandleEventLeave(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	if err := h.db.LeaveEvent(ctx, sess.UserID, eventID); err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "event_leave", "left event %d", eventID)

	return protocol.NewResponse(protocol.StatusOK, "Left event", "")
}

// HandleEventParticipants lists who joined: EVENT_PARTICIPANTS|token|event_id.
// EXTRA holds one "id|username" record per line.
func (h *Handlers) HandleEventParticipants(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	if _, resp := h.authenticate(ctx, req.Fields[0]); resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	if _, err := h.db.GetEvent(ctx, eventID); err != nil {
		return h.errResponse(err)
	}
	participants, err := h.db.ListParticipants(ctx, eventID)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(participants))
	for _, p := range participants {
		lines = append(lines, fmt.Sprintf("%d|%s", p.ID, p.Username))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d participants", len(participants)), strings.Join(lines, "\n"))
}

// HandleEventInvite invites another user to an event the caller participates
// in: EVENT_INVITE|token|event_id|username. The invitee is notified if online.
func (h *Handlers) HandleEventInvite(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 3 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	event, err := h.db.GetEvent(ctx, eventID)
	if err != nil {
		return h.errResponse(err)
	}
	participant, err := h.db.IsParticipant(ctx, sess.UserID, eventID)
	if err != nil {
		return h.errResponse(err)
	}
	if !participant {
		return protocol.NewResponse(protocol.StatusUnauthorized, "Join the event before inviting others", "")
	}

	target, err := h.db.GetUserByUsername(ctx, req.Fields[2])
	if err != nil {
		return h.errResponse(err)
	}
	if target.ID == sess.UserID {
		return protocol.NewResponse(protocol.StatusBadRequest, "Cannot invite yourself", "")
	}

	invitationID, err := h.db.CreateInvitation(ctx, eventID, sess.UserID, target.ID)
	if err != nil {
		return h.errResponse(err)
	}

	sender, err := h.db.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}
	h.notify(ctx, target.ID, protocol.NotifyEventInvite,
		sender.Username, event.Title, strconv.FormatInt(invitationID, 10))
	h.logActivity(ctx, sess.UserID, "event_invite", "invited %s to event %d", target.Username, eventID)

	return protocol.NewResponse(protocol.StatusOK, "Invitation sent", strconv.FormatInt(invitationID, 10))
}

// HandleEventInviteRespond accepts or declines a pending invitation:
// EVENT_INVITE_RESPOND|token|invitation_id|accept. Accepting joins the event.
func (h *Handlers) HandleEventInviteRespond(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 3 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	invitationID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}
	accept, err := strconv.ParseBool(req.Fields[2])
	if err != nil {
		return badFields()
	}

	if err := h.db.RespondInvitation(ctx, sess.UserID, invitationID, accept); err != nil {
		return h.errResponse(err)
	}

	if accept {
		h.logActivity(ctx, sess.UserID, "invite_accept", "accepted invitation %d", invitationID)
		return protocol.NewResponse(protocol.StatusOK, "Invitation accepted", "")
	}
	h.logActivity(ctx, sess.UserID, "invite_decline", "declined invitation %d", invitationID)
	return protocol.NewResponse(protocol.StatusOK, "Invitation declined", "")
}

// HandleInvitationList returns pending invitations addressed to the caller:
// INVITATION_LIST|token. EXTRA holds one
// "invitation_id|event_id|event_title|sender" record per line.
func (h *Handlers) HandleInvitationList(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 1 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}

	invitations, err := h.db.ListInvitations(ctx, sess.UserID)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(invitations))
	for _, inv := range invitations {
		lines = append(lines, fmt.Sprintf("%d|%d|%s|%s",
			inv.InvitationID, inv.EventID, inv.EventTitle, inv.SenderUsername))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d invitations", len(invitations)), strings.Join(lines, "\n"))
}

// HandleEventRequestJoin asks the creator of a private event for admission:
// EVENT_REQUEST_JOIN|token|event_id.
func (h *Handlers) HandleEventRequestJoin(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	if _, err := h.db.GetEvent(ctx, eventID); err != nil {
		return h.errResponse(err)
	}
	requestID, err := h.db.CreateJoinRequest(ctx, sess.UserID, eventID)
	if err != nil {
		return h.errResponse(err)
	}
	h.logActivity(ctx, sess.UserID, "join_request", "requested to join event %d", eventID)

	return protocol.NewResponse(protocol.StatusOK, "Join request sent", strconv.FormatInt(requestID, 10))
}

// HandleEventApproveJoin resolves a pending join request on an event the
// caller owns: EVENT_APPROVE_JOIN|token|event_id|username|approve.
func (h *Handlers) HandleEventApproveJoin(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 4 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}
	approve, err := strconv.ParseBool(req.Fields[3])
	if err != nil {
		return badFields()
	}

	if err := h.db.ResolveJoinRequest(ctx, sess.UserID, eventID, req.Fields[2], approve); err != nil {
		return h.errResponse(err)
	}

	if approve {
		h.logActivity(ctx, sess.UserID, "join_approve", "approved %s for event %d", req.Fields[2], eventID)
		return protocol.NewResponse(protocol.StatusOK, "Join request approved", "")
	}
	h.logActivity(ctx, sess.UserID, "join_reject", "rejected %s for event %d", req.Fields[2], eventID)
	return protocol.NewResponse(protocol.StatusOK, "Join request rejected", "")
}

// HandleEventJoinRequests lists pending join requests on an event the caller
// owns: EVENT_JOIN_REQUESTS|token|event_id. EXTRA holds one
// "request_id|user_id|username" record per line.
func (h *Handlers) HandleEventJoinRequests(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) != 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	eventID, ok := parseID(req.Fields[1])
	if !ok {
		return badFields()
	}

	requests, err := h.db.ListJoinRequests(ctx, sess.UserID, eventID)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(requests))
	for _, r := range requests {
		lines = append(lines, fmt.Sprintf("%d|%d|%s", r.RequestID, r.UserID, r.Username))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d join requests", len(requests)), strings.Join(lines, "\n"))
}

// HandleActivityList returns the caller's recent activity:
// ACTIVITY_LIST|token[|limit]. EXTRA holds one "timestamp|kind|details"
// record per line, newest first.
func (h *Handlers) HandleActivityList(ctx context.Context, conn *Conn, req *protocol.Request) *protocol.Response {
	if len(req.Fields) < 1 || len(req.Fields) > 2 {
		return badFields()
	}
	sess, resp := h.authenticate(ctx, req.Fields[0])
	if resp != nil {
		return resp
	}
	limit := defaultActivityLimit
	if len(req.Fields) == 2 {
		n, err := strconv.Atoi(req.Fields[1])
		if err != nil || n <= 0 {
			return badFields()
		}
		limit = n
	}

	entries, err := h.db.ListActivities(ctx, sess.UserID, limit)
	if err != nil {
		return h.errResponse(err)
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s|%s|%s",
			e.CreatedAt.Format(eventTimeLayout), e.Kind, e.Details))
	}
	return protocol.NewResponse(protocol.StatusOK, fmt.Sprintf("%d activities", len(entries)), strings.Join(lines, "\n"))
}
