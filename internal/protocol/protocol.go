// Package protocol implements the wire protocol spoken between gatherd and
// its clients: CRLF-terminated text frames carrying pipe-separated requests
// and responses.
package protocol

import "errors"

// Frame terminator and field separator. A field value must not contain the
// separator or either terminator byte; EncodeRequest rejects such values
// instead of silently corrupting the frame.
const (
	Terminator = "\r\n"
	Separator  = '|'
)

var (
	// ErrFrameTooLarge is returned when a frame exceeds the configured
	// maximum size before a terminator arrives. The connection must be
	// closed; there is no way to resynchronize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")

	// ErrMalformedMessage is returned when a frame cannot be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrInvalidField is returned by EncodeRequest when a field value
	// contains the separator or a terminator byte.
	ErrInvalidField = errors.New("field contains reserved byte")
)

// Request commands.
const (
	CmdRegister        = "REGISTER"
	CmdLogin           = "LOGIN"
	CmdLogout          = "LOGOUT"
	CmdFriendInvite    = "FRIEND_INVITE"
	CmdFriendRespond   = "FRIEND_RESPOND"
	CmdFriendRemove    = "FRIEND_REMOVE"
	CmdFriendList      = "FRIEND_LIST"
	CmdFriendRequests  = "FRIEND_REQUESTS"
	CmdEventCreate     = "EVENT_CREATE"
	CmdEventUpdate     = "EVENT_UPDATE"
	CmdEventDelete     = "EVENT_DELETE"
	CmdEventList       = "EVENT_LIST"
	CmdEventMine       = "EVENT_MINE"
	CmdEventDetail     = "EVENT_DETAIL"
	CmdEventSearch     = "EVENT_SEARCH"
	CmdEventJoin       = "EVENT_JOIN"
	CmdEventLeave      = "EVENT_LEAVE"
	CmdEventMembers    = "EVENT_PARTICIPANTS"
	CmdEventInvite     = "EVENT_INVITE"
	CmdEventInviteResp = "EVENT_INVITE_RESPOND"
	CmdInvitationList  = "INVITATION_LIST"
	CmdEventReqJoin    = "EVENT_REQUEST_JOIN"
	CmdEventApprove    = "EVENT_APPROVE_JOIN"
	CmdEventJoinReqs   = "EVENT_JOIN_REQUESTS"
	CmdActivityList    = "ACTIVITY_LIST"
)

// Server-initiated notification commands, delivered on the target user's
// connection outside the request/response cycle.
const (
	NotifyFriendInvite   = "FRIEND_INVITE_NOTIFICATION"
	NotifyFriendAccepted = "FRIEND_ACCEPTED_NOTIFICATION"
	NotifyFriendRemoved  = "FRIEND_REMOVED_NOTIFICATION"
	NotifyEventInvite    = "EVENT_INVITE_NOTIFICATION"
)

// Response status codes.
const (
	StatusOK            = 200
	StatusCreated       = 201
	StatusBadRequest    = 400
	StatusUnauthorized  = 401
	StatusNotFound      = 404
	StatusConflict      = 409
	StatusUnprocessable = 422
	StatusServerError   = 500
)
