// Package database persists users, the friends graph and events behind a
// narrow interface so the protocol layer never sees SQL.
package database

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrAlreadyFriends  = errors.New("users are already friends")
	ErrRequestPending  = errors.New("friend request already pending")
	ErrRequestNotFound = errors.New("request not found")
	ErrNotFriends      = errors.New("users are not friends")
	ErrEventNotFound   = errors.New("event not found")
	ErrNotEventOwner   = errors.New("event belongs to another user")
	ErrAlreadyJoined   = errors.New("already participating in event")
	ErrNotParticipant  = errors.New("not participating in event")
	ErrAlreadyInvited  = errors.New("invitation already pending")
)

// Database defines the persistence operations the handlers depend on.
type Database interface {
	// Close closes the database connection.
	Close() error

	// CreateUser stores a new user. The password must already be hashed.
	CreateUser(ctx context.Context, user *User) error

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// CreateFriendRequest records a pending request and returns its ID.
	CreateFriendRequest(ctx context.Context, senderID, receiverID int64) (int64, error)

	// GetFriendRequest retrieves a request by ID.
	GetFriendRequest(ctx context.Context, id int64) (*FriendRequest, error)

	// AcceptFriendRequest marks a pending request accepted and establishes
	// the friendship in both directions.
	AcceptFriendRequest(ctx context.Context, id int64) error

	// DeclineFriendRequest marks a pending request declined.
	DeclineFriendRequest(ctx context.Context, id int64) error

	// RemoveFriendship deletes the friendship in both directions.
	RemoveFriendship(ctx context.Context, userID, friendID int64) error

	// ListFriends returns the user's friends.
	ListFriends(ctx context.Context, userID int64) ([]*User, error)

	// ListFriendRequests returns pending requests addressed to the user.
	ListFriendRequests(ctx context.Context, userID int64) ([]*FriendRequestInfo, error)

	// AreFriends reports whether a friendship exists.
	AreFriends(ctx context.Context, userID, friendID int64) (bool, error)

	// CreateEvent stores a new event; the creator joins automatically.
	CreateEvent(ctx context.Context, event *Event) error

	// UpdateEvent updates an event owned by creatorID.
	UpdateEvent(ctx context.Context, creatorID int64, event *Event) error

	// DeleteEvent deletes an event owned by creatorID.
	DeleteEvent(ctx context.Context, creatorID, eventID int64) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, eventID int64) (*Event, error)

	// ListEvents returns all events, newest first.
	ListEvents(ctx context.Context) ([]*Event, error)

	// ListUserEvents returns events the user created or joined.
	ListUserEvents(ctx context.Context, userID int64) ([]*Event, error)

	// SearchEvents returns events whose title or location matches keyword.
	SearchEvents(ctx context.Context, keyword string) ([]*Event, error)

	// JoinEvent adds the user as a participant.
	JoinEvent(ctx context.Context, userID, eventID int64) error

	// LeaveEvent removes the user from the participants.
	LeaveEvent(ctx context.Context, userID, eventID int64) error

	// ListParticipants returns the users participating in an event.
	ListParticipants(ctx context.Context, eventID int64) ([]*User, error)

	// IsParticipant reports whether the user participates in the event.
	IsParticipant(ctx context.Context, userID, eventID int64) (bool, error)

	// CreateInvitation invites receiverID to an event and returns the
	// invitation ID.
	CreateInvitation(ctx context.Context, eventID, senderID, receiverID int64) (int64, error)

	// RespondInvitation accepts or declines a pending invitation addressed
	// to receiverID; accepting joins the event.
	RespondInvitation(ctx context.Context, receiverID, invitationID int64, accept bool) error

	// ListInvitations returns pending invitations addressed to the user.
	ListInvitations(ctx context.Context, receiverID int64) ([]*InvitationInfo, error)

	// CreateJoinRequest asks the event creator for admission.
	CreateJoinRequest(ctx context.Context, userID, eventID int64) (int64, error)

	// ResolveJoinRequest approves or rejects a pending join request on an
	// event owned by creatorID; approving joins the requester.
	ResolveJoinRequest(ctx context.Context, creatorID, eventID int64, username string, approve bool) error

	// ListJoinRequests returns pending join requests for an event owned by
	// creatorID.
	ListJoinRequests(ctx context.Context, creatorID, eventID int64) ([]*JoinRequestInfo, error)

	// LogActivity records a successful mutating command.
	LogActivity(ctx context.Context, userID int64, kind, details string) error

	// ListActivities returns the user's most recent activity entries.
	ListActivities(ctx context.Context, userID int64, limit int) ([]*ActivityEntry, error)
}
