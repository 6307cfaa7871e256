package database

import "time"

// Friend request and invitation states.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// User is a registered account. Password holds the bcrypt hash, never the
// plaintext.
type User struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:50"`
	Password  string    `json:"-" gorm:"size:100"`
	Email     string    `json:"email" gorm:"size:100"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequest is a pending, accepted or declined invitation between users.
type FriendRequest struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SenderID   int64     `json:"sender_id" gorm:"index:idx_friend_req_pair,unique"`
	ReceiverID int64     `json:"receiver_id" gorm:"index:idx_friend_req_pair,unique"`
	Status     string    `json:"status" gorm:"size:16;default:pending"`
	CreatedAt  time.Time `json:"created_at"`
}

// Friendship is one direction of an established friend relation; both rows
// are written when a request is accepted.
type Friendship struct {
	ID       int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID   int64 `json:"user_id" gorm:"index:idx_friendship_pair,unique"`
	FriendID int64 `json:"friend_id" gorm:"index:idx_friendship_pair,unique"`
}

// Event is a scheduled gathering.
type Event struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatorID   int64     `json:"creator_id" gorm:"index"`
	Title       string    `json:"title" gorm:"size:200"`
	Description string    `json:"description" gorm:"size:2000"`
	Location    string    `json:"location" gorm:"size:200"`
	EventTime   string    `json:"event_time" gorm:"size:32"` // YYYY-MM-DD HH:MM:SS
	EventType   string    `json:"event_type" gorm:"size:32"` // public or private
	CreatedAt   time.Time `json:"created_at"`
}

// EventParticipant links a user to an event they joined.
type EventParticipant struct {
	ID      int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID int64 `json:"event_id" gorm:"index:idx_participant_pair,unique"`
	UserID  int64 `json:"user_id" gorm:"index:idx_participant_pair,unique"`
}

// EventInvitation invites a user to an event.
type EventInvitation struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID    int64     `json:"event_id" gorm:"index:idx_invitation_tuple,unique"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id" gorm:"index:idx_invitation_tuple,unique"`
	Status     string    `json:"status" gorm:"size:16;default:pending"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventJoinRequest asks an event's creator for admission.
type EventJoinRequest struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EventID   int64     `json:"event_id" gorm:"index:idx_joinreq_pair,unique"`
	UserID    int64     `json:"user_id" gorm:"index:idx_joinreq_pair,unique"`
	Status    string    `json:"status" gorm:"size:16;default:pending"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityEntry records one successful mutating command for a user.
type ActivityEntry struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID    int64     `json:"user_id" gorm:"index"`
	Kind      string    `json:"kind" gorm:"size:50"`
	Details   string    `json:"details" gorm:"size:500"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendRequestInfo is a pending incoming request joined with the sender's
// username for display.
type FriendRequestInfo struct {
	RequestID      int64
	SenderID       int64
	SenderUsername string
	CreatedAt      time.Time
}

// InvitationInfo is a pending invitation joined with event and sender names.
type InvitationInfo struct {
	InvitationID   int64
	EventID        int64
	EventTitle     string
	SenderUsername string
}

// JoinRequestInfo is a pending join request joined with the requester's name.
type JoinRequestInfo struct {
	RequestID int64
	UserID    int64
	Username  string
}
