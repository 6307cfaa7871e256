// Package session tracks which user is logged in on which connection. A
// session is issued on login, bound to exactly one live connection, and torn
// down by logout, idle expiry, or the owning connection closing.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrSessionNotFound is returned for unknown, inactive or expired tokens.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserActive is returned by Create when the user already has an
	// active session on another connection.
	ErrUserActive = errors.New("user already has an active session")

	// ErrStoreFull is returned by Create when the store is at capacity and
	// the expiry sweep reclaimed nothing.
	ErrStoreFull = errors.New("session store is full")

	// ErrTokenCollision is returned when a freshly generated token matches
	// a live one. With 128 random bits this indicates a broken entropy
	// source, so the create fails rather than overwriting.
	ErrTokenCollision = errors.New("token collision")
)

// Session binds an authenticated user to one live connection.
type Session struct {
	Token        string    `json:"token"`
	UserID       int64     `json:"user_id"`
	ConnID       string    `json:"conn_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Store manages active sessions. All methods are safe for concurrent use
// from any connection worker.
type Store interface {
	// Create issues a new session for userID bound to connID. It fails
	// with ErrUserActive if the user is already logged in elsewhere, and
	// with ErrStoreFull if the store is at capacity after a sweep.
	Create(ctx context.Context, userID int64, connID string) (string, error)

	// FindByToken returns the session for token, or ErrSessionNotFound for
	// unknown or expired tokens. It does not extend the session's life;
	// call Touch for that.
	FindByToken(ctx context.Context, token string) (*Session, error)

	// Touch advances the session's last-activity time.
	Touch(ctx context.Context, token string) error

	// FindByUser returns the user's active session, if any. Used to route
	// notifications and to enforce the single-session policy.
	FindByUser(ctx context.Context, userID int64) (*Session, error)

	// FindByConnection returns the session bound to connID, if any. Used
	// exclusively by connection teardown.
	FindByConnection(ctx context.Context, connID string) (*Session, error)

	// Destroy invalidates the session for token. Destroying an unknown or
	// already-destroyed token is a no-op.
	Destroy(ctx context.Context, token string) error

	// SweepExpired deactivates every session idle longer than the timeout
	// and returns how many it reclaimed.
	SweepExpired(ctx context.Context) int

	// Count returns the number of active sessions.
	Count(ctx context.Context) int
}

// newToken returns 32 hex characters from a CSPRNG.
func newToken() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
