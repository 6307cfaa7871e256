package session

import (
	"context"
	"sync"
	"time"

	"github.com/gatherlab/gatherd/internal/common/config"

	"go.uber.org/zap"
)

// MemoryStore implements Store with an in-process table indexed by token,
// user and connection, so every lookup is a map access rather than a scan.
type MemoryStore struct {
	logger      *zap.Logger
	capacity    int
	idleTimeout time.Duration
	evictOldest bool

	mu      sync.Mutex
	byToken map[string]*Session
	byUser  map[int64]string
	byConn  map[string]string

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(logger *zap.Logger, cfg *config.SessionConfig) *MemoryStore {
	return &MemoryStore{
		logger:      logger.Named("session.store.memory"),
		capacity:    cfg.Capacity,
		idleTimeout: cfg.IdleTimeout,
		evictOldest: cfg.EvictionPolicy == "evict_oldest",
		byToken:     make(map[string]*Session),
		byUser:      make(map[int64]string),
		byConn:      make(map[string]string),
		now:         time.Now,
	}
}

// Create implements Store.Create.
func (s *MemoryStore) Create(_ context.Context, userID int64, connID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale session for the same user must not block a fresh login.
	if token, ok := s.byUser[userID]; ok {
		if sess := s.byToken[token]; sess != nil && !s.expired(sess) {
			return "", ErrUserActive
		}
		s.removeLocked(token)
	}

	if len(s.byToken) >= s.capacity {
		if n := s.sweepLocked(); n == 0 {
			if !s.evictOldest {
				return "", ErrStoreFull
			}
			s.evictOldestLocked()
		}
		if len(s.byToken) >= s.capacity {
			return "", ErrStoreFull
		}
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	if _, exists := s.byToken[token]; exists {
		return "", ErrTokenCollision
	}

	now := s.now()
	sess := &Session{
		Token:        token,
		UserID:       userID,
		ConnID:       connID,
		CreatedAt:    now,
		LastActivity: now,
	}
	s.byToken[token] = sess
	s.byUser[userID] = token
	s.byConn[connID] = token

	s.logger.Debug("session created",
		zap.Int64("user_id", userID),
		zap.String("conn_id", connID))
	return token, nil
}

// FindByToken implements Store.FindByToken. Expiry is checked lazily: an
// expired session is removed here even if no sweep has run yet.
func (s *MemoryStore) FindByToken(_ context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByTokenLocked(token)
}

func (s *MemoryStore) findByTokenLocked(token string) (*Session, error) {
	sess, ok := s.byToken[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expired(sess) {
		s.removeLocked(token)
		return nil, ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// Touch implements Store.Touch.
func (s *MemoryStore) Touch(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byToken[token]
	if !ok || s.expired(sess) {
		return ErrSessionNotFound
	}
	sess.LastActivity = s.now()
	return nil
}

// FindByUser implements Store.FindByUser.
func (s *MemoryStore) FindByUser(_ context.Context, userID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byUser[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.findByTokenLocked(token)
}

// FindByConnection implements Store.FindByConnection.
func (s *MemoryStore) FindByConnection(_ context.Context, connID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byConn[connID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.findByTokenLocked(token)
}

// Destroy implements Store.Destroy.
func (s *MemoryStore) Destroy(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(token)
	return nil
}

// SweepExpired implements Store.SweepExpired.
func (s *MemoryStore) SweepExpired(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.sweepLocked()
	if n > 0 {
		s.logger.Info("expired sessions reclaimed", zap.Int("count", n))
	}
	return n
}

// Count implements Store.Count.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

func (s *MemoryStore) expired(sess *Session) bool {
	return s.now().Sub(sess.LastActivity) > s.idleTimeout
}

func (s *MemoryStore) sweepLocked() int {
	n := 0
	for token, sess := range s.byToken {
		if s.expired(sess) {
			s.removeLocked(token)
			n++
		}
	}
	return n
}

func (s *MemoryStore) evictOldestLocked() {
	var oldest *Session
	for _, sess := range s.byToken {
		if oldest == nil || sess.LastActivity.Before(oldest.LastActivity) {
			oldest = sess
		}
	}
	if oldest != nil {
		s.logger.Warn("evicting oldest session at capacity",
			zap.Int64("user_id", oldest.UserID))
		s.removeLocked(oldest.Token)
	}
}

func (s *MemoryStore) removeLocked(token string) {
	sess, ok := s.byToken[token]
	if !ok {
		return
	}
	delete(s.byToken, token)
	if s.byUser[sess.UserID] == token {
		delete(s.byUser, sess.UserID)
	}
	if s.byConn[sess.ConnID] == token {
		delete(s.byConn, sess.ConnID)
	}
}
