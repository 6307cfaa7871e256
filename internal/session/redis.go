package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gatherlab/gatherd/internal/common/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore implements Store on Redis so several gatherd instances can share
// one session table. Sessions are JSON values keyed by token with secondary
// index keys by user and connection; all keys carry the idle timeout as TTL,
// and Touch renews it, so Redis itself performs the lazy expiry.
type RedisStore struct {
	logger      *zap.Logger
	client      *redis.Client
	prefix      string
	capacity    int
	idleTimeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(logger *zap.Logger, cfg *config.SessionConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "gatherd:session"
	}

	return &RedisStore{
		logger:      logger.Named("session.store.redis"),
		client:      client,
		prefix:      prefix,
		capacity:    cfg.Capacity,
		idleTimeout: cfg.IdleTimeout,
	}, nil
}

func (s *RedisStore) tokenKey(token string) string {
	return s.prefix + ":token:" + token
}

func (s *RedisStore) userKey(userID int64) string {
	return s.prefix + ":user:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) connKey(connID string) string {
	return s.prefix + ":conn:" + connID
}

func (s *RedisStore) setKey() string {
	return s.prefix + ":tokens"
}

// Create implements Store.Create.
func (s *RedisStore) Create(ctx context.Context, userID int64, connID string) (string, error) {
	// Capacity check against the token set; expired entries are reconciled
	// by the sweep before giving up.
	if n, err := s.client.SCard(ctx, s.setKey()).Result(); err == nil && int(n) >= s.capacity {
		if s.SweepExpired(ctx) == 0 {
			return "", ErrStoreFull
		}
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}
	if exists, err := s.client.Exists(ctx, s.tokenKey(token)).Result(); err != nil {
		return "", err
	} else if exists > 0 {
		return "", ErrTokenCollision
	}

	// SETNX on the user index enforces at most one session per user.
	ok, err := s.client.SetNX(ctx, s.userKey(userID), token, s.idleTimeout).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUserActive
	}

	now := time.Now()
	sess := &Session{
		Token:        token,
		UserID:       userID,
		ConnID:       connID,
		CreatedAt:    now,
		LastActivity: now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return "", err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(token), data, s.idleTimeout)
	pipe.Set(ctx, s.connKey(connID), token, s.idleTimeout)
	pipe.SAdd(ctx, s.setKey(), token)
	if _, err := pipe.Exec(ctx); err != nil {
		s.client.Del(ctx, s.userKey(userID))
		return "", err
	}

	s.logger.Debug("session created",
		zap.Int64("user_id", userID),
		zap.String("conn_id", connID))
	return token, nil
}

// FindByToken implements Store.FindByToken. A key Redis already expired is
// indistinguishable from one that never existed, which matches the lazy
// expiry contract.
func (s *RedisStore) FindByToken(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Touch implements Store.Touch by rewriting the session and renewing every
// key's TTL.
func (s *RedisStore) Touch(ctx context.Context, token string) error {
	sess, err := s.FindByToken(ctx, token)
	if err != nil {
		return err
	}
	sess.LastActivity = time.Now()
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.tokenKey(token), data, s.idleTimeout)
	pipe.Expire(ctx, s.userKey(sess.UserID), s.idleTimeout)
	pipe.Expire(ctx, s.connKey(sess.ConnID), s.idleTimeout)
	_, err = pipe.Exec(ctx)
	return err
}

// FindByUser implements Store.FindByUser.
func (s *RedisStore) FindByUser(ctx context.Context, userID int64) (*Session, error) {
	token, err := s.client.Get(ctx, s.userKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindByToken(ctx, token)
}

// FindByConnection implements Store.FindByConnection.
func (s *RedisStore) FindByConnection(ctx context.Context, connID string) (*Session, error) {
	token, err := s.client.Get(ctx, s.connKey(connID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindByToken(ctx, token)
}

// Destroy implements Store.Destroy.
func (s *RedisStore) Destroy(ctx context.Context, token string) error {
	sess, err := s.FindByToken(ctx, token)
	if err == ErrSessionNotFound {
		// Still drop the set member in case only the value key expired.
		s.client.SRem(ctx, s.setKey(), token)
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.tokenKey(token))
	pipe.Del(ctx, s.userKey(sess.UserID))
	pipe.Del(ctx, s.connKey(sess.ConnID))
	pipe.SRem(ctx, s.setKey(), token)
	_, err = pipe.Exec(ctx)
	return err
}

// SweepExpired implements Store.SweepExpired. Redis already expired the value
// keys; this reconciles the token set against them.
func (s *RedisStore) SweepExpired(ctx context.Context) int {
	tokens, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return 0
	}

	n := 0
	for _, token := range tokens {
		exists, err := s.client.Exists(ctx, s.tokenKey(token)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			s.client.SRem(ctx, s.setKey(), token)
			n++
		}
	}
	if n > 0 {
		s.logger.Info("expired sessions reclaimed", zap.Int("count", n))
	}
	return n
}

// Count implements Store.Count.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.client.SCard(ctx, s.setKey()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
