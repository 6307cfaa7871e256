package session

import (
	"context"
	"testing"
	"time"

	"github.com/gatherlab/gatherd/internal/common/config"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T, capacity int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	s, err := NewRedisStore(zap.NewNop(), &config.SessionConfig{
		Capacity:    capacity,
		IdleTimeout: time.Hour,
		Redis:       config.SessionRedisConfig{Addr: mr.Addr()},
	})
	if err != nil {
		t.Fatalf("failed to create RedisStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_CreateAndFind(t *testing.T) {
	s, _ := newTestRedisStore(t, 10)
	ctx := context.Background()

	token, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)

	sess, err := s.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.UserID)

	byUser, err := s.FindByUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, token, byUser.Token)

	byConn, err := s.FindByConnection(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, token, byConn.Token)

	assert.Equal(t, 1, s.Count(ctx))
}

func TestRedisStore_SingleSessionPerUser(t *testing.T) {
	s, _ := newTestRedisStore(t, 10)
	ctx := context.Background()

	_, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)

	_, err = s.Create(ctx, 1, "conn-2")
	assert.ErrorIs(t, err, ErrUserActive)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t, 10)
	ctx := context.Background()

	token, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = s.FindByToken(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.FindByUser(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// the sweep reconciles the token set against the expired keys
	assert.Equal(t, 1, s.SweepExpired(ctx))
	assert.Equal(t, 0, s.Count(ctx))
}

func TestRedisStore_DestroyIdempotent(t *testing.T) {
	s, _ := newTestRedisStore(t, 10)
	ctx := context.Background()

	token, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)

	require.NoError(t, s.Destroy(ctx, token))
	_, err = s.FindByToken(ctx, token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.NoError(t, s.Destroy(ctx, token))
	assert.NoError(t, s.Destroy(ctx, "never-issued"))
}

func TestRedisStore_CapacityAfterSweep(t *testing.T) {
	s, mr := newTestRedisStore(t, 2)
	ctx := context.Background()

	_, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)
	_, err = s.Create(ctx, 2, "conn-2")
	require.NoError(t, err)

	_, err = s.Create(ctx, 3, "conn-3")
	assert.ErrorIs(t, err, ErrStoreFull)

	// once the TTLs lapse, the sweep frees slots and creates succeed again
	mr.FastForward(2 * time.Hour)
	_, err = s.Create(ctx, 3, "conn-3")
	require.NoError(t, err)
}

func TestRedisStore_TouchRenews(t *testing.T) {
	s, mr := newTestRedisStore(t, 10)
	ctx := context.Background()

	token, err := s.Create(ctx, 1, "conn-1")
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	require.NoError(t, s.Touch(ctx, token))
	mr.FastForward(50 * time.Minute)

	_, err = s.FindByToken(ctx, token)
	assert.NoError(t, err)
}

func TestNewStore_Factory(t *testing.T) {
	logger := zap.NewNop()

	st, err := NewStore(logger, &config.SessionConfig{Type: "memory", Capacity: 1, IdleTimeout: time.Hour})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	_, err = NewStore(logger, &config.SessionConfig{Type: "etcd"})
	assert.Error(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	st, err = NewStore(logger, &config.SessionConfig{
		Type:        "redis",
		Capacity:    1,
		IdleTimeout: time.Hour,
		Redis:       config.SessionRedisConfig{Addr: mr.Addr()},
	})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, st)
}
