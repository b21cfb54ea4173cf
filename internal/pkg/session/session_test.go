package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"crm-service/internal/domain/auth"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type stubStore struct {
	sessions    map[string]*auth.Session
	invalidated []int64
}

func (s *stubStore) FindSessionByToken(_ context.Context, jti string) (*auth.Session, error) {
	if sess, ok := s.sessions[jti]; ok {
		return sess, nil
	}
	return nil, xerrors.ErrNotFound
}

func (s *stubStore) InvalidateSession(_ context.Context, id int64) error {
	s.invalidated = append(s.invalidated, id)
	return nil
}

func (s *stubStore) UpdateSessionActivity(context.Context, int64) error { return nil }

func TestManagerCreateGetInvalidate(t *testing.T) {
	_, client := newRedis(t)
	store := &stubStore{sessions: map[string]*auth.Session{
		"jti-1": {ID: 11, IdentityID: 5, Status: "active", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	m := NewManager(client, store, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, &SessionData{
		JTI: "jti-1", IdentityID: 5, SessionID: 11, ExpiresAt: time.Now().Add(time.Hour),
	}))

	got, err := m.GetSession(ctx, 5, "jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.SessionID)

	require.NoError(t, m.InvalidateSession(ctx, 5, "jti-1"))
	assert.Equal(t, []int64{11}, store.invalidated)
}

func TestManagerFallsBackToStore(t *testing.T) {
	_, client := newRedis(t)
	store := &stubStore{sessions: map[string]*auth.Session{
		"jti-2": {
			ID: 12, IdentityID: 9, Status: "active",
			IPAddress: sql.NullString{String: "10.0.0.1", Valid: true},
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}}
	m := NewManager(client, store, zap.NewNop())

	got, err := m.GetSession(context.Background(), 9, "jti-2")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", got.IPAddress)

	_, err = m.GetSession(context.Background(), 10, "jti-2")
	assert.Error(t, err, "session owned by another identity")
}

func TestCreateSessionRejectsExpired(t *testing.T) {
	_, client := newRedis(t)
	m := NewManager(client, nil, zap.NewNop())
	err := m.CreateSession(context.Background(), &SessionData{JTI: "x", ExpiresAt: time.Now().Add(-time.Second)})
	assert.Error(t, err)
}

func TestBlacklist(t *testing.T) {
	mr, client := newRedis(t)
	m := NewManager(client, nil, zap.NewNop())
	ctx := context.Background()

	listed, err := m.IsTokenBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, listed)

	require.NoError(t, m.BlacklistToken(ctx, "abc", time.Minute))
	listed, err = m.IsTokenBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, listed)

	mr.FastForward(2 * time.Minute)
	listed, err = m.IsTokenBlacklisted(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestLoginAttemptsLimit(t *testing.T) {
	_, client := newRedis(t)
	r := NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _, err := r.CheckLoginAttempt(ctx, "1.2.3.4", "a@b.c")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, remaining, err := r.CheckLoginAttempt(ctx, "1.2.3.4", "a@b.c")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, remaining)

	require.NoError(t, r.ResetLoginAttempts(ctx, "1.2.3.4", "a@b.c"))
	ok, _, err = r.CheckLoginAttempt(ctx, "1.2.3.4", "a@b.c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIntakeWindowExpires(t *testing.T) {
	mr, client := newRedis(t)
	r := NewRateLimiter(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.CheckIntakeSubmission(ctx, "5.6.7.8", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := r.CheckIntakeSubmission(ctx, "5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(61 * time.Second)
	ok, err = r.CheckIntakeSubmission(ctx, "5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
