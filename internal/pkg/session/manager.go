// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"crm-service/internal/domain/auth"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the durable copy of sessions. Redis is checked first.
type Store interface {
	FindSessionByToken(ctx context.Context, jti string) (*auth.Session, error)
	InvalidateSession(ctx context.Context, sessionID int64) error
	UpdateSessionActivity(ctx context.Context, sessionID int64) error
}

type Manager struct {
	client *redis.Client
	store  Store
	logger *zap.Logger
}

func NewManager(client *redis.Client, store Store, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		store:  store,
		logger: logger,
	}
}

// CreateSession stores a new session in Redis until it expires.
func (m *Manager) CreateSession(ctx context.Context, session *SessionData) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := m.client.Set(ctx, m.sessionKey(session.IdentityID, session.JTI), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}

	if session.SessionID > 0 && m.store != nil {
		if err := m.store.UpdateSessionActivity(ctx, session.SessionID); err != nil {
			m.logger.Warn("failed to update session activity", zap.Int64("session_id", session.SessionID), zap.Error(err))
		}
	}
	return nil
}

// GetSession reads a session from Redis, falling back to the durable store.
func (m *Manager) GetSession(ctx context.Context, identityID int64, jti string) (*SessionData, error) {
	data, err := m.client.Get(ctx, m.sessionKey(identityID, jti)).Bytes()
	if err == nil {
		var session SessionData
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		return &session, nil
	}
	if !errors.Is(err, redis.Nil) {
		m.logger.Warn("redis session lookup failed, using store", zap.Error(err))
	}
	if m.store == nil {
		return nil, fmt.Errorf("session not found")
	}

	dbSession, err := m.store.FindSessionByToken(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	if dbSession.IdentityID != identityID {
		return nil, fmt.Errorf("session identity mismatch")
	}
	if dbSession.Status != "active" || time.Now().After(dbSession.ExpiresAt) {
		return nil, fmt.Errorf("session is no longer active")
	}

	restored := &SessionData{
		JTI:            jti,
		IdentityID:     dbSession.IdentityID,
		SessionID:      dbSession.ID,
		IPAddress:      dbSession.IPAddress.String,
		UserAgent:      dbSession.UserAgent.String,
		LoginAt:        dbSession.LoginAt,
		LastActivityAt: time.Now(),
		ExpiresAt:      dbSession.ExpiresAt,
	}
	if err := m.CreateSession(ctx, restored); err != nil {
		m.logger.Warn("failed to restore session to redis", zap.Error(err))
	}
	return restored, nil
}

// InvalidateSession removes a session from Redis and the store.
func (m *Manager) InvalidateSession(ctx context.Context, identityID int64, jti string) error {
	if err := m.client.Del(ctx, m.sessionKey(identityID, jti)).Err(); err != nil {
		m.logger.Warn("failed to delete session from redis", zap.Error(err))
	}
	if m.store == nil {
		return nil
	}

	dbSession, err := m.store.FindSessionByToken(ctx, jti)
	if err != nil {
		return nil
	}
	if err := m.store.InvalidateSession(ctx, dbSession.ID); err != nil {
		return fmt.Errorf("failed to invalidate DB session: %w", err)
	}
	return nil
}

// IsTokenBlacklisted checks if a token is blacklisted
func (m *Manager) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := m.client.Exists(ctx, m.blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return exists > 0, nil
}

// BlacklistToken adds a token to the blacklist
func (m *Manager) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	return m.client.Set(ctx, m.blacklistKey(jti), "1", ttl).Err()
}

func (m *Manager) sessionKey(identityID int64, jti string) string {
	return fmt.Sprintf("session:%d:%s", identityID, jti)
}

func (m *Manager) blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:%s", jti)
}
