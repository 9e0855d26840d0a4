package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionTTL is the lifetime of a full admin session.
	SessionTTL = 24 * time.Hour
	// PendingSetupTTL bounds the 2FA enrollment window.
	PendingSetupTTL = 10 * time.Minute
	// PendingLoginTTL bounds the 2FA code entry window.
	PendingLoginTTL = 5 * time.Minute

	pendingSetup = "setup"
	pendingLogin = "login"
)

// SessionStore tracks full admin sessions and the short-lived pending states
// of the 2FA login flow. Tokens are opaque and unguessable; the session
// cookie carries the token, never an identity claim.
type SessionStore interface {
	Create(ctx context.Context, adminID string) (string, error)
	ValidateSession(ctx context.Context, token string) bool
	Delete(ctx context.Context, token string) error

	CreatePending(ctx context.Context, kind, adminID string, ttl time.Duration) (string, error)
	GetPending(ctx context.Context, kind, token string) (string, error)
	DeletePending(ctx context.Context, kind, token string) error
}

type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func sessionKey(token string) string {
	return "admin:session:" + token
}

func pendingKey(kind, token string) string {
	return fmt.Sprintf("admin:pending:%s:%s", kind, token)
}

func (s *RedisSessionStore) Create(ctx context.Context, adminID string) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, sessionKey(token), adminID, SessionTTL).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisSessionStore) ValidateSession(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	n, err := s.rdb.Exists(ctx, sessionKey(token)).Result()
	return err == nil && n > 0
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, sessionKey(token)).Err()
}

func (s *RedisSessionStore) CreatePending(ctx context.Context, kind, adminID string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, pendingKey(kind, token), adminID, ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisSessionStore) GetPending(ctx context.Context, kind, token string) (string, error) {
	if token == "" {
		return "", redis.Nil
	}
	return s.rdb.Get(ctx, pendingKey(kind, token)).Result()
}

func (s *RedisSessionStore) DeletePending(ctx context.Context, kind, token string) error {
	return s.rdb.Del(ctx, pendingKey(kind, token)).Err()
}
