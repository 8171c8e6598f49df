package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "session:"

// sessionRecord is the value the authentication provider stores per session
type sessionRecord struct {
	Session Session `json:"session"`
	User    User    `json:"user"`
}

// RedisSessionStore reads sessions written to Redis by the authentication provider
type RedisSessionStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessionStore creates a session store on an existing client
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{
		client: client,
		now:    time.Now,
	}
}

// Name implements SessionProvider
func (s *RedisSessionStore) Name() string {
	return "redis"
}

func sessionKey(token string) string {
	return sessionKeyPrefix + HashToken(token)
}

// GetSession implements SessionProvider using the session cookie
func (s *RedisSessionStore) GetSession(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.SessionToken == "" {
		return nil, ErrNoCredentials
	}

	record, err := s.load(ctx, creds.SessionToken)
	if err != nil {
		return nil, err
	}

	// Redis TTL and the record can drift; the record wins
	if record.Session.Expired(s.now()) {
		return nil, ErrSessionExpired
	}

	return newPrincipal(&record.User, record.Session), nil
}

func (s *RedisSessionStore) load(ctx context.Context, token string) (*sessionRecord, error) {
	raw, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var record sessionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &record, nil
}

// Put stores a session under token with a TTL matching its expiry
func (s *RedisSessionStore) Put(ctx context.Context, token string, user User, session Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return ErrSessionExpired
	}
	if session.UserID == 0 {
		session.UserID = user.ID
	}

	raw, err := json.Marshal(sessionRecord{Session: session, User: user})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(token), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}
