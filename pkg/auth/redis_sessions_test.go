package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client), mr
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestRedisSessionStore_GetSession(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestSessionStore(t)

	user := User{ID: 11, Name: "Coach Carter", Email: "carter@example.com", EmailVerified: true}
	session := Session{
		ID:                   "sess-1",
		ActiveOrganizationID: int64Ptr(5),
		ExpiresAt:            time.Now().Add(time.Hour),
		IPAddress:            "10.0.0.1",
	}
	require.NoError(t, store.Put(ctx, "token-1", user, session))

	t.Run("stored under the token hash", func(t *testing.T) {
		assert.True(t, mr.Exists("session:"+HashToken("token-1")))
		assert.False(t, mr.Exists("session:token-1"))
		assert.Greater(t, mr.TTL("session:"+HashToken("token-1")), 59*time.Minute)
	})

	t.Run("resolves principal", func(t *testing.T) {
		principal, err := store.GetSession(ctx, Credentials{SessionToken: "token-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(11), principal.UserID)
		assert.Equal(t, "carter@example.com", principal.Email)
		assert.True(t, principal.EmailVerified)
		assert.Equal(t, "sess-1", principal.Session.ID)
		assert.Equal(t, int64(11), principal.Session.UserID)
		require.NotNil(t, principal.Session.ActiveOrganizationID)
		assert.Equal(t, int64(5), *principal.Session.ActiveOrganizationID)
	})

	t.Run("no cookie is not ours", func(t *testing.T) {
		_, err := store.GetSession(ctx, Credentials{BearerToken: "x"})
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := store.GetSession(ctx, Credentials{SessionToken: "nope"})
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("record expiry wins over ttl", func(t *testing.T) {
		store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { store.now = time.Now }()

		_, err := store.GetSession(ctx, Credentials{SessionToken: "token-1"})
		assert.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("ttl removes the key", func(t *testing.T) {
		mr.FastForward(2 * time.Hour)
		_, err := store.GetSession(ctx, Credentials{SessionToken: "token-1"})
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestRedisSessionStore_Put(t *testing.T) {
	store, _ := newTestSessionStore(t)

	err := store.Put(context.Background(), "old", User{ID: 1}, Session{ExpiresAt: time.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRedisSessionStore_CorruptRecord(t *testing.T) {
	store, mr := newTestSessionStore(t)
	require.NoError(t, mr.Set("session:"+HashToken("bad"), "{not json"))

	_, err := store.GetSession(context.Background(), Credentials{SessionToken: "bad"})
	assert.ErrorContains(t, err, "failed to decode session")
}
