package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/contextkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, RateLimitConfig{RequestsPerWindow: limit, WindowDuration: time.Minute}, "test"), mr
}

func TestRateLimiter_Allow(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, 2)

	for i, want := range []bool{true, true, false} {
		allowed, _, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, allowed, "request %d", i+1)
	}

	ttl, err := limiter.TTL(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	t.Run("window expiry resets", func(t *testing.T) {
		mr.FastForward(time.Minute + time.Second)
		allowed, remaining, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1, remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		allowed, _, err := limiter.Allow(ctx, "ip:5.6.7.8")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "ip:1.2.3.4"))
		assert.False(t, mr.Exists("test:ip:1.2.3.4"))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string, authCtx *auth.AuthContext) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", nil)
		req.RemoteAddr = remote
		if authCtx != nil {
			req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	first := send("192.0.2.1:1000", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := send("192.0.2.1:1001", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
	assert.NotEmpty(t, second.Header().Get("X-RateLimit-Reset"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":60}`, second.Body.String())

	// authenticated callers are keyed by user, not address
	user := &auth.AuthContext{Principal: &auth.Principal{UserID: 9}}
	assert.Equal(t, http.StatusOK, send("192.0.2.1:1002", user).Code)
	assert.Equal(t, http.StatusTooManyRequests, send("198.51.100.1:1", user).Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()

	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
