package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name      string
	principal *Principal
	err       error
	calls     int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) GetSession(context.Context, Credentials) (*Principal, error) {
	s.calls++
	return s.principal, s.err
}

func TestSessionResolver_Resolve(t *testing.T) {
	alice := &Principal{UserID: 1, Email: "alice@example.com"}
	bob := &Principal{UserID: 2, Email: "bob@example.com"}
	creds := Credentials{SessionToken: "tok"}

	tests := []struct {
		name      string
		providers []*stubProvider
		creds     Credentials
		want      *Principal
	}{
		{
			name:      "first provider resolves",
			providers: []*stubProvider{{name: "a", principal: alice}, {name: "b", principal: bob}},
			creds:     creds,
			want:      alice,
		},
		{
			name:      "skips providers without credentials",
			providers: []*stubProvider{{name: "a", err: ErrNoCredentials}, {name: "b", principal: bob}},
			creds:     creds,
			want:      bob,
		},
		{
			name:      "provider error is anonymous",
			providers: []*stubProvider{{name: "a", err: errors.New("redis down")}},
			creds:     creds,
			want:      nil,
		},
		{
			name:      "expired session is anonymous",
			providers: []*stubProvider{{name: "a", err: ErrSessionExpired}},
			creds:     creds,
			want:      nil,
		},
		{
			name:      "no credentials short circuits",
			providers: []*stubProvider{{name: "a", principal: alice}},
			creds:     Credentials{},
			want:      nil,
		},
		{
			name:      "no providers",
			providers: nil,
			creds:     creds,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers := make([]SessionProvider, 0, len(tt.providers))
			for _, p := range tt.providers {
				providers = append(providers, p)
			}
			resolver := NewSessionResolver(nil, providers...)

			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, resolver.Resolve(context.Background(), tt.creds))
			})
		})
	}
}

func TestSessionResolver_Metrics(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store, _ := newTestSessionStore(t)
	ctx := observability.WithLogger(context.Background(), observability.NopLogger())

	require.NoError(t, store.Put(ctx, "live", User{ID: 4}, Session{ExpiresAt: time.Now().Add(time.Hour)}))
	resolver := NewSessionResolver(metrics, store)

	assert.NotNil(t, resolver.Resolve(ctx, Credentials{SessionToken: "live"}))
	assert.Nil(t, resolver.Resolve(ctx, Credentials{SessionToken: "dead"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionResolutionsTotal.WithLabelValues("redis", "resolved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionResolutionsTotal.WithLabelValues("redis", "not_found")))
}
