package auth

import (
	"context"
	"errors"

	"github.com/platinummonkey/barbell/pkg/observability"
)

// SessionProvider turns request credentials into a principal.
// Providers return ErrNoCredentials when the credentials are not theirs to judge.
type SessionProvider interface {
	Name() string
	GetSession(ctx context.Context, creds Credentials) (*Principal, error)
}

// SessionResolver asks each provider in order and returns the first principal.
// It never returns an error: an unusable credential is an anonymous request.
type SessionResolver struct {
	providers []SessionProvider
	metrics   *observability.Metrics
}

// NewSessionResolver creates a resolver over the given providers
func NewSessionResolver(metrics *observability.Metrics, providers ...SessionProvider) *SessionResolver {
	return &SessionResolver{
		providers: providers,
		metrics:   metrics,
	}
}

// Resolve returns the authenticated principal, or nil
func (r *SessionResolver) Resolve(ctx context.Context, creds Credentials) *Principal {
	if creds.Empty() {
		return nil
	}

	logger := observability.FromContext(ctx)
	for _, provider := range r.providers {
		principal, err := provider.GetSession(ctx, creds)
		switch {
		case errors.Is(err, ErrNoCredentials):
			continue
		case err != nil:
			r.metrics.RecordSessionResolution(provider.Name(), outcomeFor(err))
			logger.WithError(err).WithField("provider", provider.Name()).Debug("session resolution failed")
			continue
		case principal == nil:
			continue
		}

		r.metrics.RecordSessionResolution(provider.Name(), "resolved")
		return principal
	}

	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrSessionExpired):
		return "expired"
	case errors.Is(err, ErrUserNotFound):
		return "unknown_user"
	default:
		return "error"
	}
}
