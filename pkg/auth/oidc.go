package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// idTokenClaims are the claims read from a verified ID token.
// org_id is a custom claim carrying the active organization.
type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	SessionID     string `json:"sid"`
	OrgID         *int64 `json:"org_id"`
}

// OIDCProvider authenticates bearer ID tokens.
// Only identity is cached; membership is always resolved per request.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	users    UserStore
	cache    *expirable.LRU[string, *User]
}

// NewOIDCProvider discovers the issuer and builds a verifier for clientID
func NewOIDCProvider(ctx context.Context, issuer, clientID string, users UserStore, cacheSize int, cacheTTL time.Duration) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC issuer %s: %w", issuer, err)
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return NewOIDCProviderWithVerifier(verifier, users, cacheSize, cacheTTL), nil
}

// NewOIDCProviderWithVerifier builds a provider on an existing verifier
func NewOIDCProviderWithVerifier(verifier *oidc.IDTokenVerifier, users UserStore, cacheSize int, cacheTTL time.Duration) *OIDCProvider {
	return &OIDCProvider{
		verifier: verifier,
		users:    users,
		cache:    expirable.NewLRU[string, *User](cacheSize, nil, cacheTTL),
	}
}

// Name implements SessionProvider
func (p *OIDCProvider) Name() string {
	return "oidc"
}

// GetSession implements SessionProvider using the bearer token
func (p *OIDCProvider) GetSession(ctx context.Context, creds Credentials) (*Principal, error) {
	if creds.BearerToken == "" {
		return nil, ErrNoCredentials
	}

	idToken, err := p.verifier.Verify(ctx, creds.BearerToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: token has no email claim", ErrUserNotFound)
	}

	user, err := p.lookupUser(ctx, claims.Email)
	if err != nil {
		return nil, err
	}

	sessionID := claims.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	principal := newPrincipal(user, Session{
		ID:                   sessionID,
		UserID:               user.ID,
		ActiveOrganizationID: claims.OrgID,
		ExpiresAt:            idToken.Expiry,
	})
	// the issuer is authoritative for verification of the address it signed
	principal.EmailVerified = claims.EmailVerified
	return principal, nil
}

func (p *OIDCProvider) lookupUser(ctx context.Context, email string) (*User, error) {
	key := strings.ToLower(email)
	if user, ok := p.cache.Get(key); ok {
		return user, nil
	}

	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, user)
	return user, nil
}
