package auth

import (
	"errors"
	"time"
)

var (
	// ErrNoCredentials means the provider has nothing to look at in the request
	ErrNoCredentials = errors.New("no credentials")
	// ErrSessionNotFound means the credential does not name a live session
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired means the session exists but is past its expiry
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound means no internal user matches the verified identity
	ErrUserNotFound = errors.New("user not found")
)

// User is the identity record owned by the authentication subsystem
type User struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	IsSuperAdmin  bool      `json:"isSuperAdmin"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Session is the provider's session record. It is treated as opaque apart from
// the active organization and expiry.
type Session struct {
	ID                   string    `json:"id"`
	UserID               int64     `json:"userId"`
	ActiveOrganizationID *int64    `json:"activeOrganizationId"`
	ExpiresAt            time.Time `json:"expiresAt"`
	IPAddress            string    `json:"ipAddress,omitempty"`
	UserAgent            string    `json:"userAgent,omitempty"`
}

// Expired reports whether the session is no longer usable at now
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Principal is an authenticated actor
type Principal struct {
	UserID        int64
	Name          string
	Email         string
	EmailVerified bool
	IsSuperAdmin  bool
	Session       Session
}

func newPrincipal(user *User, session Session) *Principal {
	return &Principal{
		UserID:        user.ID,
		Name:          user.Name,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		IsSuperAdmin:  user.IsSuperAdmin,
		Session:       session,
	}
}

// Credentials are the raw inbound credentials of a request
type Credentials struct {
	BearerToken  string
	SessionToken string
}

// Empty reports whether no credential was presented
func (c Credentials) Empty() bool {
	return c.BearerToken == "" && c.SessionToken == ""
}

// AuthContext holds authenticated user information for one request.
// OrganizationID and Role are filled in by the permission guard once the
// membership for the active organization has been resolved.
type AuthContext struct {
	Principal      *Principal
	OrganizationID int64
	Role           string
}

// UserID returns the acting user id, or 0 for anonymous requests
func (ac *AuthContext) UserID() int64 {
	if ac == nil || ac.Principal == nil {
		return 0
	}
	return ac.Principal.UserID
}

// IsAuthenticated reports whether a principal was resolved
func (ac *AuthContext) IsAuthenticated() bool {
	return ac != nil && ac.Principal != nil
}

// IsSuperAdmin reports whether the principal carries the platform super-admin flag
func (ac *AuthContext) IsSuperAdmin() bool {
	return ac.IsAuthenticated() && ac.Principal.IsSuperAdmin
}

// ActiveOrganizationID returns the organization selected on the session, if any
func (ac *AuthContext) ActiveOrganizationID() *int64 {
	if !ac.IsAuthenticated() {
		return nil
	}
	return ac.Principal.Session.ActiveOrganizationID
}

// AuditLog represents a security audit log entry
type AuditLog struct {
	ID             int64     `json:"id"`
	UserID         *int64    `json:"user_id,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	Action         string    `json:"action"`
	ResourceType   string    `json:"resource_type"`
	ResourceID     string    `json:"resource_id,omitempty"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Status         string    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
