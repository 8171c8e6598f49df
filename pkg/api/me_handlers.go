package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/orgs"
)

// MeResponse describes the caller
type MeResponse struct {
	User               MeUser              `json:"user"`
	Session            MeSession           `json:"session"`
	ActiveOrganization *ActiveOrganization `json:"activeOrganization"`
}

// MeUser is the public part of the caller's identity
type MeUser struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	IsSuperAdmin  bool   `json:"isSuperAdmin"`
}

// MeSession is the public part of the caller's session
type MeSession struct {
	ID                   string    `json:"id"`
	ActiveOrganizationID *int64    `json:"activeOrganizationId"`
	ExpiresAt            time.Time `json:"expiresAt"`
}

// ActiveOrganization is the selected tenant with the caller's role in it
type ActiveOrganization struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role string `json:"role"`
}

func (s *Server) getMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	p := authCtx.Principal

	resp := MeResponse{
		User: MeUser{
			ID:            p.UserID,
			Name:          p.Name,
			Email:         p.Email,
			EmailVerified: p.EmailVerified,
			IsSuperAdmin:  p.IsSuperAdmin,
		},
		Session: MeSession{
			ID:                   p.Session.ID,
			ActiveOrganizationID: p.Session.ActiveOrganizationID,
			ExpiresAt:            p.Session.ExpiresAt,
		},
	}

	if orgID := authCtx.ActiveOrganizationID(); orgID != nil && s.directory != nil {
		resp.ActiveOrganization = s.activeOrganization(r, p.UserID, *orgID)
	}

	httputil.WriteSuccess(w, resp)
}

// activeOrganization returns nil when the caller is not a member of the
// selected organization or it cannot be looked up
func (s *Server) activeOrganization(r *http.Request, userID, orgID int64) *ActiveOrganization {
	ctx := r.Context()
	logger := observability.FromContext(ctx).WithField("organization_id", orgID)

	role, err := s.directory.RoleOf(ctx, userID, orgID)
	if err != nil {
		if !errors.Is(err, orgs.ErrNotAMember) {
			logger.WithError(err).Warn("failed to resolve membership")
		}
		return nil
	}

	org, err := s.directory.GetOrganization(ctx, orgID)
	if err != nil {
		if !errors.Is(err, orgs.ErrOrganizationNotFound) {
			logger.WithError(err).Warn("failed to load organization")
		}
		return nil
	}

	return &ActiveOrganization{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
		Role: role.String(),
	}
}
