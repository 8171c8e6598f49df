package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/barbell/pkg/async"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/platinummonkey/barbell/pkg/rbac"
)

// Provider endpoints with built-in hooks
const (
	PathSetActiveOrganization = "/api/auth/organization/set-active"
	PathSignInEmail           = "/api/auth/sign-in/email"
)

const auditTimeout = 5 * time.Second

// organizationID accepts the provider's organization id as a JSON number or string
type organizationID struct {
	value *int64
}

func (o *organizationID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return errors.New("invalid organizationId")
	}
	o.value = &id
	return nil
}

type organizationBody struct {
	OrganizationID organizationID `json:"organizationId"`
}

// targetOrganization reads organizationId from the body, falling back to the
// session's active organization
func targetOrganization(hc *Context) (*int64, error) {
	var body organizationBody
	if hc.Request.Method != http.MethodGet {
		if err := hc.DecodeJSON(&body); err != nil {
			return nil, err
		}
	}
	if body.OrganizationID.value != nil {
		return body.OrganizationID.value, nil
	}
	return hc.Auth.ActiveOrganizationID(), nil
}

// ProviderPermissionHook checks a provider organization endpoint against the
// permission table, the same way API routes are checked
func ProviderPermissionHook(guard *rbac.Guard, requirement rbac.Requirement) Handler {
	return func(hc *Context) error {
		orgID, err := targetOrganization(hc)
		if err != nil {
			return err
		}
		d := guard.CheckIn(hc.Request, orgID, requirement.Resource, requirement.Actions)
		if !d.Allowed {
			return Reject(d.Status(), d.Message())
		}
		return nil
	}
}

// RegisterProviderRoutes installs ProviderPermissionHook on every route in
// rbac.ProviderRoutes
func RegisterProviderRoutes(reg *Registry, guard *rbac.Guard) error {
	paths := make([]string, 0, len(rbac.ProviderRoutes))
	for path := range rbac.ProviderRoutes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := reg.Register(path, PhaseBefore, ProviderPermissionHook(guard, rbac.ProviderRoutes[path])); err != nil {
			return err
		}
	}
	return nil
}

// ActiveOrganizationHook lets a session switch only to organizations the user
// belongs to. Clearing the active organization is always allowed.
func ActiveOrganizationHook(members rbac.MembershipResolver) Handler {
	return func(hc *Context) error {
		if !hc.Auth.IsAuthenticated() {
			return Reject(http.StatusUnauthorized, "authentication required")
		}

		var body organizationBody
		if err := hc.DecodeJSON(&body); err != nil {
			return err
		}
		if body.OrganizationID.value == nil {
			return nil
		}
		orgID := *body.OrganizationID.value

		_, err := members.RoleOf(hc.Request.Context(), hc.Auth.UserID(), orgID)
		if err == nil {
			return nil
		}

		logger := observability.FromContext(hc.Request.Context()).WithFields(map[string]interface{}{
			"actor_id":        hc.Auth.UserID(),
			"organization_id": orgID,
		})
		if errors.Is(err, rbac.ErrNotAMember) {
			logger.WithField("reason", rbac.ReasonNotAMember).Info("set-active denied")
		} else {
			logger.WithError(err).WithField("reason", rbac.ReasonLookupFailed).Warn("set-active denied")
		}
		return Reject(http.StatusForbidden, rbac.DeniedMessage)
	}
}

// SignInAuditHook records every email sign-in attempt with its outcome
func SignInAuditHook(audit *auth.AuditLogger) Handler {
	return func(hc *Context) error {
		status := auth.StatusSuccess
		if hc.Status >= http.StatusBadRequest {
			status = auth.StatusFailure
		}

		entry := auth.FromRequest(hc.Request, hc.Auth, auth.ActionSignIn, "session", status)
		if body, err := hc.Body(); err == nil && len(body) > 0 {
			var creds struct {
				Email string `json:"email"`
			}
			if json.Unmarshal(body, &creds) == nil {
				entry.ResourceID = strings.ToLower(strings.TrimSpace(creds.Email))
			}
		}
		if status == auth.StatusFailure {
			entry.Reason = "provider responded " + strconv.Itoa(hc.Status)
		}

		async.SafeGo(hc.Request.Context(), auditTimeout, "audit-sign-in", func(ctx context.Context) error {
			return audit.Log(ctx, entry)
		})
		return nil
	}
}
