package rbac

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/platinummonkey/barbell/pkg/async"
	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/httputil"
	"github.com/platinummonkey/barbell/pkg/middleware"
	"github.com/platinummonkey/barbell/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ErrNotAMember is returned by a MembershipResolver when the user has no
// member row in the organization
var ErrNotAMember = errors.New("not a member of organization")

// MembershipResolver looks up a user's role in an organization
type MembershipResolver interface {
	RoleOf(ctx context.Context, userID, organizationID int64) (Role, error)
}

// Reason explains an authorization decision
type Reason string

const (
	ReasonAllowed                 Reason = "allowed"
	ReasonUnauthenticated         Reason = "unauthenticated"
	ReasonUnknownRouteGroup       Reason = "unknown_route_group"
	ReasonNoActiveOrganization    Reason = "no_active_organization"
	ReasonNotAMember              Reason = "not_a_member"
	ReasonLookupFailed            Reason = "lookup_failed"
	ReasonInsufficientPermissions Reason = "insufficient_permissions"
)

// DeniedMessage is the only text a denied caller sees, whatever the reason
const DeniedMessage = "permission check failed"

const auditTimeout = 5 * time.Second

// Decision is the outcome of one permission check
type Decision struct {
	Allowed        bool
	Reason         Reason
	Resource       Resource
	Required       ActionSet
	Role           Role
	Held           ActionSet
	OrganizationID int64
	Err            error
}

// Status returns the HTTP status a denial is reported with
func (d Decision) Status() int {
	switch {
	case d.Allowed:
		return http.StatusOK
	case d.Reason == ReasonUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Message returns the external error text for a denial
func (d Decision) Message() string {
	if d.Reason == ReasonUnauthenticated {
		return "authentication required"
	}
	return DeniedMessage
}

// Guard enforces the permission table on HTTP requests. Roles are looked up
// on every request.
type Guard struct {
	members MembershipResolver
	audit   *auth.AuditLogger
	metrics *observability.Metrics
}

// NewGuard creates a guard. audit and metrics may be nil.
func NewGuard(members MembershipResolver, audit *auth.AuditLogger, metrics *observability.Metrics) *Guard {
	return &Guard{
		members: members,
		audit:   audit,
		metrics: metrics,
	}
}

// Authorize decides whether the principal in authCtx may perform any of the
// required actions on resource inside its active organization. Lookup
// failures deny.
func (g *Guard) Authorize(ctx context.Context, authCtx *auth.AuthContext, resource Resource, required ActionSet) Decision {
	return g.AuthorizeIn(ctx, authCtx, authCtx.ActiveOrganizationID(), resource, required)
}

// AuthorizeIn is Authorize against an explicit organization. A nil orgID
// denies with ReasonNoActiveOrganization.
func (g *Guard) AuthorizeIn(ctx context.Context, authCtx *auth.AuthContext, orgID *int64, resource Resource, required ActionSet) Decision {
	d := Decision{Resource: resource, Required: required}

	if !authCtx.IsAuthenticated() {
		d.Reason = ReasonUnauthenticated
		return d
	}

	if orgID == nil {
		d.Reason = ReasonNoActiveOrganization
		return d
	}
	d.OrganizationID = *orgID

	role, err := g.members.RoleOf(ctx, authCtx.UserID(), *orgID)
	switch {
	case errors.Is(err, ErrNotAMember):
		d.Reason = ReasonNotAMember
		return d
	case err != nil:
		d.Reason = ReasonLookupFailed
		d.Err = err
		return d
	}

	d.Role = role
	d.Held = Held(role, resource)
	if !IsAllowed(role, resource, required) {
		d.Reason = ReasonInsufficientPermissions
		return d
	}

	d.Allowed = true
	d.Reason = ReasonAllowed
	return d
}

// Check authorizes the request in the session's active organization and
// records the outcome. On success the role and organization are stored on
// the request's auth context.
func (g *Guard) Check(r *http.Request, resource Resource, required ActionSet) Decision {
	return g.CheckIn(r, middleware.GetAuthContext(r).ActiveOrganizationID(), resource, required)
}

// CheckIn is Check against an explicit organization
func (g *Guard) CheckIn(r *http.Request, orgID *int64, resource Resource, required ActionSet) Decision {
	ctx, span := observability.StartSpan(r.Context(), "rbac.check",
		attribute.String("rbac.resource", resource.String()),
		attribute.String("rbac.required", required.String()),
	)
	authCtx := middleware.GetAuthContext(r)

	d := g.AuthorizeIn(ctx, authCtx, orgID, resource, required)
	span.SetAttributes(
		attribute.String("rbac.reason", string(d.Reason)),
		attribute.Bool("rbac.allowed", d.Allowed),
	)
	observability.EndSpan(span, d.Err)

	outcome := "allowed"
	if !d.Allowed {
		outcome = "denied"
	}
	g.metrics.RecordAuthzDecision(resource.String(), outcome, string(d.Reason))

	if d.Allowed {
		authCtx.Role = d.Role.String()
		authCtx.OrganizationID = d.OrganizationID
		return d
	}

	g.logDenial(r, authCtx, d)
	if d.Reason != ReasonUnauthenticated {
		g.auditDenial(r, authCtx, d)
	}
	return d
}

// Require returns middleware admitting requests whose principal holds any of
// the given actions on the group's resource
func (g *Guard) Require(group string, actions ...Action) func(http.Handler) http.Handler {
	resource, known := ResourceForGroup(group)
	required := Actions(actions...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !known {
				observability.FromContext(r.Context()).WithFields(map[string]interface{}{
					"route_group": group,
					"reason":      ReasonUnknownRouteGroup,
				}).Error("route group has no declared resource")
				g.metrics.RecordAuthzDecision("unknown", "denied", string(ReasonUnknownRouteGroup))
				httputil.WriteForbidden(w, DeniedMessage)
				return
			}

			d := g.Check(r, resource, required)
			if !d.Allowed {
				httputil.WriteErrorMessage(w, d.Status(), d.Message())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) logDenial(r *http.Request, authCtx *auth.AuthContext, d Decision) {
	logger := observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"actor_id":        authCtx.UserID(),
		"organization_id": d.OrganizationID,
		"resource":        d.Resource.String(),
		"required":        d.Required.Names(),
		"held":            d.Held.Names(),
		"reason":          string(d.Reason),
		"method":          r.Method,
		"path":            r.URL.Path,
	}).WithError(d.Err)

	if d.Reason == ReasonInsufficientPermissions {
		logger = logger.WithField("role", d.Role.String())
	}
	if d.Reason == ReasonLookupFailed {
		logger.Warn("permission check failed")
		return
	}
	logger.Info("permission denied")
}

func (g *Guard) auditDenial(r *http.Request, authCtx *auth.AuthContext, d Decision) {
	if g.audit == nil {
		return
	}

	entry := auth.FromRequest(r, authCtx, auth.ActionPermissionDenied, d.Resource.String(), auth.StatusDenied)
	entry.Reason = string(d.Reason)
	if d.OrganizationID != 0 {
		orgID := d.OrganizationID
		entry.OrganizationID = &orgID
	}

	async.SafeGo(r.Context(), auditTimeout, "audit-permission-denied", func(ctx context.Context) error {
		return g.audit.Log(ctx, entry)
	})
}
