package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/barbell/pkg/rbac"
)

var (
	// ErrNotAMember means the user has no member row in the organization
	ErrNotAMember = rbac.ErrNotAMember
	// ErrOrganizationNotFound means no organization has the requested id or slug
	ErrOrganizationNotFound = errors.New("organization not found")
)

// Organization is a tenant
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member binds a user to an organization with a role
type Member struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	OrganizationID int64     `json:"organizationId"`
	Role           rbac.Role `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}

// IsCoach reports whether the member may author organization-private content
func (m *Member) IsCoach() bool {
	return m.Role.IsCoach()
}

// Directory resolves organizations and their memberships.
// Every call reads current state; nothing is cached.
type Directory interface {
	rbac.MembershipResolver

	// CoachUserIDs returns the user ids of admins and owners, ascending
	CoachUserIDs(ctx context.Context, organizationID int64) ([]int64, error)
	// AthleteUserIDs returns the user ids of plain members, ascending
	AthleteUserIDs(ctx context.Context, organizationID int64) ([]int64, error)

	GetOrganization(ctx context.Context, id int64) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListMembers(ctx context.Context, organizationID int64) ([]*Member, error)
}
