package orgs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/barbell/pkg/rbac"
)

// MemoryDirectory is a Directory held in process memory, for development and tests
type MemoryDirectory struct {
	mu            sync.RWMutex
	organizations map[int64]*Organization
	members       map[int64]map[int64]*Member // organization id -> user id -> member
	nextMemberID  int64
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory creates an empty directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		organizations: make(map[int64]*Organization),
		members:       make(map[int64]map[int64]*Member),
	}
}

// AddOrganization inserts or replaces an organization
func (d *MemoryDirectory) AddOrganization(org Organization) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now()
	}
	d.organizations[org.ID] = &org
}

// SetMember adds the user to the organization or changes their role
func (d *MemoryDirectory) SetMember(organizationID, userID int64, role rbac.Role) *Member {
	d.mu.Lock()
	defer d.mu.Unlock()

	byUser, ok := d.members[organizationID]
	if !ok {
		byUser = make(map[int64]*Member)
		d.members[organizationID] = byUser
	}
	if existing, ok := byUser[userID]; ok {
		existing.Role = role
		copied := *existing
		return &copied
	}

	d.nextMemberID++
	member := &Member{
		ID:             d.nextMemberID,
		UserID:         userID,
		OrganizationID: organizationID,
		Role:           role,
		CreatedAt:      time.Now(),
	}
	byUser[userID] = member
	copied := *member
	return &copied
}

// RemoveMember removes the user from the organization
func (d *MemoryDirectory) RemoveMember(organizationID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members[organizationID], userID)
}

// RoleOf implements rbac.MembershipResolver
func (d *MemoryDirectory) RoleOf(_ context.Context, userID, organizationID int64) (rbac.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	member, ok := d.members[organizationID][userID]
	if !ok {
		return 0, ErrNotAMember
	}
	return member.Role, nil
}

// CoachUserIDs implements Directory
func (d *MemoryDirectory) CoachUserIDs(_ context.Context, organizationID int64) ([]int64, error) {
	return d.userIDs(organizationID, rbac.Role.IsCoach), nil
}

// AthleteUserIDs implements Directory
func (d *MemoryDirectory) AthleteUserIDs(_ context.Context, organizationID int64) ([]int64, error) {
	return d.userIDs(organizationID, func(r rbac.Role) bool { return r == rbac.RoleMember }), nil
}

func (d *MemoryDirectory) userIDs(organizationID int64, match func(rbac.Role) bool) []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := []int64{}
	for userID, member := range d.members[organizationID] {
		if match(member.Role) {
			ids = append(ids, userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// GetOrganization implements Directory
func (d *MemoryDirectory) GetOrganization(_ context.Context, id int64) (*Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	org, ok := d.organizations[id]
	if !ok {
		return nil, ErrOrganizationNotFound
	}
	copied := *org
	return &copied, nil
}

// GetOrganizationBySlug implements Directory
func (d *MemoryDirectory) GetOrganizationBySlug(_ context.Context, slug string) (*Organization, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, org := range d.organizations {
		if org.Slug == slug {
			copied := *org
			return &copied, nil
		}
	}
	return nil, ErrOrganizationNotFound
}

// ListMembers implements Directory
func (d *MemoryDirectory) ListMembers(_ context.Context, organizationID int64) ([]*Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var members []*Member
	for _, m := range d.members[organizationID] {
		copied := *m
		members = append(members, &copied)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}
