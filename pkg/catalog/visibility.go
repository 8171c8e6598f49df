package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/lib/pq"
)

// CoachLister returns the users allowed to author private content in an organization
type CoachLister interface {
	CoachUserIDs(ctx context.Context, organizationID int64) ([]int64, error)
}

// Predicate selects the catalog rows visible inside one organization:
// shared rows plus rows authored by the organization's current coaches.
type Predicate struct {
	OrganizationID int64
	CoachIDs       []int64 // sorted, unique
}

// Matches reports whether a row with the given author is visible
func (p Predicate) Matches(createdBy *int64) bool {
	if createdBy == nil {
		return true
	}
	i := sort.Search(len(p.CoachIDs), func(i int) bool { return p.CoachIDs[i] >= *createdBy })
	return i < len(p.CoachIDs) && p.CoachIDs[i] == *createdBy
}

// SQL renders the predicate over column using placeholder $argIndex.
// Without coaches it selects shared rows only.
func (p Predicate) SQL(column string, argIndex int) (string, []interface{}) {
	if len(p.CoachIDs) == 0 {
		return column + " IS NULL", nil
	}
	return fmt.Sprintf("(%s IS NULL OR %s = ANY($%d))", column, column, argIndex), []interface{}{pq.Array(p.CoachIDs)}
}

// VisibilityBuilder computes predicates from current membership
type VisibilityBuilder struct {
	coaches CoachLister
}

// NewVisibilityBuilder creates a builder
func NewVisibilityBuilder(coaches CoachLister) *VisibilityBuilder {
	return &VisibilityBuilder{coaches: coaches}
}

// FilterFor returns the visibility predicate for an organization
func (b *VisibilityBuilder) FilterFor(ctx context.Context, organizationID int64) (Predicate, error) {
	ids, err := b.coaches.CoachUserIDs(ctx, organizationID)
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: failed to list coaches: %v", ErrVisibilityUnavailable, err)
	}

	return Predicate{
		OrganizationID: organizationID,
		CoachIDs:       normalizeIDs(ids),
	}, nil
}

func normalizeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	out = append(out, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	unique := out[:0]
	for _, id := range out {
		if len(unique) == 0 || id != unique[len(unique)-1] {
			unique = append(unique, id)
		}
	}
	return unique
}
