// Package catalog stores exercises and complexes and decides which of them an
// organization can see.
//
// A row with no author (created_by IS NULL) is shared with every
// organization. A row written by a coach is visible only inside organizations
// where that user is currently an admin or owner:
//
//	p, _ := visibility.FilterFor(ctx, orgID)
//	where, args := p.SQL("created_by", 1)
//	// (created_by IS NULL OR created_by = ANY($1))
//
// When a coach leaves an organization their rows drop out of its view
// without being deleted. An organization without coaches sees shared rows
// only; the predicate never degrades to "everything".
//
// Reads, updates and deletes all go through the predicate, so an invisible
// row is indistinguishable from a missing one (ErrNotFound). Shared rows can
// only be created, changed or removed by super-admins (ErrForbidden).
package catalog
