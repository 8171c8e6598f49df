package status

import (
	"context"
	"time"
)

// Store persists athletes' status histories. Every method is scoped to an
// organization: an athlete or status outside it does not exist.
type Store interface {
	// Supersede closes the athlete's current status and inserts s as the new
	// current status, as one unit of work. now is read once the athlete is
	// locked and becomes both the closed row's end date and the start date of
	// s. It returns how many rows were closed (0 or 1 when the invariant holds).
	Supersede(ctx context.Context, orgID, athleteID int64, s *CompetitorStatus, now func() time.Time) (int64, error)

	// Update applies p to a status and stamps updatedAt. The end date is never touched.
	Update(ctx context.Context, orgID, id int64, p Patch, now time.Time) (*CompetitorStatus, error)

	// Current returns the athlete's open status
	Current(ctx context.Context, orgID, athleteID int64) (*CompetitorStatus, error)

	// History returns every status of the athlete, newest first
	History(ctx context.Context, orgID, athleteID int64) ([]*CompetitorStatus, error)

	// Violations lists athletes with more than one open status, across all organizations
	Violations(ctx context.Context) ([]Violation, error)
}
