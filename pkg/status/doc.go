// Package status keeps each athlete's competitor status history.
//
// A history is a series of rows where at most one has no end date; that row
// is the athlete's current status. Assigning a new status closes the current
// one and opens the new one at the same instant, inside one unit of work:
//
//	mgr := status.NewManager(status.NewPostgresStore(db), metrics)
//	st, err := mgr.Create(ctx, orgID, athleteID, status.NewStatus{
//		Level:          status.LevelNational,
//		SexCategory:    status.SexFemale,
//		WeightCategory: "-63",
//	})
//
// PostgresStore locks the athlete row for the transaction, and a partial
// unique index on open rows turns any race that slips past into ErrConflict.
// MemoryStore holds one mutex across close and insert.
//
// Update only edits category fields. It never reopens a closed row.
//
// Monitor re-checks the invariant on a cron schedule and exports the number
// of violating athletes as a gauge.
package status
