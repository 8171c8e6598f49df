package status

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/barbell/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// Manager assigns and edits competitor statuses while keeping at most one
// current status per athlete
type Manager struct {
	store   Store
	metrics *observability.Metrics
	now     func() time.Time
}

// NewManager creates a status manager. metrics may be nil.
func NewManager(store Store, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// timestamp returns now at the precision Postgres stores
func (m *Manager) timestamp() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid"
	case errors.Is(err, ErrAthleteNotFound), errors.Is(err, ErrStatusNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// Create makes a new status the athlete's current one. The previous current status,
// if any, is closed at the same instant the new one starts. Nothing is
// written when the athlete is not in the organization.
func (m *Manager) Create(ctx context.Context, orgID, athleteID int64, in NewStatus) (st *CompetitorStatus, err error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "status.create",
		attribute.Int64("status.organization_id", orgID),
		attribute.Int64("status.athlete_id", athleteID),
	)
	defer func() {
		m.metrics.RecordStatusOperation("create", outcomeOf(err), started)
		observability.EndSpan(span, err)
	}()

	if err := in.Validate(); err != nil {
		return nil, err
	}

	st = &CompetitorStatus{
		Level:          in.Level,
		SexCategory:    in.SexCategory,
		WeightCategory: in.WeightCategory,
	}

	closed, err := m.store.Supersede(ctx, orgID, athleteID, st, m.timestamp)
	if err != nil {
		logger := observability.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"organization_id": orgID,
			"athlete_id":      athleteID,
		})
		if errors.Is(err, ErrConflict) {
			logger.Warn("concurrent status assignment rejected")
		} else if !errors.Is(err, ErrAthleteNotFound) {
			logger.Error("failed to assign status")
		}
		return nil, err
	}

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"organization_id": orgID,
		"athlete_id":      athleteID,
		"status_id":       st.ID,
		"level":           st.Level,
		"closed":          closed,
	})
	if closed > 1 {
		logger.Warn("closed more than one current status")
	} else {
		logger.Info("status assigned")
	}
	return st, nil
}

// Update edits the category fields of a status. Closed statuses stay closed.
func (m *Manager) Update(ctx context.Context, orgID, id int64, p Patch) (st *CompetitorStatus, err error) {
	started := time.Now()
	ctx, span := observability.StartSpan(ctx, "status.update",
		attribute.Int64("status.organization_id", orgID),
		attribute.Int64("status.id", id),
	)
	defer func() {
		m.metrics.RecordStatusOperation("update", outcomeOf(err), started)
		observability.EndSpan(span, err)
	}()

	if err := p.Validate(); err != nil {
		return nil, err
	}

	st, err = m.store.Update(ctx, orgID, id, p, m.timestamp())
	if err != nil {
		if !errors.Is(err, ErrStatusNotFound) {
			observability.FromContext(ctx).WithError(err).WithField("status_id", id).Error("failed to update status")
		}
		return nil, err
	}
	return st, nil
}

// Current returns the athlete's current status
func (m *Manager) Current(ctx context.Context, orgID, athleteID int64) (*CompetitorStatus, error) {
	return m.store.Current(ctx, orgID, athleteID)
}

// History returns every status of the athlete, newest first
func (m *Manager) History(ctx context.Context, orgID, athleteID int64) ([]*CompetitorStatus, error) {
	return m.store.History(ctx, orgID, athleteID)
}
