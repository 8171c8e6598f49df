package status

import (
	"context"
	"fmt"

	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/robfig/cron/v3"
)

// DefaultMonitorSchedule runs the invariant check every 15 minutes
const DefaultMonitorSchedule = "*/15 * * * *"

// Monitor periodically looks for athletes with more than one current status.
// It only reports; rows are never corrected automatically.
type Monitor struct {
	store   Store
	metrics *observability.Metrics
	logger  *observability.Logger
	cron    *cron.Cron
}

// NewMonitor creates an invariant monitor
func NewMonitor(store Store, metrics *observability.Metrics, logger *observability.Logger) *Monitor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Monitor{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Check runs one pass and publishes the number of violating athletes
func (m *Monitor) Check(ctx context.Context) ([]Violation, error) {
	violations, err := m.store.Violations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check status invariant: %w", err)
	}

	m.metrics.SetStatusInvariantViolations(len(violations))
	for _, v := range violations {
		m.logger.WithFields(map[string]interface{}{
			"athlete_id":    v.AthleteID,
			"current_count": v.CurrentCount,
		}).Error("athlete has more than one current status")
	}
	return violations, nil
}

// Start schedules Check with a standard five-field cron expression
func (m *Monitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultMonitorSchedule
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(m.logger, "status.Monitor")
		if _, err := m.Check(context.Background()); err != nil {
			m.logger.WithError(err).Error("status invariant check failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule status monitor: %w", err)
	}

	c.Start()
	m.cron = c
	m.logger.Infof("Status monitor started with schedule %s", schedule)
	return nil
}

// Stop waits for a running check to finish
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}
