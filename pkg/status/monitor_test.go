package status

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/platinummonkey/barbell/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Check(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.CreateAthlete(ctx, &Athlete{ID: athleteAna, OrganizationID: orgA}))

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	var buf bytes.Buffer
	monitor := NewMonitor(store, metrics, observability.NewLogger(observability.InfoLevel, &buf))

	t.Run("healthy", func(t *testing.T) {
		_, err := store.Supersede(ctx, orgA, athleteAna, &CompetitorStatus{Level: LevelLocal}, time.Now)
		require.NoError(t, err)

		violations, err := monitor.Check(ctx)
		require.NoError(t, err)
		assert.Empty(t, violations)
		assert.Equal(t, float64(0), testutil.ToFloat64(metrics.StatusInvariantViolations))
		assert.Zero(t, buf.Len())
	})

	t.Run("reports without correcting", func(t *testing.T) {
		// a row inserted behind the store's back
		store.mu.Lock()
		store.nextID++
		store.statuses[store.nextID] = CompetitorStatus{ID: store.nextID, AthleteID: athleteAna, Level: LevelRegional}
		store.mu.Unlock()

		violations, err := monitor.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, []Violation{{AthleteID: athleteAna, CurrentCount: 2}}, violations)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.StatusInvariantViolations))
		assert.Contains(t, buf.String(), "more than one current status")

		again, err := monitor.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, violations, again)
	})
}

func TestMonitor_StartStop(t *testing.T) {
	monitor := NewMonitor(NewMemoryStore(), nil, nil)

	t.Run("invalid schedule", func(t *testing.T) {
		err := monitor.Start("not a schedule")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to schedule status monitor")
	})

	t.Run("default schedule", func(t *testing.T) {
		require.NoError(t, monitor.Start(""))
		require.NotNil(t, monitor.cron)
		assert.Len(t, monitor.cron.Entries(), 1)
		monitor.Stop()
	})

	t.Run("stop before start", func(t *testing.T) {
		NewMonitor(NewMemoryStore(), nil, nil).Stop()
	})
}
