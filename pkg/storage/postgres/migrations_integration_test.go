//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_Postgres(t *testing.T) {
	db := SetupPostgresContainer(t)
	ctx := context.Background()

	// second run is a no-op
	require.NoError(t, RunMigrations(ctx, db, nil))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(GetMigrations()), applied)

	_, err := db.ExecContext(ctx, `INSERT INTO organizations (name, slug) VALUES ('Iron Club', 'iron-club')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO athletes (organization_id, name) VALUES (1, 'Ana')`)
	require.NoError(t, err)

	insert := `INSERT INTO competitor_statuses (athlete_id, level, sex_category, weight_category, start_date)
		VALUES (1, 'regional', 'female', '-63', NOW())`
	_, err = db.ExecContext(ctx, insert)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insert)
	require.Error(t, err, "a second open status must violate the partial index")
	var pqErr *pq.Error
	require.True(t, errors.As(err, &pqErr))
	assert.Equal(t, "23505", string(pqErr.Code))
}
