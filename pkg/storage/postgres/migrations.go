package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/barbell/pkg/observability"
)

// Migration is one forward-only schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns every migration in version order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users, organizations and members tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(320) NOT NULL,
					email_verified BOOLEAN NOT NULL DEFAULT FALSE,
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(lower(email));

				CREATE TABLE IF NOT EXISTS organizations (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					role VARCHAR(16) NOT NULL CHECK (role IN ('member', 'admin', 'owner')),
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, organization_id)
				);

				CREATE INDEX IF NOT EXISTS idx_members_organization_role ON members(organization_id, role);
			`,
		},
		{
			Version:     2,
			Description: "Create exercises and complexes tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS exercises (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(200) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_exercises_created_by ON exercises(created_by);

				CREATE TABLE IF NOT EXISTS complexes (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(200) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					exercise_ids BIGINT[] NOT NULL DEFAULT '{}',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_complexes_created_by ON complexes(created_by);
			`,
		},
		{
			Version:     3,
			Description: "Create athletes and competitor_statuses tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS athletes (
					id BIGSERIAL PRIMARY KEY,
					organization_id BIGINT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_athletes_organization_id ON athletes(organization_id);

				CREATE TABLE IF NOT EXISTS competitor_statuses (
					id BIGSERIAL PRIMARY KEY,
					athlete_id BIGINT NOT NULL REFERENCES athletes(id) ON DELETE CASCADE,
					level VARCHAR(16) NOT NULL CHECK (level IN ('local', 'regional', 'national', 'international')),
					sex_category VARCHAR(8) NOT NULL CHECK (sex_category IN ('male', 'female')),
					weight_category VARCHAR(32) NOT NULL CHECK (weight_category <> ''),
					start_date TIMESTAMPTZ NOT NULL,
					end_date TIMESTAMPTZ,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					CHECK (end_date IS NULL OR end_date >= start_date)
				);

				CREATE INDEX IF NOT EXISTS idx_competitor_statuses_athlete_id ON competitor_statuses(athlete_id, start_date DESC);
				CREATE UNIQUE INDEX IF NOT EXISTS idx_competitor_statuses_current
					ON competitor_statuses(athlete_id) WHERE end_date IS NULL;
			`,
		},
		{
			Version:     4,
			Description: "Create audit_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT,
					organization_id BIGINT,
					action VARCHAR(64) NOT NULL,
					resource_type VARCHAR(64) NOT NULL,
					resource_id VARCHAR(255),
					ip_address VARCHAR(64),
					user_agent TEXT,
					request_id VARCHAR(64),
					status VARCHAR(16) NOT NULL,
					reason TEXT,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_user_id ON audit_logs(user_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_organization_id ON audit_logs(organization_id, created_at DESC);
			`,
		},
	}
}

// RunMigrations applies every migration not yet recorded in schema_migrations.
// Each migration runs in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.NopLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.Infof("Running migration %d: %s", migration.Version, migration.Description)
		if err := applyMigration(ctx, db, migration); err != nil {
			return err
		}
		logger.Infof("Migration %d completed successfully", migration.Version)
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	return applied, nil
}

func applyMigration(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}
	return nil
}
