package orgs

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/platinummonkey/barbell/pkg/rbac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func newMockDirectory(t *testing.T) (*PostgresDirectory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresDirectory(db), mock
}

func TestPostgresDirectory_RoleOf(t *testing.T) {
	ctx := context.Background()
	dir, mock := newMockDirectory(t)

	t.Run("member", func(t *testing.T) {
		mock.ExpectQuery(`SELECT role FROM members WHERE user_id = \$1 AND organization_id = \$2`).
			WithArgs(int64(7), int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

		role, err := dir.RoleOf(ctx, 7, 3)
		require.NoError(t, err)
		assert.Equal(t, rbac.RoleAdmin, role)
	})

	t.Run("not a member", func(t *testing.T) {
		mock.ExpectQuery(`SELECT role FROM members`).
			WithArgs(int64(7), int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))

		_, err := dir.RoleOf(ctx, 7, 4)
		assert.ErrorIs(t, err, ErrNotAMember)
		assert.ErrorIs(t, err, rbac.ErrNotAMember)
	})

	t.Run("unknown role in database", func(t *testing.T) {
		mock.ExpectQuery(`SELECT role FROM members`).
			WithArgs(int64(7), int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("superuser"))

		_, err := dir.RoleOf(ctx, 7, 5)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotAMember)
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT role FROM members`).
			WithArgs(int64(7), int64(6)).
			WillReturnError(errors.New("connection reset"))

		_, err := dir.RoleOf(ctx, 7, 6)
		assert.ErrorContains(t, err, "failed to get member role")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_UserIDs(t *testing.T) {
	ctx := context.Background()
	dir, mock := newMockDirectory(t)

	mock.ExpectQuery(`SELECT user_id FROM members\s+WHERE organization_id = \$1 AND role IN \('admin', 'owner'\)`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(2)).AddRow(int64(9)))

	coaches, err := dir.CoachUserIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 9}, coaches)

	mock.ExpectQuery(`SELECT user_id FROM members\s+WHERE organization_id = \$1 AND role = 'member'`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	athletes, err := dir.AthleteUserIDs(ctx, 3)
	require.NoError(t, err)
	assert.NotNil(t, athletes)
	assert.Empty(t, athletes)

	mock.ExpectQuery(`SELECT user_id FROM members`).
		WithArgs(int64(4)).
		WillReturnError(errors.New("timeout"))

	_, err = dir.CoachUserIDs(ctx, 4)
	assert.ErrorContains(t, err, "failed to list member ids")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDirectory_GetOrganization(t *testing.T) {
	ctx := context.Background()
	dir, mock := newMockDirectory(t)
	created := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, slug, created_at FROM organizations WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "created_at"}).AddRow(int64(3), "Iron Club", "iron-club", created))

	org, err := dir.GetOrganization(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, &Organization{ID: 3, Name: "Iron Club", Slug: "iron-club", CreatedAt: created}, org)

	mock.ExpectQuery(`FROM organizations WHERE slug = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug", "created_at"}))

	_, err = dir.GetOrganizationBySlug(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrganizationNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE organizations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			organization_id INTEGER NOT NULL REFERENCES organizations(id),
			role TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, organization_id)
		);

		INSERT INTO organizations (name, slug) VALUES ('Iron Club', 'iron-club'), ('Chalk Box', 'chalk-box');

		INSERT INTO members (user_id, organization_id, role) VALUES
			(1, 1, 'owner'),
			(2, 1, 'admin'),
			(3, 1, 'member'),
			(4, 1, 'member'),
			(2, 2, 'member');
	`)
	require.NoError(t, err)
	return db
}

func TestPostgresDirectory_SQLRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := NewPostgresDirectory(setupTestDB(t))

	role, err := dir.RoleOf(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleAdmin, role)

	role, err = dir.RoleOf(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleMember, role)

	_, err = dir.RoleOf(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotAMember)

	coaches, err := dir.CoachUserIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, coaches)

	athletes, err := dir.AthleteUserIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 4}, athletes)

	coaches, err = dir.CoachUserIDs(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, coaches)

	members, err := dir.ListMembers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, members, 4)
	assert.Equal(t, rbac.RoleOwner, members[0].Role)
	assert.True(t, members[0].IsCoach())
	assert.False(t, members[2].IsCoach())

	org, err := dir.GetOrganizationBySlug(ctx, "chalk-box")
	require.NoError(t, err)
	assert.Equal(t, int64(2), org.ID)
	assert.False(t, org.CreatedAt.IsZero())
}
