package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/barbell/pkg/rbac"
)

// PostgresDirectory reads organizations and members from the database
type PostgresDirectory struct {
	db *sql.DB
}

var _ Directory = (*PostgresDirectory)(nil)

// NewPostgresDirectory creates a new directory
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// RoleOf returns the user's role in the organization
func (d *PostgresDirectory) RoleOf(ctx context.Context, userID, organizationID int64) (rbac.Role, error) {
	query := `SELECT role FROM members WHERE user_id = $1 AND organization_id = $2`

	var role rbac.Role
	err := d.db.QueryRowContext(ctx, query, userID, organizationID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotAMember
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get member role: %w", err)
	}

	return role, nil
}

// CoachUserIDs returns the admins and owners of the organization
func (d *PostgresDirectory) CoachUserIDs(ctx context.Context, organizationID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM members
		WHERE organization_id = $1 AND role IN ('admin', 'owner')
		ORDER BY user_id ASC
	`
	return d.userIDs(ctx, query, organizationID)
}

// AthleteUserIDs returns the plain members of the organization
func (d *PostgresDirectory) AthleteUserIDs(ctx context.Context, organizationID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM members
		WHERE organization_id = $1 AND role = 'member'
		ORDER BY user_id ASC
	`
	return d.userIDs(ctx, query, organizationID)
}

func (d *PostgresDirectory) userIDs(ctx context.Context, query string, organizationID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list member ids: %w", err)
	}

	return ids, nil
}

// GetOrganization retrieves an organization by id
func (d *PostgresDirectory) GetOrganization(ctx context.Context, id int64) (*Organization, error) {
	query := `SELECT id, name, slug, created_at FROM organizations WHERE id = $1`
	return d.getOrganization(ctx, query, id)
}

// GetOrganizationBySlug retrieves an organization by slug
func (d *PostgresDirectory) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `SELECT id, name, slug, created_at FROM organizations WHERE slug = $1`
	return d.getOrganization(ctx, query, slug)
}

func (d *PostgresDirectory) getOrganization(ctx context.Context, query string, arg interface{}) (*Organization, error) {
	org := &Organization{}
	err := d.db.QueryRowContext(ctx, query, arg).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListMembers retrieves all members of an organization
func (d *PostgresDirectory) ListMembers(ctx context.Context, organizationID int64) ([]*Member, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM members
		WHERE organization_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		member := &Member{}
		if err := rows.Scan(&member.ID, &member.UserID, &member.OrganizationID, &member.Role, &member.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}
