package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the SQLSTATE raised by the partial index on open statuses
const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new status store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

const statusColumns = `id, athlete_id, level, sex_category, weight_category, start_date, end_date, updated_at`

func scanStatus(row interface{ Scan(...interface{}) error }) (*CompetitorStatus, error) {
	s := &CompetitorStatus{}
	var level, sex string
	var endDate sql.NullTime
	err := row.Scan(&s.ID, &s.AthleteID, &level, &sex, &s.WeightCategory, &s.StartDate, &endDate, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Level = Level(level)
	s.SexCategory = SexCategory(sex)
	if endDate.Valid {
		end := endDate.Time
		s.EndDate = &end
	}
	return s, nil
}

// Supersede implements Store. The athlete row is locked for the duration of
// the transaction, so concurrent calls for one athlete run one after another;
// the partial unique index catches anything that slips past.
func (s *PostgresStore) Supersede(ctx context.Context, orgID, athleteID int64, st *CompetitorStatus, now func() time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var lockedID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM athletes WHERE id = $1 AND organization_id = $2 FOR UPDATE`,
		athleteID, orgID,
	).Scan(&lockedID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrAthleteNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock athlete: %w", err)
	}

	st.StartDate = now()
	st.UpdatedAt = st.StartDate

	result, err := tx.ExecContext(ctx,
		`UPDATE competitor_statuses SET end_date = $1, updated_at = $1 WHERE athlete_id = $2 AND end_date IS NULL`,
		st.StartDate, athleteID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close current status: %w", err)
	}
	closed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to close current status: %w", err)
	}

	insert := `
		INSERT INTO competitor_statuses (athlete_id, level, sex_category, weight_category, start_date, end_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULL, $6)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insert,
		athleteID,
		string(st.Level),
		string(st.SexCategory),
		st.WeightCategory,
		st.StartDate,
		st.UpdatedAt,
	).Scan(&st.ID)
	if isUniqueViolation(err) {
		return 0, ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("failed to insert status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("failed to commit status: %w", err)
	}

	st.AthleteID = athleteID
	st.EndDate = nil
	return closed, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

// Update implements Store
func (s *PostgresStore) Update(ctx context.Context, orgID, id int64, p Patch, now time.Time) (*CompetitorStatus, error) {
	var level, sex *string
	if p.Level != nil {
		v := string(*p.Level)
		level = &v
	}
	if p.SexCategory != nil {
		v := string(*p.SexCategory)
		sex = &v
	}

	query := `
		UPDATE competitor_statuses AS cs SET
			level = COALESCE($1, cs.level),
			sex_category = COALESCE($2, cs.sex_category),
			weight_category = COALESCE($3, cs.weight_category),
			updated_at = $4
		FROM athletes AS a
		WHERE cs.id = $5 AND cs.athlete_id = a.id AND a.organization_id = $6
		RETURNING cs.id, cs.athlete_id, cs.level, cs.sex_category, cs.weight_category, cs.start_date, cs.end_date, cs.updated_at
	`
	st, err := scanStatus(s.db.QueryRowContext(ctx, query,
		nullString(level),
		nullString(sex),
		nullString(p.WeightCategory),
		now,
		id,
		orgID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) athleteExists(ctx context.Context, orgID, athleteID int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM athletes WHERE id = $1 AND organization_id = $2)`,
		athleteID, orgID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check athlete: %w", err)
	}
	if !exists {
		return ErrAthleteNotFound
	}
	return nil
}

// Current implements Store
func (s *PostgresStore) Current(ctx context.Context, orgID, athleteID int64) (*CompetitorStatus, error) {
	if err := s.athleteExists(ctx, orgID, athleteID); err != nil {
		return nil, err
	}

	query := `SELECT ` + statusColumns + ` FROM competitor_statuses
		WHERE athlete_id = $1 AND end_date IS NULL
		ORDER BY start_date DESC, id DESC
		LIMIT 1`
	st, err := scanStatus(s.db.QueryRowContext(ctx, query, athleteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current status: %w", err)
	}
	return st, nil
}

// History implements Store
func (s *PostgresStore) History(ctx context.Context, orgID, athleteID int64) ([]*CompetitorStatus, error) {
	if err := s.athleteExists(ctx, orgID, athleteID); err != nil {
		return nil, err
	}

	query := `SELECT ` + statusColumns + ` FROM competitor_statuses
		WHERE athlete_id = $1
		ORDER BY start_date DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query, athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	defer rows.Close()

	history := []*CompetitorStatus{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		history = append(history, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	return history, nil
}

// Violations implements Store
func (s *PostgresStore) Violations(ctx context.Context) ([]Violation, error) {
	query := `
		SELECT athlete_id, COUNT(*) FROM competitor_statuses
		WHERE end_date IS NULL
		GROUP BY athlete_id
		HAVING COUNT(*) > 1
		ORDER BY athlete_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to check statuses: %w", err)
	}
	defer rows.Close()

	violations := []Violation{}
	for rows.Next() {
		var v Violation
		if err := rows.Scan(&v.AthleteID, &v.CurrentCount); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to check statuses: %w", err)
	}
	return violations, nil
}

// CreateAthlete registers an athlete in an organization
func (s *PostgresStore) CreateAthlete(ctx context.Context, a *Athlete) error {
	query := `
		INSERT INTO athletes (organization_id, user_id, name)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := s.db.QueryRowContext(ctx, query, a.OrganizationID, a.UserID, a.Name).Scan(&a.ID); err != nil {
		return fmt.Errorf("failed to create athlete: %w", err)
	}
	return nil
}
