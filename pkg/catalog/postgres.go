package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new catalog store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const exerciseColumns = `id, name, description, created_by, created_at, updated_at`

func scanExercise(row interface{ Scan(...interface{}) error }) (*Exercise, error) {
	e := &Exercise{}
	var createdBy sql.NullInt64
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &createdBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if createdBy.Valid {
		e.CreatedBy = &createdBy.Int64
	}
	return e, nil
}

// ListExercises returns the visible exercises ordered by name
func (s *PostgresStore) ListExercises(ctx context.Context, p Predicate) ([]*Exercise, error) {
	where, args := p.SQL("created_by", 1)
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE ` + where + ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	defer rows.Close()

	exercises := []*Exercise{}
	for rows.Next() {
		e, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}

	return exercises, nil
}

// GetExercise returns a visible exercise
func (s *PostgresStore) GetExercise(ctx context.Context, p Predicate, id int64) (*Exercise, error) {
	where, args := p.SQL("created_by", 2)
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE id = $1 AND ` + where

	e, err := scanExercise(s.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return e, nil
}

// CreateExercise inserts an exercise and sets its id
func (s *PostgresStore) CreateExercise(ctx context.Context, e *Exercise) error {
	query := `
		INSERT INTO exercises (name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, e.Name, e.Description, e.CreatedBy, e.CreatedAt, e.UpdatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	return nil
}

// UpdateExercise overwrites the name and description of a visible exercise
func (s *PostgresStore) UpdateExercise(ctx context.Context, p Predicate, e *Exercise) error {
	where, args := p.SQL("created_by", 5)
	query := `
		UPDATE exercises SET name = $1, description = $2, updated_at = $3
		WHERE id = $4 AND ` + where

	result, err := s.db.ExecContext(ctx, query, append([]interface{}{e.Name, e.Description, e.UpdatedAt, e.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update exercise: %w", err)
	}
	return requireAffected(result)
}

// DeleteExercise removes a visible exercise
func (s *PostgresStore) DeleteExercise(ctx context.Context, p Predicate, id int64) error {
	where, args := p.SQL("created_by", 2)
	query := `DELETE FROM exercises WHERE id = $1 AND ` + where

	result, err := s.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to delete exercise: %w", err)
	}
	return requireAffected(result)
}

const complexColumns = `id, name, description, exercise_ids, created_by, created_at, updated_at`

func scanComplex(row interface{ Scan(...interface{}) error }) (*Complex, error) {
	c := &Complex{}
	var createdBy sql.NullInt64
	var exerciseIDs pq.Int64Array
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &exerciseIDs, &createdBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ExerciseIDs = []int64(exerciseIDs)
	if createdBy.Valid {
		c.CreatedBy = &createdBy.Int64
	}
	return c, nil
}

// ListComplexes returns the visible complexes ordered by name
func (s *PostgresStore) ListComplexes(ctx context.Context, p Predicate) ([]*Complex, error) {
	where, args := p.SQL("created_by", 1)
	query := `SELECT ` + complexColumns + ` FROM complexes WHERE ` + where + ` ORDER BY name ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list complexes: %w", err)
	}
	defer rows.Close()

	complexes := []*Complex{}
	for rows.Next() {
		c, err := scanComplex(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan complex: %w", err)
		}
		complexes = append(complexes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list complexes: %w", err)
	}

	return complexes, nil
}

// GetComplex returns a visible complex
func (s *PostgresStore) GetComplex(ctx context.Context, p Predicate, id int64) (*Complex, error) {
	where, args := p.SQL("created_by", 2)
	query := `SELECT ` + complexColumns + ` FROM complexes WHERE id = $1 AND ` + where

	c, err := scanComplex(s.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get complex: %w", err)
	}
	return c, nil
}

// CreateComplex inserts a complex and sets its id
func (s *PostgresStore) CreateComplex(ctx context.Context, c *Complex) error {
	query := `
		INSERT INTO complexes (name, description, exercise_ids, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		c.Name, c.Description, pq.Array(c.ExerciseIDs), c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create complex: %w", err)
	}
	return nil
}

// UpdateComplex overwrites the writable fields of a visible complex
func (s *PostgresStore) UpdateComplex(ctx context.Context, p Predicate, c *Complex) error {
	where, args := p.SQL("created_by", 6)
	query := `
		UPDATE complexes SET name = $1, description = $2, exercise_ids = $3, updated_at = $4
		WHERE id = $5 AND ` + where

	result, err := s.db.ExecContext(ctx, query,
		append([]interface{}{c.Name, c.Description, pq.Array(c.ExerciseIDs), c.UpdatedAt, c.ID}, args...)...,
	)
	if err != nil {
		return fmt.Errorf("failed to update complex: %w", err)
	}
	return requireAffected(result)
}

// DeleteComplex removes a visible complex
func (s *PostgresStore) DeleteComplex(ctx context.Context, p Predicate, id int64) error {
	where, args := p.SQL("created_by", 2)
	query := `DELETE FROM complexes WHERE id = $1 AND ` + where

	result, err := s.db.ExecContext(ctx, query, append([]interface{}{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to delete complex: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
