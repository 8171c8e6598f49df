package catalog

import "context"

// Store persists exercises and complexes. Every read, update and delete is
// restricted by a visibility predicate; rows outside it behave as missing.
type Store interface {
	ListExercises(ctx context.Context, p Predicate) ([]*Exercise, error)
	GetExercise(ctx context.Context, p Predicate, id int64) (*Exercise, error)
	CreateExercise(ctx context.Context, e *Exercise) error
	UpdateExercise(ctx context.Context, p Predicate, e *Exercise) error
	DeleteExercise(ctx context.Context, p Predicate, id int64) error

	ListComplexes(ctx context.Context, p Predicate) ([]*Complex, error)
	GetComplex(ctx context.Context, p Predicate, id int64) (*Complex, error)
	CreateComplex(ctx context.Context, c *Complex) error
	UpdateComplex(ctx context.Context, p Predicate, c *Complex) error
	DeleteComplex(ctx context.Context, p Predicate, id int64) error
}
