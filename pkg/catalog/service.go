package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/barbell/pkg/auth"
	"github.com/platinummonkey/barbell/pkg/observability"
)

// Service applies visibility and authorship rules on top of a Store.
// Callers have already passed the permission check; the auth context carries
// the organization it was made in.
type Service struct {
	store      Store
	visibility *VisibilityBuilder
	now        func() time.Time
}

// NewService creates a catalog service
func NewService(store Store, visibility *VisibilityBuilder) *Service {
	return &Service{
		store:      store,
		visibility: visibility,
		now:        time.Now,
	}
}

func (s *Service) predicate(ctx context.Context, actor *auth.AuthContext) (Predicate, error) {
	return s.visibility.FilterFor(ctx, actor.OrganizationID)
}

// author returns the created_by value for new content
func author(actor *auth.AuthContext, public bool) (*int64, error) {
	if public {
		if !actor.IsSuperAdmin() {
			return nil, fmt.Errorf("%w: only super-admins create shared content", ErrForbidden)
		}
		return nil, nil
	}
	id := actor.UserID()
	return &id, nil
}

// checkWritable rejects changes to shared rows by anyone but a super-admin
func checkWritable(actor *auth.AuthContext, createdBy *int64) error {
	if createdBy == nil && !actor.IsSuperAdmin() {
		return ErrForbidden
	}
	return nil
}

// ListExercises returns the exercises visible in the actor's organization
func (s *Service) ListExercises(ctx context.Context, actor *auth.AuthContext) ([]*Exercise, error) {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListExercises(ctx, p)
}

// GetExercise returns one visible exercise
func (s *Service) GetExercise(ctx context.Context, actor *auth.AuthContext, id int64) (*Exercise, error) {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.GetExercise(ctx, p, id)
}

// CreateExercise stores a new exercise authored by the actor
func (s *Service) CreateExercise(ctx context.Context, actor *auth.AuthContext, in ExerciseInput) (*Exercise, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	createdBy, err := author(actor, in.Public)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &Exercise{
		Name:        in.Name,
		Description: in.Description,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateExercise(ctx, e); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"exercise_id":     e.ID,
		"organization_id": actor.OrganizationID,
		"public":          e.IsPublic(),
	}).Info("exercise created")
	return e, nil
}

// UpdateExercise changes a visible exercise
func (s *Service) UpdateExercise(ctx context.Context, actor *auth.AuthContext, id int64, in ExerciseInput) (*Exercise, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}

	e, err := s.store.GetExercise(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(actor, e.CreatedBy); err != nil {
		return nil, err
	}

	e.Name = in.Name
	e.Description = in.Description
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateExercise(ctx, p, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteExercise removes a visible exercise
func (s *Service) DeleteExercise(ctx context.Context, actor *auth.AuthContext, id int64) error {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return err
	}

	e, err := s.store.GetExercise(ctx, p, id)
	if err != nil {
		return err
	}
	if err := checkWritable(actor, e.CreatedBy); err != nil {
		return err
	}
	return s.store.DeleteExercise(ctx, p, id)
}

// ListComplexes returns the complexes visible in the actor's organization
func (s *Service) ListComplexes(ctx context.Context, actor *auth.AuthContext) ([]*Complex, error) {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.ListComplexes(ctx, p)
}

// GetComplex returns one visible complex
func (s *Service) GetComplex(ctx context.Context, actor *auth.AuthContext, id int64) (*Complex, error) {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.store.GetComplex(ctx, p, id)
}

// CreateComplex stores a new complex authored by the actor
func (s *Service) CreateComplex(ctx context.Context, actor *auth.AuthContext, in ComplexInput) (*Complex, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	createdBy, err := author(actor, in.Public)
	if err != nil {
		return nil, err
	}
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := s.checkExercises(ctx, p, in.ExerciseIDs, createdBy == nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &Complex{
		Name:        in.Name,
		Description: in.Description,
		ExerciseIDs: in.ExerciseIDs,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateComplex(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateComplex changes a visible complex
func (s *Service) UpdateComplex(ctx context.Context, actor *auth.AuthContext, id int64, in ComplexInput) (*Complex, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return nil, err
	}

	c, err := s.store.GetComplex(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := checkWritable(actor, c.CreatedBy); err != nil {
		return nil, err
	}
	if err := s.checkExercises(ctx, p, in.ExerciseIDs, c.IsPublic()); err != nil {
		return nil, err
	}

	c.Name = in.Name
	c.Description = in.Description
	c.ExerciseIDs = in.ExerciseIDs
	c.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateComplex(ctx, p, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComplex removes a visible complex
func (s *Service) DeleteComplex(ctx context.Context, actor *auth.AuthContext, id int64) error {
	p, err := s.predicate(ctx, actor)
	if err != nil {
		return err
	}

	c, err := s.store.GetComplex(ctx, p, id)
	if err != nil {
		return err
	}
	if err := checkWritable(actor, c.CreatedBy); err != nil {
		return err
	}
	return s.store.DeleteComplex(ctx, p, id)
}

// checkExercises requires every referenced exercise to be visible. Shared
// complexes may only reference shared exercises.
func (s *Service) checkExercises(ctx context.Context, p Predicate, ids []int64, public bool) error {
	for _, id := range ids {
		e, err := s.store.GetExercise(ctx, p, id)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: exercise %d not found", ErrInvalidInput, id)
		}
		if err != nil {
			return err
		}
		if public && !e.IsPublic() {
			return fmt.Errorf("%w: shared complexes may only use shared exercises", ErrInvalidInput)
		}
	}
	return nil
}
