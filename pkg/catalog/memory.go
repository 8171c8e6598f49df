package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	exercises map[int64]Exercise
	complexes map[int64]Complex
	nextID    int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exercises: make(map[int64]Exercise),
		complexes: make(map[int64]Complex),
	}
}

// ListExercises implements Store
func (s *MemoryStore) ListExercises(_ context.Context, p Predicate) ([]*Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Exercise{}
	for _, e := range s.exercises {
		if p.Matches(e.CreatedBy) {
			copied := e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetExercise implements Store
func (s *MemoryStore) GetExercise(_ context.Context, p Predicate, id int64) (*Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exercises[id]
	if !ok || !p.Matches(e.CreatedBy) {
		return nil, ErrNotFound
	}
	return &e, nil
}

// CreateExercise implements Store
func (s *MemoryStore) CreateExercise(_ context.Context, e *Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = s.nextID
	s.exercises[e.ID] = *e
	return nil
}

// UpdateExercise implements Store
func (s *MemoryStore) UpdateExercise(_ context.Context, p Predicate, e *Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.exercises[e.ID]
	if !ok || !p.Matches(existing.CreatedBy) {
		return ErrNotFound
	}
	existing.Name = e.Name
	existing.Description = e.Description
	existing.UpdatedAt = e.UpdatedAt
	s.exercises[e.ID] = existing
	return nil
}

// DeleteExercise implements Store
func (s *MemoryStore) DeleteExercise(_ context.Context, p Predicate, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exercises[id]
	if !ok || !p.Matches(e.CreatedBy) {
		return ErrNotFound
	}
	delete(s.exercises, id)
	return nil
}

// ListComplexes implements Store
func (s *MemoryStore) ListComplexes(_ context.Context, p Predicate) ([]*Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Complex{}
	for _, c := range s.complexes {
		if p.Matches(c.CreatedBy) {
			copied := cloneComplex(c)
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// GetComplex implements Store
func (s *MemoryStore) GetComplex(_ context.Context, p Predicate, id int64) (*Complex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.complexes[id]
	if !ok || !p.Matches(c.CreatedBy) {
		return nil, ErrNotFound
	}
	copied := cloneComplex(c)
	return &copied, nil
}

// CreateComplex implements Store
func (s *MemoryStore) CreateComplex(_ context.Context, c *Complex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c.ID = s.nextID
	s.complexes[c.ID] = cloneComplex(*c)
	return nil
}

// UpdateComplex implements Store
func (s *MemoryStore) UpdateComplex(_ context.Context, p Predicate, c *Complex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.complexes[c.ID]
	if !ok || !p.Matches(existing.CreatedBy) {
		return ErrNotFound
	}
	existing.Name = c.Name
	existing.Description = c.Description
	existing.ExerciseIDs = append([]int64(nil), c.ExerciseIDs...)
	existing.UpdatedAt = c.UpdatedAt
	s.complexes[c.ID] = existing
	return nil
}

// DeleteComplex implements Store
func (s *MemoryStore) DeleteComplex(_ context.Context, p Predicate, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.complexes[id]
	if !ok || !p.Matches(c.CreatedBy) {
		return ErrNotFound
	}
	delete(s.complexes, id)
	return nil
}

func cloneComplex(c Complex) Complex {
	c.ExerciseIDs = append([]int64(nil), c.ExerciseIDs...)
	return c
}
