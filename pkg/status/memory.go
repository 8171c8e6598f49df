package status

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. One mutex serialises every
// write, which gives Supersede the same all-or-nothing behaviour as the
// Postgres transaction.
type MemoryStore struct {
	mu        sync.RWMutex
	athletes  map[int64]Athlete
	statuses  map[int64]CompetitorStatus
	nextID    int64
	athleteID int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		athletes: make(map[int64]Athlete),
		statuses: make(map[int64]CompetitorStatus),
	}
}

// CreateAthlete registers an athlete and assigns an id when a.ID is zero
func (s *MemoryStore) CreateAthlete(_ context.Context, a *Athlete) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		s.athleteID++
		a.ID = s.athleteID
	} else if a.ID > s.athleteID {
		s.athleteID = a.ID
	}
	s.athletes[a.ID] = *a
	return nil
}

func (s *MemoryStore) athleteIn(orgID, athleteID int64) bool {
	a, ok := s.athletes[athleteID]
	return ok && a.OrganizationID == orgID
}

// Supersede implements Store
func (s *MemoryStore) Supersede(_ context.Context, orgID, athleteID int64, st *CompetitorStatus, now func() time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.athleteIn(orgID, athleteID) {
		return 0, ErrAthleteNotFound
	}

	st.StartDate = now()
	st.UpdatedAt = st.StartDate

	var closed int64
	for id, existing := range s.statuses {
		if existing.AthleteID == athleteID && existing.EndDate == nil {
			end := st.StartDate
			existing.EndDate = &end
			existing.UpdatedAt = end
			s.statuses[id] = existing
			closed++
		}
	}

	s.nextID++
	st.ID = s.nextID
	st.AthleteID = athleteID
	st.EndDate = nil
	s.statuses[st.ID] = *st
	return closed, nil
}

// Update implements Store
func (s *MemoryStore) Update(_ context.Context, orgID, id int64, p Patch, now time.Time) (*CompetitorStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.statuses[id]
	if !ok || !s.athleteIn(orgID, st.AthleteID) {
		return nil, ErrStatusNotFound
	}
	p.apply(&st)
	st.UpdatedAt = now
	s.statuses[id] = st
	return &st, nil
}

// Current implements Store
func (s *MemoryStore) Current(_ context.Context, orgID, athleteID int64) (*CompetitorStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.athleteIn(orgID, athleteID) {
		return nil, ErrAthleteNotFound
	}
	var current *CompetitorStatus
	for _, st := range s.statuses {
		if st.AthleteID != athleteID || st.EndDate != nil {
			continue
		}
		if current == nil || newerThan(st, *current) {
			copied := st
			current = &copied
		}
	}
	if current == nil {
		return nil, ErrStatusNotFound
	}
	return current, nil
}

// History implements Store
func (s *MemoryStore) History(_ context.Context, orgID, athleteID int64) ([]*CompetitorStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.athleteIn(orgID, athleteID) {
		return nil, ErrAthleteNotFound
	}
	history := []*CompetitorStatus{}
	for _, st := range s.statuses {
		if st.AthleteID == athleteID {
			copied := st
			history = append(history, &copied)
		}
	}
	sort.Slice(history, func(i, j int) bool {
		return newerThan(*history[i], *history[j])
	})
	return history, nil
}

// Violations implements Store
func (s *MemoryStore) Violations(_ context.Context) ([]Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make(map[int64]int)
	for _, st := range s.statuses {
		if st.EndDate == nil {
			open[st.AthleteID]++
		}
	}
	violations := []Violation{}
	for athleteID, n := range open {
		if n > 1 {
			violations = append(violations, Violation{AthleteID: athleteID, CurrentCount: n})
		}
	}
	sort.Slice(violations, func(i, j int) bool {
		return violations[i].AthleteID < violations[j].AthleteID
	})
	return violations, nil
}

func newerThan(a, b CompetitorStatus) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.After(b.StartDate)
	}
	return a.ID > b.ID
}
