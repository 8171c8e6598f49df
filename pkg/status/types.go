package status

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAthleteNotFound means the athlete does not exist inside the organization
	ErrAthleteNotFound = errors.New("athlete not found")
	// ErrStatusNotFound means the status does not exist inside the organization
	ErrStatusNotFound = errors.New("status not found")
	// ErrConflict means the write would leave an athlete with two current statuses
	ErrConflict = errors.New("status conflict")
	// ErrInvalidStatus wraps every validation failure
	ErrInvalidStatus = errors.New("invalid status")
)

// Level is the competition level of a status
type Level string

const (
	LevelLocal         Level = "local"
	LevelRegional      Level = "regional"
	LevelNational      Level = "national"
	LevelInternational Level = "international"
)

// Levels returns every level from lowest to highest
func Levels() []Level {
	return []Level{LevelLocal, LevelRegional, LevelNational, LevelInternational}
}

// Valid reports whether l is a known level
func (l Level) Valid() bool {
	switch l {
	case LevelLocal, LevelRegional, LevelNational, LevelInternational:
		return true
	}
	return false
}

// SexCategory is the competition sex category
type SexCategory string

const (
	SexMale   SexCategory = "male"
	SexFemale SexCategory = "female"
)

// Valid reports whether s is a known category
func (s SexCategory) Valid() bool {
	return s == SexMale || s == SexFemale
}

const maxWeightCategoryLength = 32

func validateWeightCategory(w string) error {
	if w == "" {
		return fmt.Errorf("%w: weightCategory is required", ErrInvalidStatus)
	}
	if len(w) > maxWeightCategoryLength {
		return fmt.Errorf("%w: weightCategory must be at most %d characters", ErrInvalidStatus, maxWeightCategoryLength)
	}
	return nil
}

// Athlete is a competitor bound to one organization
type Athlete struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organizationId"`
	UserID         *int64 `json:"userId"`
	Name           string `json:"name"`
}

// CompetitorStatus is one entry in an athlete's status history.
// A nil EndDate marks the current entry.
type CompetitorStatus struct {
	ID             int64
	AthleteID      int64
	Level          Level
	SexCategory    SexCategory
	WeightCategory string
	StartDate      time.Time
	EndDate        *time.Time
	UpdatedAt      time.Time
}

// IsCurrent reports whether the status is still open
func (s *CompetitorStatus) IsCurrent() bool {
	return s.EndDate == nil
}

// StatusDTO is the outward representation of a status
type StatusDTO struct {
	ID             int64   `json:"id"`
	Level          string  `json:"level"`
	SexCategory    string  `json:"sexCategory"`
	WeightCategory string  `json:"weightCategory"`
	UpdatedAt      string  `json:"updatedAt"`
	EndDate        *string `json:"endDate"`
}

// DTO renders the status with RFC3339 timestamps
func (s *CompetitorStatus) DTO() StatusDTO {
	dto := StatusDTO{
		ID:             s.ID,
		Level:          string(s.Level),
		SexCategory:    string(s.SexCategory),
		WeightCategory: s.WeightCategory,
		UpdatedAt:      s.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if s.EndDate != nil {
		end := s.EndDate.UTC().Format(time.RFC3339)
		dto.EndDate = &end
	}
	return dto
}

// NewStatus is the input for assigning a new current status
type NewStatus struct {
	Level          Level       `json:"level"`
	SexCategory    SexCategory `json:"sexCategory"`
	WeightCategory string      `json:"weightCategory"`
}

// Validate normalizes and checks the input
func (n *NewStatus) Validate() error {
	n.Level = Level(strings.ToLower(strings.TrimSpace(string(n.Level))))
	n.SexCategory = SexCategory(strings.ToLower(strings.TrimSpace(string(n.SexCategory))))
	n.WeightCategory = strings.TrimSpace(n.WeightCategory)

	if !n.Level.Valid() {
		return fmt.Errorf("%w: unknown level %q", ErrInvalidStatus, n.Level)
	}
	if !n.SexCategory.Valid() {
		return fmt.Errorf("%w: unknown sexCategory %q", ErrInvalidStatus, n.SexCategory)
	}
	return validateWeightCategory(n.WeightCategory)
}

// Patch changes category fields of an existing status. Nil fields are kept.
type Patch struct {
	Level          *Level       `json:"level,omitempty"`
	SexCategory    *SexCategory `json:"sexCategory,omitempty"`
	WeightCategory *string      `json:"weightCategory,omitempty"`
}

// Validate normalizes and checks the patch; at least one field must be set
func (p *Patch) Validate() error {
	if p.Level == nil && p.SexCategory == nil && p.WeightCategory == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidStatus)
	}
	if p.Level != nil {
		l := Level(strings.ToLower(strings.TrimSpace(string(*p.Level))))
		if !l.Valid() {
			return fmt.Errorf("%w: unknown level %q", ErrInvalidStatus, l)
		}
		p.Level = &l
	}
	if p.SexCategory != nil {
		s := SexCategory(strings.ToLower(strings.TrimSpace(string(*p.SexCategory))))
		if !s.Valid() {
			return fmt.Errorf("%w: unknown sexCategory %q", ErrInvalidStatus, s)
		}
		p.SexCategory = &s
	}
	if p.WeightCategory != nil {
		w := strings.TrimSpace(*p.WeightCategory)
		if err := validateWeightCategory(w); err != nil {
			return err
		}
		p.WeightCategory = &w
	}
	return nil
}

// apply copies the set fields onto s
func (p Patch) apply(s *CompetitorStatus) {
	if p.Level != nil {
		s.Level = *p.Level
	}
	if p.SexCategory != nil {
		s.SexCategory = *p.SexCategory
	}
	if p.WeightCategory != nil {
		s.WeightCategory = *p.WeightCategory
	}
}

// Violation is an athlete holding more than one current status
type Violation struct {
	AthleteID    int64 `json:"athleteId"`
	CurrentCount int   `json:"currentCount"`
}
