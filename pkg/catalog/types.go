package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound means the row does not exist or is not visible in the organization
	ErrNotFound = errors.New("catalog entry not found")
	// ErrForbidden means the row is visible but the actor may not change it
	ErrForbidden = errors.New("catalog entry is read-only for this actor")
	// ErrInvalidInput wraps validation failures
	ErrInvalidInput = errors.New("invalid catalog input")
	// ErrVisibilityUnavailable means the organization's coaches could not be resolved
	ErrVisibilityUnavailable = errors.New("catalog visibility unavailable")
)

const maxNameLength = 200

// Exercise is a catalog movement. A nil CreatedBy marks shared content.
type Exercise struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   *int64    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsPublic reports whether the exercise is shared across organizations
func (e *Exercise) IsPublic() bool {
	return e.CreatedBy == nil
}

// Complex is an ordered sequence of exercises performed as one set
type Complex struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ExerciseIDs []int64   `json:"exerciseIds"`
	CreatedBy   *int64    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsPublic reports whether the complex is shared across organizations
func (c *Complex) IsPublic() bool {
	return c.CreatedBy == nil
}

// ExerciseInput is the writable part of an exercise
type ExerciseInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Public creates shared content; only super-admins may set it
	Public bool `json:"public"`
}

// Validate normalizes and checks the input
func (in *ExerciseInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	return validateName(in.Name)
}

// ComplexInput is the writable part of a complex
type ComplexInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ExerciseIDs []int64 `json:"exerciseIds"`
	Public      bool    `json:"public"`
}

// Validate normalizes and checks the input
func (in *ComplexInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateName(in.Name); err != nil {
		return err
	}
	if len(in.ExerciseIDs) == 0 {
		return fmt.Errorf("%w: a complex needs at least one exercise", ErrInvalidInput)
	}
	for _, id := range in.ExerciseIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid exercise id %d", ErrInvalidInput, id)
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidInput, maxNameLength)
	}
	return nil
}
