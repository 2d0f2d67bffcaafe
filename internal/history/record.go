package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindWorkout   Kind = "workout"
	KindNutrition Kind = "nutrition"
	KindProgress  Kind = "progress"
)

var ErrUnknownKind = errors.New("unknown record kind")

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindWorkout:
		return KindWorkout, nil
	case KindNutrition:
		return KindNutrition, nil
	case KindProgress:
		return KindProgress, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
	}
}

// Record is implemented by every entry kept in a collection.
type Record interface {
	RecordID() string
	RecordDate() time.Time
	Kind() Kind
	Validate() error
}

type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ParseDate accepts either a full RFC 3339 timestamp or a plain YYYY-MM-DD day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", "cannot parse %q", s)
	}
	return t, nil
}

func validateBase(id string, date time.Time) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("id", "empty")
	}
	if date.IsZero() {
		return NewValidationError("date", "missing")
	}
	return nil
}

type WorkoutRecord struct {
	ID    string    `json:"id"`
	Date  time.Time `json:"date"`
	Goal  string    `json:"goal"`
	Level string    `json:"level"`
	Days  int       `json:"days"`
	Plan  string    `json:"plan"`
}

func (r WorkoutRecord) RecordID() string      { return r.ID }
func (r WorkoutRecord) RecordDate() time.Time { return r.Date }
func (r WorkoutRecord) Kind() Kind            { return KindWorkout }

func (r WorkoutRecord) Validate() error {
	if err := validateBase(r.ID, r.Date); err != nil {
		return err
	}
	return ValidateWorkoutParams(r.Goal, r.Level, r.Days)
}

func ValidateWorkoutParams(goal, level string, days int) error {
	if strings.TrimSpace(goal) == "" {
		return NewValidationError("goal", "empty")
	}
	if strings.TrimSpace(level) == "" {
		return NewValidationError("level", "empty")
	}
	if days < 1 || days > 7 {
		return NewValidationError("days", "must be between 1 and 7, got %d", days)
	}
	return nil
}

type NutritionRecord struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	Diet     string    `json:"diet"`
	Calories int       `json:"calories"`
	Plan     string    `json:"plan"`
}

func (r NutritionRecord) RecordID() string      { return r.ID }
func (r NutritionRecord) RecordDate() time.Time { return r.Date }
func (r NutritionRecord) Kind() Kind            { return KindNutrition }

func (r NutritionRecord) Validate() error {
	if err := validateBase(r.ID, r.Date); err != nil {
		return err
	}
	return ValidateNutritionParams(r.Diet, r.Calories)
}

func ValidateNutritionParams(diet string, calories int) error {
	if strings.TrimSpace(diet) == "" {
		return NewValidationError("diet", "empty")
	}
	if calories < 1000 || calories > 5000 {
		return NewValidationError("calories", "must be between 1000 and 5000, got %d", calories)
	}
	return nil
}

// ProgressRecord is a body measurement. Every measurement is optional.
type ProgressRecord struct {
	ID      string    `json:"id"`
	Date    time.Time `json:"date"`
	Weight  *float64  `json:"weight,omitempty"`
	BodyFat *float64  `json:"bodyFat,omitempty"`
	Muscle  *float64  `json:"muscle,omitempty"`
	Notes   string    `json:"notes,omitempty"`
}

func (r ProgressRecord) RecordID() string      { return r.ID }
func (r ProgressRecord) RecordDate() time.Time { return r.Date }
func (r ProgressRecord) Kind() Kind            { return KindProgress }

func (r ProgressRecord) Validate() error {
	if err := validateBase(r.ID, r.Date); err != nil {
		return err
	}
	if err := checkRange("weight", r.Weight, 20, 500); err != nil {
		return err
	}
	if err := checkRange("bodyFat", r.BodyFat, 0, 100); err != nil {
		return err
	}
	return checkRange("muscle", r.Muscle, 0, 300)
}

func checkRange(field string, val *float64, lo, hi float64) error {
	if val == nil {
		return nil
	}
	if *val < lo || *val > hi {
		return NewValidationError(field, "must be between %g and %g, got %g", lo, hi, *val)
	}
	return nil
}
