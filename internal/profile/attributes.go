package profile

import (
	"strings"

	"github.com/2beens/gideon/internal/history"
)

// Attributes is the user profile. A nil field is unset, which on save means "keep what is stored".
type Attributes struct {
	Name      *string `json:"name,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Birthdate *string `json:"birthdate,omitempty"`

	Height       *string `json:"height,omitempty"`
	Weight       *string `json:"weight,omitempty"`
	FitnessLevel *string `json:"fitnessLevel,omitempty"`
	FitnessGoal  *string `json:"fitnessGoal,omitempty"`

	DietType        *string `json:"dietType,omitempty"`
	WorkoutDays     *string `json:"workoutDays,omitempty"`
	NotifyWorkouts  *bool   `json:"notifyWorkouts,omitempty"`
	NotifyNutrition *bool   `json:"notifyNutrition,omitempty"`
	NotifyProgress  *bool   `json:"notifyProgress,omitempty"`
}

// Merge returns a copy of a where every field set in update replaces the stored one.
func (a Attributes) Merge(update Attributes) Attributes {
	merged := a
	setString(&merged.Name, update.Name)
	setString(&merged.Email, update.Email)
	setString(&merged.Phone, update.Phone)
	setString(&merged.Birthdate, update.Birthdate)
	setString(&merged.Height, update.Height)
	setString(&merged.Weight, update.Weight)
	setString(&merged.FitnessLevel, update.FitnessLevel)
	setString(&merged.FitnessGoal, update.FitnessGoal)
	setString(&merged.DietType, update.DietType)
	setString(&merged.WorkoutDays, update.WorkoutDays)
	setBool(&merged.NotifyWorkouts, update.NotifyWorkouts)
	setBool(&merged.NotifyNutrition, update.NotifyNutrition)
	setBool(&merged.NotifyProgress, update.NotifyProgress)
	return merged
}

func (a Attributes) Validate() error {
	if a.Email != nil && *a.Email != "" && !strings.Contains(*a.Email, "@") {
		return history.NewValidationError("email", "%q is not an email address", *a.Email)
	}
	return nil
}

func setString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func setBool(dst **bool, src *bool) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

const minPasswordLength = 6

// ValidatePasswordChange checks a password change form. The check is local only:
// no credential is verified or stored, so passing it proves nothing about the account.
func ValidatePasswordChange(current, next, confirm string) error {
	if next != confirm {
		return &history.ValidationError{Field: "confirmPassword", Message: "new passwords do not match"}
	}
	if len(next) < minPasswordLength {
		return history.NewValidationError("newPassword", "must be at least %d characters long", minPasswordLength)
	}
	return nil
}
