package validation

import "fmt"

// Wizard steps a validation error can point the author back to.
const (
	StepSetup = 0
	StepCards = 1
)

// Error is a user-facing validation failure on a single field.
type Error struct {
	Field   string
	Message string
	// Step is the wizard step that holds Field, or -1 when not applicable.
	Step int
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldError returns an Error that is not tied to a wizard step.
func FieldError(field, message string) *Error {
	return &Error{Field: field, Message: message, Step: -1}
}

// StepError returns an Error that sends the author back to step.
func StepError(field, message string, step int) *Error {
	return &Error{Field: field, Message: message, Step: step}
}
