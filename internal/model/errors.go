package model

import "fmt"

// ValidationError rejects a training request before any fitting happens.
// Nothing is registered when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LookupError marks a write-path reference to an id that does not exist.
// Read paths return nil or empty results instead of this error.
type LookupError struct {
	Kind string // "model", "donor", ...
	ID   string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// InsufficientModelsError rejects an ensemble request backed by fewer than
// two active models of the requested type.
type InsufficientModelsError struct {
	Type   ModelType
	Active int
}

func (e *InsufficientModelsError) Error() string {
	return fmt.Sprintf("ensemble for %s needs at least 2 active models, have %d", e.Type, e.Active)
}
