package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSection is returned when a section name is not registered.
	ErrUnknownSection = errors.New("unknown section")
	// ErrNotFound is returned when a stored record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError collects every problem found in a request.
type ValidationError struct {
	Scope    string
	Problems []string
}

// NewValidationError creates a validation error with a single problem.
func NewValidationError(scope, format string, args ...any) *ValidationError {
	return &ValidationError{Scope: scope, Problems: []string{fmt.Sprintf(format, args...)}}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Scope, strings.Join(e.Problems, "; "))
}

// ConfigurationError marks a warmup job whose fixed parameters are invalid.
// It disables that job only.
type ConfigurationError struct {
	Job string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("warmup job %s: %v", e.Job, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SectionFailure wraps a failure raised by one section fetcher.
type SectionFailure struct {
	Section string
	Err     error
}

func (e *SectionFailure) Error() string {
	return fmt.Sprintf("error in section '%s': %v", e.Section, e.Err)
}

func (e *SectionFailure) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
