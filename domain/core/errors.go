package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Task-level errors: recovered per task, excluded from correction
	ErrInsufficientData    = errors.New("insufficient data for analysis")
	ErrModelNonConvergence = errors.New("model did not converge")

	// Batch-level errors: detected before task generation, abort the batch
	ErrMemoryExceeded = errors.New("working set exceeds memory ceiling")
	ErrInvalidDesign  = errors.New("invalid analysis design")

	// Lookup errors
	ErrNotFound         = errors.New("resource not found")
	ErrVariableNotFound = fmt.Errorf("%w: variable", ErrNotFound)
)

// ErrorKind is the stable, serialisable name of an error class.
type ErrorKind string

const (
	KindInsufficientData    ErrorKind = "InsufficientData"
	KindModelNonConvergence ErrorKind = "ModelNonConvergence"
	KindMemoryExceeded      ErrorKind = "MemoryExceeded"
	KindInvalidDesign       ErrorKind = "InvalidDesign"
	KindInternal            ErrorKind = "Internal"
)

// Error constructors with context
func NewInsufficientDataError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInsufficientData, fmt.Sprintf(format, args...))
}

func NewNonConvergenceError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrModelNonConvergence, fmt.Sprintf(format, args...))
}

func NewMemoryExceededError(estimate, ceiling float64) error {
	return fmt.Errorf("%w: estimate %.0f > ceiling %.0f", ErrMemoryExceeded, estimate, ceiling)
}

func NewInvalidDesignError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidDesign, fmt.Sprintf(format, args...))
}

func NewVariableNotFoundError(name string) error {
	return fmt.Errorf("%w %q", ErrVariableNotFound, name)
}

// Error checking helpers
func IsTaskRecoverable(err error) bool {
	return errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrModelNonConvergence)
}

func IsBatchFatal(err error) bool {
	return errors.Is(err, ErrMemoryExceeded) || errors.Is(err, ErrInvalidDesign)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KindOf maps an error onto its kind. Unclassified errors are Internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return KindInsufficientData
	case errors.Is(err, ErrModelNonConvergence):
		return KindModelNonConvergence
	case errors.Is(err, ErrMemoryExceeded):
		return KindMemoryExceeded
	case errors.Is(err, ErrInvalidDesign):
		return KindInvalidDesign
	default:
		return KindInternal
	}
}
