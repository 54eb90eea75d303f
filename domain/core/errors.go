package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound      = errors.New("resource not found")
	ErrStudyNotFound = fmt.Errorf("%w: study", ErrNotFound)
	ErrGroupNotFound = fmt.Errorf("%w: observation group", ErrNotFound)

	// Data preparation errors
	ErrSampling         = errors.New("sampling failed")
	ErrFoldConstruction = errors.New("fold construction failed")

	// Search errors
	ErrInvalidSpace      = errors.New("invalid hyperparameter space")
	ErrInvalidTrialCount = errors.New("number of trials must be positive")
	ErrTrialInfeasible   = errors.New("trial parameters infeasible")
	ErrSearchExhausted   = errors.New("no feasible trial completed")
	ErrSearchCancelled   = errors.New("search cancelled")

	// Importance errors
	ErrImportanceComputation = errors.New("importance computation failed")
	ErrAlignment             = errors.New("attribution rows do not align with test rows")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewSamplingError(group string, reason string) error {
	return fmt.Errorf("%w for group %s: %s", ErrSampling, group, reason)
}

func NewFoldConstructionError(reason string) error {
	return fmt.Errorf("%w: %s", ErrFoldConstruction, reason)
}

func NewInfeasibleError(param string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrTrialInfeasible, param, reason)
}

func NewInvalidSpaceError(param string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidSpace, param, reason)
}

func NewImportanceError(fold int, reason string) error {
	return fmt.Errorf("%w for fold %d: %s", ErrImportanceComputation, fold, reason)
}

func NewAlignmentError(attributionRows, testRows int) error {
	return fmt.Errorf("%w: %d attribution rows vs %d test rows", ErrAlignment, attributionRows, testRows)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDataError reports failures that abort a run before any model is trained.
func IsDataError(err error) bool {
	return errors.Is(err, ErrSampling) ||
		errors.Is(err, ErrFoldConstruction)
}

func IsSearchError(err error) bool {
	return errors.Is(err, ErrInvalidSpace) ||
		errors.Is(err, ErrInvalidTrialCount) ||
		errors.Is(err, ErrSearchExhausted) ||
		errors.Is(err, ErrSearchCancelled)
}

func IsInfeasible(err error) bool {
	return errors.Is(err, ErrTrialInfeasible)
}
