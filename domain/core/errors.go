package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Shared preprocessing errors abort a run
	ErrEmptyPopulation      = errors.New("no peaks shared between score table and covariates")
	ErrInvalidSetSizeBounds = errors.New("invalid motif set-size bounds")
	ErrColumnCollision      = errors.New("duplicate covariate column")
	ErrDuplicateID          = errors.New("duplicate peak identifier")
	ErrMissingScore         = errors.New("peak has no score")

	// Per-motif errors are recorded and never abort the batch
	ErrDegenerateLabel = errors.New("motif label has a single class")
	ErrNonConvergence  = errors.New("logistic regression did not converge")
	ErrSingularDesign  = errors.New("information matrix is singular")
)

// FailureReason classifies why a motif was excluded from testing
type FailureReason string

const (
	ReasonDegenerateLabel FailureReason = "degenerate_label"
	ReasonNonConvergence  FailureReason = "non_convergence"
	ReasonSingularDesign  FailureReason = "singular_design"
	ReasonUnknown         FailureReason = "unknown"
)

// ClassifyFailure maps a per-motif error to its reason code
func ClassifyFailure(err error) FailureReason {
	switch {
	case errors.Is(err, ErrDegenerateLabel):
		return ReasonDegenerateLabel
	case errors.Is(err, ErrNonConvergence):
		return ReasonNonConvergence
	case errors.Is(err, ErrSingularDesign):
		return ReasonSingularDesign
	default:
		return ReasonUnknown
	}
}

// Error constructors with context
func NewDegenerateLabelError(motifID MotifID, hits, population int) error {
	return fmt.Errorf("%w: motif %s hits %d of %d peaks", ErrDegenerateLabel, motifID, hits, population)
}

func NewSetSizeBoundsError(n, min, max int) error {
	return fmt.Errorf("%w: min %d > max %d for %d admitted peaks", ErrInvalidSetSizeBounds, min, max, n)
}

func NewColumnCollisionError(column string) error {
	return fmt.Errorf("%w: %s", ErrColumnCollision, column)
}

func NewDuplicateIDError(table string, id PeakID) error {
	return fmt.Errorf("%w: %s in %s", ErrDuplicateID, id, table)
}

// IsMotifLocal reports whether err should be isolated to a single motif
func IsMotifLocal(err error) bool {
	return errors.Is(err, ErrDegenerateLabel) ||
		errors.Is(err, ErrNonConvergence) ||
		errors.Is(err, ErrSingularDesign)
}
