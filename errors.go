package faceid

import (
	"errors"
	"fmt"

	"github.com/hupe1980/faceid/embedding"
	"github.com/hupe1980/faceid/index"
	"github.com/hupe1980/faceid/store"
)

var (
	// ErrNotFound is returned when an identity is not found.
	ErrNotFound = errors.New("not found")

	// ErrEmptyDatabase is returned by Identify when no identities are enrolled.
	ErrEmptyDatabase = errors.New("no identities enrolled")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyIdentityID is returned when a register call carries no identity id.
	ErrEmptyIdentityID = errors.New("identity id must not be empty")

	// ErrUnhealthy is returned when the service refuses mutations after a
	// persistence failure. Reload clears the condition.
	ErrUnhealthy = errors.New("service unhealthy: snapshot persistence failed")
)

// ErrDimensionMismatch indicates an embedding/record dimensionality mismatch.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	cause    error
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *ErrDimensionMismatch) Unwrap() error { return e.cause }

// ErrExtraction indicates the embedding model could not produce a vector.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrExtraction struct {
	Reason string
	cause  error
}

func (e *ErrExtraction) Error() string {
	return fmt.Sprintf("extraction failed: %s", e.Reason)
}

func (e *ErrExtraction) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, index.ErrUnknownID) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	// Health latch.
	if errors.Is(err, store.ErrUnhealthy) {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}

	// Dimension and argument normalization.
	var sdm *store.ErrDimensionMismatch
	if errors.As(err, &sdm) {
		return &ErrDimensionMismatch{Expected: sdm.Expected, Actual: sdm.Actual, cause: err}
	}
	var idm *index.ErrDimensionMismatch
	if errors.As(err, &idm) {
		return &ErrDimensionMismatch{Expected: idm.Expected, Actual: idm.Actual, cause: err}
	}
	if errors.Is(err, index.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidK, err)
	}
	if errors.Is(err, index.ErrEmptyIndex) {
		return fmt.Errorf("%w: %w", ErrEmptyDatabase, err)
	}

	// Extraction failures keep their reason.
	var ee *embedding.Error
	if errors.As(err, &ee) {
		return &ErrExtraction{Reason: ee.Reason, cause: err}
	}

	return err
}
