// Package index defines the similarity index contract shared by the search
// strategies.
//
// An index is a derived, rebuildable cache over the record store's vectors.
// It holds vectors and record ids only, never record attributes; the store
// stays authoritative and any index can be reconstructed from it via Build.
package index

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyVector is returned when a zero-length vector is inserted.
	ErrEmptyVector = errors.New("empty vector")

	// ErrEmptyIndex is returned when searching an index with no entries.
	ErrEmptyIndex = errors.New("empty index")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrUnknownID is returned by Replace when the id has no slot.
	ErrUnknownID = errors.New("unknown id")
)

// ErrDimensionMismatch indicates a vector/probe dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Entry is a (record id, vector) pair fed to Build.
type Entry struct {
	ID     string
	Vector []float32
}

// Result is a single ranked search hit. Score is cosine similarity in
// [-1, 1]; strategies whose native metric is a distance apply a documented
// monotone conversion so scores stay comparable across strategies.
type Result struct {
	ID    string
	Score float32
}

// Index is the similarity index contract.
//
// Implementations must keep exactly one live slot per record id: Replace
// either updates the slot in place or returns an error so the caller can
// fall back to a full Build from the store. Ranking is by descending score
// with ties broken by slot order (the earlier slot wins), so results are
// deterministic within a strategy. Replace may move the id to a fresh slot
// (flatl2 retires the old one and appends), so tie order involving a
// replaced id can differ between strategies; a Build restores store order
// everywhere.
//
// Implementations are not required to be safe for concurrent mutation; the
// service serializes all writes behind its mutation lock.
type Index interface {
	// Name returns the strategy name ("exhaustive", "flatl2").
	Name() string

	// Build replaces the entire index contents from store order.
	Build(ctx context.Context, entries []Entry) error

	// Add appends a vector for a record id not yet in the index.
	Add(ctx context.Context, id string, v []float32) error

	// Replace updates the vector of an existing record id in place.
	Replace(ctx context.Context, id string, v []float32) error

	// Search returns up to min(k, Len()) hits sorted by descending score.
	Search(ctx context.Context, probe []float32, k int) ([]Result, error)

	// Len returns the number of entries in the index.
	Len() int

	// Dimension returns the vector dimension, or 0 while the index is empty.
	Dimension() int
}
