// Package exhaustive provides the exact scan strategy: no precomputed
// structure, every stored vector is compared against the probe.
//
// Exact by construction (100% recall) and O(n) per query, which is the right
// trade for small-to-medium enrollments.
package exhaustive

import (
	"context"
	"slices"
	"sort"

	"github.com/hupe1980/faceid/distance"
	"github.com/hupe1980/faceid/index"
)

// Compile-time check that Scan satisfies the strategy contract.
var _ index.Index = (*Scan)(nil)

type entry struct {
	id     string
	vector []float32
}

// Scan is the exhaustive search strategy. Entries are kept in store
// insertion order, which is also the tie-break order for equal scores.
type Scan struct {
	entries   []entry
	positions map[string]int // id -> slot in entries
	dimension int
}

// New creates an empty exhaustive scan index.
func New() *Scan {
	return &Scan{
		positions: make(map[string]int),
	}
}

// Name returns the strategy name.
func (*Scan) Name() string { return "exhaustive" }

// Len returns the number of entries.
func (s *Scan) Len() int { return len(s.entries) }

// Dimension returns the vector dimension, or 0 while empty.
func (s *Scan) Dimension() int { return s.dimension }

// Build replaces the index contents with the given entries in order.
func (s *Scan) Build(ctx context.Context, entries []index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := &Scan{
		entries:   make([]entry, 0, len(entries)),
		positions: make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if err := next.Add(ctx, e.ID, e.Vector); err != nil {
			return err
		}
	}

	*s = *next
	return nil
}

// Add appends a vector for a new record id.
func (s *Scan) Add(ctx context.Context, id string, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(v) == 0 {
		return index.ErrEmptyVector
	}
	if s.dimension > 0 && len(v) != s.dimension {
		return &index.ErrDimensionMismatch{Expected: s.dimension, Actual: len(v)}
	}
	if pos, ok := s.positions[id]; ok {
		// Never two slots per id; treat a duplicate Add as in-place update.
		s.entries[pos].vector = slices.Clone(v)
		return nil
	}

	s.positions[id] = len(s.entries)
	s.entries = append(s.entries, entry{id: id, vector: slices.Clone(v)})
	if s.dimension == 0 {
		s.dimension = len(v)
	}
	return nil
}

// Replace updates the vector of an existing record id, keeping its slot and
// therefore its tie-break position.
func (s *Scan) Replace(ctx context.Context, id string, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(v) == 0 {
		return index.ErrEmptyVector
	}
	pos, ok := s.positions[id]
	if !ok {
		return index.ErrUnknownID
	}
	if s.dimension > 0 && len(v) != s.dimension {
		return &index.ErrDimensionMismatch{Expected: s.dimension, Actual: len(v)}
	}

	s.entries[pos].vector = slices.Clone(v)
	return nil
}

// Search scans all entries and returns up to min(k, Len()) hits sorted by
// descending cosine similarity. Ties keep insertion order.
func (s *Scan) Search(ctx context.Context, probe []float32, k int) ([]index.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if len(s.entries) == 0 {
		return nil, index.ErrEmptyIndex
	}
	if len(probe) != s.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: s.dimension, Actual: len(probe)}
	}

	results := make([]index.Result, len(s.entries))
	for i, e := range s.entries {
		results[i] = index.Result{ID: e.id, Score: distance.Cosine(probe, e.vector)}
	}

	// Stable keeps insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}
