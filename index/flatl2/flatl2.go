// Package flatl2 provides the accelerated-structure strategy: a flat
// squared-L2 index over L2-normalized vectors with a slot table mapping
// internal slots back to record ids.
//
// Vectors are normalized on insert, so the native squared-L2 distance d
// converts exactly to cosine similarity via sim = 1 - d/2. Scores returned
// by Search therefore match the exhaustive strategy's cosine convention.
//
// Replace retires the old slot and appends a fresh one, keeping exactly one
// live slot per record id; retired slots are tracked in a roaring bitmap and
// skipped during search, then compacted away on persistence.
package flatl2

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/faceid/distance"
	"github.com/hupe1980/faceid/index"
)

// Compile-time check that Flat satisfies the strategy contract.
var _ index.Index = (*Flat)(nil)

// Flat is the flat L2 index strategy.
type Flat struct {
	dimension int
	ids       []string          // slot -> record id
	vectors   [][]float32       // slot -> normalized vector (zeros for zero-norm slots)
	slots     map[string]uint32 // id -> live slot
	live      *roaring.Bitmap   // slots currently backing a record id
	zero      *roaring.Bitmap   // slots whose source vector had zero norm
}

// New creates an empty flat L2 index.
func New() *Flat {
	return &Flat{
		slots: make(map[string]uint32),
		live:  roaring.New(),
		zero:  roaring.New(),
	}
}

// Name returns the strategy name.
func (*Flat) Name() string { return "flatl2" }

// Len returns the number of live entries.
func (f *Flat) Len() int { return int(f.live.GetCardinality()) }

// Dimension returns the vector dimension, or 0 while empty.
func (f *Flat) Dimension() int { return f.dimension }

// Build replaces the entire index contents from store order.
func (f *Flat) Build(ctx context.Context, entries []index.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	next := New()
	for _, e := range entries {
		if err := next.Add(ctx, e.ID, e.Vector); err != nil {
			return err
		}
	}

	*f = *next
	return nil
}

// Add appends a vector for a new record id at a fresh slot.
func (f *Flat) Add(ctx context.Context, id string, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(v) == 0 {
		return index.ErrEmptyVector
	}
	if f.dimension > 0 && len(v) != f.dimension {
		return &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
	}
	if _, ok := f.slots[id]; ok {
		return f.Replace(ctx, id, v)
	}

	f.appendSlot(id, v)
	if f.dimension == 0 {
		f.dimension = len(v)
	}
	return nil
}

// Replace retires the record id's current slot and appends a new one.
// The slot table never ends up with two live slots for one id.
func (f *Flat) Replace(ctx context.Context, id string, v []float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(v) == 0 {
		return index.ErrEmptyVector
	}
	old, ok := f.slots[id]
	if !ok {
		return index.ErrUnknownID
	}
	if f.dimension > 0 && len(v) != f.dimension {
		return &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(v)}
	}

	f.live.Remove(old)
	f.zero.Remove(old)
	f.vectors[old] = nil
	f.appendSlot(id, v)
	return nil
}

func (f *Flat) appendSlot(id string, v []float32) {
	slot := uint32(len(f.ids))

	norm, ok := distance.NormalizeL2Copy(v)
	if !ok {
		// Zero-norm vectors keep a zero slot and always score 0.
		norm = make([]float32, len(v))
		f.zero.Add(slot)
	}

	f.ids = append(f.ids, id)
	f.vectors = append(f.vectors, norm)
	f.slots[id] = slot
	f.live.Add(slot)
}

// Search scans live slots and returns up to min(k, Len()) hits sorted by
// descending score. Ties keep ascending slot order, which is append order.
func (f *Flat) Search(ctx context.Context, probe []float32, k int) ([]index.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, index.ErrInvalidK
	}
	if f.live.IsEmpty() {
		return nil, index.ErrEmptyIndex
	}
	if len(probe) != f.dimension {
		return nil, &index.ErrDimensionMismatch{Expected: f.dimension, Actual: len(probe)}
	}

	q, probeOK := distance.NormalizeL2Copy(probe)

	type hit struct {
		slot  uint32
		score float32
	}
	hits := make([]hit, 0, f.live.GetCardinality())

	it := f.live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		var score float32
		if probeOK && !f.zero.Contains(slot) {
			score = distance.CosineFromSquaredL2(distance.SquaredL2(q, f.vectors[slot]))
		}
		hits = append(hits, hit{slot: slot, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].slot < hits[j].slot
	})

	if k > len(hits) {
		k = len(hits)
	}
	results := make([]index.Result, k)
	for i, h := range hits[:k] {
		results[i] = index.Result{ID: f.ids[h.slot], Score: h.score}
	}
	return results, nil
}
