package flatl2

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/hupe1980/faceid/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlat(t *testing.T) {
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		f := New()

		require.NoError(t, f.Add(ctx, "a", []float32{1, 0, 0}))
		assert.Equal(t, 1, f.Len())
		assert.Equal(t, 3, f.Dimension())

		var dm *index.ErrDimensionMismatch
		assert.ErrorAs(t, f.Add(ctx, "b", []float32{1, 0}), &dm)
		assert.ErrorIs(t, f.Add(ctx, "c", nil), index.ErrEmptyVector)
	})

	t.Run("ScoresMatchCosineConvention", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, f.Add(ctx, "b", []float32{0, 1, 0}))

		results, err := f.Search(ctx, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)

		// sim = 1 - d/2 over normalized vectors reproduces exact cosine.
		assert.InDelta(t, 0.9938837, results[0].Score, 1e-5)
	})

	t.Run("SelfMatch", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{3, -4, 12}))

		results, err := f.Search(ctx, []float32{3, -4, 12}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	})

	t.Run("ScaleInvariance", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 1}))

		results, err := f.Search(ctx, []float32{100, 100}, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	})

	t.Run("ClampK", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0}))

		results, err := f.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("ZeroNormScoresZero", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "zero", []float32{0, 0}))
		require.NoError(t, f.Add(ctx, "unit", []float32{1, 0}))

		results, err := f.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, "unit", results[0].ID)
		assert.Equal(t, "zero", results[1].ID)
		assert.Equal(t, float32(0), results[1].Score)
	})

	t.Run("ZeroNormProbe", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0}))

		results, err := f.Search(ctx, []float32{0, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, float32(0), results[0].Score)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		f := New()
		_, err := f.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, index.ErrEmptyIndex)
	})

	t.Run("ReplaceKeepsOneSlotPerID", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, f.Add(ctx, "b", []float32{0, 1, 0}))

		require.NoError(t, f.Replace(ctx, "a", []float32{0, 0, 1}))
		assert.Equal(t, 2, f.Len())

		results, err := f.Search(ctx, []float32{0, 0, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, "a", results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)

		// The old vector must be gone: no duplicate "a" in results.
		seen := map[string]int{}
		for _, r := range results {
			seen[r.ID]++
		}
		assert.Equal(t, 1, seen["a"])

		assert.ErrorIs(t, f.Replace(ctx, "missing", []float32{1, 0, 0}), index.ErrUnknownID)
	})

	t.Run("ReplaceMovesIDToNewestSlot", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, f.Add(ctx, "b", []float32{1, 0, 0}))

		// Replace retires a's slot and appends, so on an exact tie b's
		// older slot now wins.
		require.NoError(t, f.Replace(ctx, "a", []float32{1, 0, 0}))

		results, err := f.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "b", results[0].ID)
		assert.Equal(t, "a", results[1].ID)

		// A full rebuild restores the given order.
		require.NoError(t, f.Build(ctx, []index.Entry{
			{ID: "a", Vector: []float32{1, 0, 0}},
			{ID: "b", Vector: []float32{1, 0, 0}},
		}))
		results, err = f.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
	})

	t.Run("Build", func(t *testing.T) {
		f := New()
		require.NoError(t, f.Add(ctx, "old", []float32{1, 0}))

		require.NoError(t, f.Build(ctx, []index.Entry{
			{ID: "a", Vector: []float32{1, 0}},
			{ID: "b", Vector: []float32{0, 1}},
		}))
		assert.Equal(t, 2, f.Len())
	})
}

func TestFlatPersistence(t *testing.T) {
	ctx := context.Background()

	newPopulated := func(t *testing.T) *Flat {
		t.Helper()
		f := New()
		require.NoError(t, f.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, f.Add(ctx, "b", []float32{0, 1, 0}))
		require.NoError(t, f.Add(ctx, "zero", []float32{0, 0, 0}))
		require.NoError(t, f.Replace(ctx, "a", []float32{0, 0, 1}))
		return f
	}

	t.Run("RoundTrip", func(t *testing.T) {
		f := newPopulated(t)

		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, 4))

		g := New()
		require.NoError(t, g.ReadFrom(&buf, 4))
		assert.Equal(t, f.Len(), g.Len())
		assert.Equal(t, f.Dimension(), g.Dimension())

		want, err := f.Search(ctx, []float32{0.1, 0.2, 0.9}, 3)
		require.NoError(t, err)
		got, err := g.Search(ctx, []float32{0.1, 0.2, 0.9}, 3)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("StaleVersionRejected", func(t *testing.T) {
		f := newPopulated(t)

		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, 4))

		g := New()
		assert.ErrorIs(t, g.ReadFrom(&buf, 5), ErrStaleSnapshot)
	})

	t.Run("CorruptionDetected", func(t *testing.T) {
		f := newPopulated(t)

		var buf bytes.Buffer
		require.NoError(t, f.WriteTo(&buf, 4))

		raw := buf.Bytes()
		raw[len(raw)/2] ^= 0xFF

		g := New()
		err := g.ReadFrom(bytes.NewReader(raw), 4)
		assert.ErrorIs(t, err, ErrCorruptSnapshot)
	})

	t.Run("FileRoundTrip", func(t *testing.T) {
		f := newPopulated(t)
		path := filepath.Join(t.TempDir(), "index.bin")

		require.NoError(t, f.SaveToFile(path, 7))

		g, err := LoadFromFile(path, 7)
		require.NoError(t, err)
		assert.Equal(t, f.Len(), g.Len())

		_, err = LoadFromFile(path, 8)
		assert.ErrorIs(t, err, ErrStaleSnapshot)
	})
}
