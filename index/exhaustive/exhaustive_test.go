package exhaustive

import (
	"context"
	"testing"

	"github.com/hupe1980/faceid/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	ctx := context.Background()

	t.Run("Add", func(t *testing.T) {
		s := New()

		require.NoError(t, s.Add(ctx, "a", []float32{1, 0, 0}))
		assert.Equal(t, 1, s.Len())
		assert.Equal(t, 3, s.Dimension())

		err := s.Add(ctx, "b", []float32{1, 0})
		var dm *index.ErrDimensionMismatch
		require.ErrorAs(t, err, &dm)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 2, dm.Actual)

		assert.ErrorIs(t, s.Add(ctx, "c", nil), index.ErrEmptyVector)
	})

	t.Run("Search", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, s.Add(ctx, "b", []float32{0, 1, 0}))

		results, err := s.Search(ctx, []float32{0.9, 0.1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("SelfMatch", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{0.3, -0.2, 0.9}))

		results, err := s.Search(ctx, []float32{0.3, -0.2, 0.9}, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	})

	t.Run("ClampK", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{1, 0}))

		results, err := s.Search(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("TiesKeepInsertionOrder", func(t *testing.T) {
		s := New()
		// Identical vectors: identical scores for any probe.
		require.NoError(t, s.Add(ctx, "first", []float32{1, 1}))
		require.NoError(t, s.Add(ctx, "second", []float32{1, 1}))

		results, err := s.Search(ctx, []float32{1, 1}, 2)
		require.NoError(t, err)
		assert.Equal(t, "first", results[0].ID)
		assert.Equal(t, "second", results[1].ID)
	})

	t.Run("ZeroNormScoresZero", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "zero", []float32{0, 0}))
		require.NoError(t, s.Add(ctx, "unit", []float32{1, 0}))

		results, err := s.Search(ctx, []float32{1, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, "unit", results[0].ID)
		assert.Equal(t, "zero", results[1].ID)
		assert.Equal(t, float32(0), results[1].Score)
	})

	t.Run("EmptyIndex", func(t *testing.T) {
		s := New()
		_, err := s.Search(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, index.ErrEmptyIndex)
	})

	t.Run("InvalidK", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{1, 0}))
		_, err := s.Search(ctx, []float32{1, 0}, 0)
		assert.ErrorIs(t, err, index.ErrInvalidK)
	})

	t.Run("ProbeDimensionMismatch", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{1, 0, 0}))
		_, err := s.Search(ctx, []float32{1, 0}, 1)
		var dm *index.ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("Replace", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "a", []float32{1, 0, 0}))
		require.NoError(t, s.Add(ctx, "b", []float32{0, 1, 0}))

		require.NoError(t, s.Replace(ctx, "a", []float32{0, 0, 1}))
		assert.Equal(t, 2, s.Len())

		results, err := s.Search(ctx, []float32{0, 0, 1}, 1)
		require.NoError(t, err)
		assert.Equal(t, "a", results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)

		assert.ErrorIs(t, s.Replace(ctx, "missing", []float32{1, 0, 0}), index.ErrUnknownID)
	})

	t.Run("Build", func(t *testing.T) {
		s := New()
		require.NoError(t, s.Add(ctx, "old", []float32{1, 0}))

		err := s.Build(ctx, []index.Entry{
			{ID: "a", Vector: []float32{1, 0}},
			{ID: "b", Vector: []float32{0, 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())

		_, err = s.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
	})
}
