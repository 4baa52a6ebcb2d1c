package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 32},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Mixed", []float32{1, -1, 2}, []float32{1, 1, -2}, -4},
		{"Empty", []float32{}, []float32{}, 0},
		{"Single", []float32{2}, []float32{3}, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dot(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Simple", []float32{1, 2, 3}, []float32{4, 5, 6}, 27},
		{"Zero", []float32{0, 0, 0}, []float32{0, 0, 0}, 0},
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"Mixed", []float32{1, -1}, []float32{-1, 1}, 8},
		{"Empty", []float32{}, []float32{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SquaredL2(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"Opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"Orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"ZeroLeft", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"ZeroRight", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"Scaled", []float32{1, 1}, []float32{10, 10}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-5)
			assert.False(t, math.IsNaN(float64(got)))
		})
	}
}

func TestCosineFromSquaredL2(t *testing.T) {
	a, ok := NormalizeL2Copy([]float32{3, 4, 0})
	require.True(t, ok)
	b, ok := NormalizeL2Copy([]float32{-1, 2, 2})
	require.True(t, ok)

	// On normalized vectors the conversion must reproduce exact cosine.
	assert.InDelta(t, Cosine(a, b), CosineFromSquaredL2(SquaredL2(a, b)), 1e-5)
	assert.InDelta(t, 1.0, CosineFromSquaredL2(SquaredL2(a, a)), 1e-6)
}

func TestNormalizeL2(t *testing.T) {
	t.Run("InPlace", func(t *testing.T) {
		v := []float32{3, 4}
		require.True(t, NormalizeL2InPlace(v))
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("ZeroNorm", func(t *testing.T) {
		v := []float32{0, 0, 0}
		assert.False(t, NormalizeL2InPlace(v))

		_, ok := NormalizeL2Copy(v)
		assert.False(t, ok)
	})

	t.Run("CopyLeavesSource", func(t *testing.T) {
		src := []float32{2, 0}
		dst, ok := NormalizeL2Copy(src)
		require.True(t, ok)
		assert.Equal(t, []float32{2, 0}, src)
		assert.InDelta(t, 1.0, dst[0], 1e-6)
	})

	t.Run("Empty", func(t *testing.T) {
		assert.False(t, NormalizeL2InPlace(nil))
	})
}
