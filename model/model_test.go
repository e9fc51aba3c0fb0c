package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScalesToUnitLength(t *testing.T) {
	out := normalize([]float64{3, 4})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	var sum float64
	for _, v := range out {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	out := normalize([]float64{0, 0, 0})
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	assert.Empty(t, normalize(nil))
}
