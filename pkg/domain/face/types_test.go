package face

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axisEmbedding(i int) Embedding {
	e := make(Embedding, Dim)
	e[i] = 1
	return e
}

func TestEmbeddingValidate(t *testing.T) {
	require.NoError(t, axisEmbedding(0).Validate())

	short := make(Embedding, 128)
	assert.Error(t, short.Validate())

	scaled := make(Embedding, Dim)
	scaled[0] = 2
	assert.Error(t, scaled.Validate())
}

func TestEmbeddingNormalized(t *testing.T) {
	e := make(Embedding, Dim)
	e[0] = 3
	e[1] = 4
	n := e.Normalized()
	assert.InDelta(t, 1.0, n.Norm(), 1e-6)
	assert.InDelta(t, 0.6, float64(n[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(n[1]), 1e-6)

	zero := make(Embedding, Dim)
	assert.Equal(t, 0.0, zero.Normalized().Norm())
}

func TestEmbeddingDot(t *testing.T) {
	a := axisEmbedding(0)
	b := axisEmbedding(1)
	assert.Equal(t, 1.0, a.Dot(a))
	assert.Equal(t, 0.0, a.Dot(b))
}

func TestLandmarkGeometry(t *testing.T) {
	lm := Landmarks{
		RightEye: Point{X: 100, Y: 100},
		LeftEye:  Point{X: 160, Y: 100},
	}
	assert.Equal(t, 60.0, lm.EyeDistance())

	p := Point{X: 0, Y: 0}
	q := Point{X: 3, Y: 4}
	assert.Equal(t, 5.0, p.Dist(q))
	assert.True(t, math.Abs(Rect{W: 10, H: 20}.Area()-200) < 1e-9)
}
