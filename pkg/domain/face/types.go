// Package face defines the detection-side domain model: detections with
// five-point landmarks as produced by the detector adapter, and the
// 512-dimensional embeddings produced by the embedding adapter.
//
// CRITICAL: Embeddings are unit-norm vectors; similarity is cosine, which
// for unit vectors reduces to the dot product.
package face

import (
	"math"

	kioskerrors "facekiosk/pkg/errors"
)

// Dim is the embedding dimensionality. Fixed by the embedding model.
const Dim = 512

// unitNormTolerance bounds the acceptable deviation from unit norm.
const unitNormTolerance = 1e-4

// Point is a pixel coordinate in frame space.
type Point struct {
	X float64
	Y float64
}

// Dist returns the Euclidean distance to another point.
func (p Point) Dist(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Rect is an axis-aligned bounding box in frame space.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Area returns the box area in square pixels.
func (r Rect) Area() float64 {
	return r.W * r.H
}

// Landmarks are the five facial keypoints reported by the detector.
// Eye positions are as seen in the image (RightEye is the subject's
// right eye, typically on the left of the frame).
type Landmarks struct {
	RightEye   Point
	LeftEye    Point
	Nose       Point
	MouthRight Point
	MouthLeft  Point
}

// EyeDistance returns the inter-eye distance, the reference length for
// all frontality tolerances.
func (l Landmarks) EyeDistance() float64 {
	return l.RightEye.Dist(l.LeftEye)
}

// Detection is one face found in a frame.
type Detection struct {
	Box        Rect
	Confidence float64
	Landmarks  Landmarks
}

// Embedding is a face feature vector of length Dim.
type Embedding []float32

// Validate checks dimensionality and unit norm.
func (e Embedding) Validate() error {
	if len(e) != Dim {
		return kioskerrors.ErrDimensionMismatch
	}
	if math.Abs(e.Norm()-1) > unitNormTolerance {
		return kioskerrors.ErrDimensionMismatch
	}
	return nil
}

// Norm returns the L2 norm.
func (e Embedding) Norm() float64 {
	var sum float64
	for _, v := range e {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalized returns a unit-norm copy. A zero vector is returned unchanged.
func (e Embedding) Normalized() Embedding {
	n := e.Norm()
	out := make(Embedding, len(e))
	if n == 0 {
		copy(out, e)
		return out
	}
	for i, v := range e {
		out[i] = float32(float64(v) / n)
	}
	return out
}

// Dot returns the dot product with another embedding.
// Both embeddings must have length Dim; for unit vectors this is the
// cosine similarity.
func (e Embedding) Dot(other Embedding) float64 {
	var sum float64
	for i := range e {
		sum += float64(e[i]) * float64(other[i])
	}
	return sum
}
