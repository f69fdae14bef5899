// Package detect defines the camera-facing adapter seams. The kiosk
// core never touches a vision backend directly; it sees faces only
// through the Detector and Embedder interfaces, so backends can be
// swapped (or absent entirely on sync-only deployments).
package detect

import (
	"context"

	"facekiosk/pkg/domain/face"
	kioskerrors "facekiosk/pkg/errors"
)

// Frame is one captured camera image. Pixels is packed RGB,
// len == Width*Height*3; the adapters own its interpretation.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// Detector finds faces in a frame. Implementations return all
// detections; the caller decides what to do when there is not exactly
// one. Backend faults are reported wrapped in ErrDetector.
type Detector interface {
	Detect(ctx context.Context, f Frame) ([]face.Detection, error)
}

// Embedder produces the 512-dimensional unit-norm embedding for one
// detected face. Backend faults are reported wrapped in ErrEmbedder.
type Embedder interface {
	Embed(ctx context.Context, f Frame, d face.Detection) (face.Embedding, error)
}

// Disabled is the adapter used when no vision backend is configured.
// Every call fails with the adapter sentinel, which the verification
// loop treats as a transient per-frame fault.
type Disabled struct{}

// Detect always fails with ErrDetector.
func (Disabled) Detect(ctx context.Context, f Frame) ([]face.Detection, error) {
	return nil, kioskerrors.ErrDetector
}

// Embed always fails with ErrEmbedder.
func (Disabled) Embed(ctx context.Context, f Frame, d face.Detection) (face.Embedding, error) {
	return nil, kioskerrors.ErrEmbedder
}

var (
	_ Detector = Disabled{}
	_ Embedder = Disabled{}
)
