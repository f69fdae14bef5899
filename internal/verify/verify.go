// Package verify drives the per-frame recognition state machine: it
// gates detections on count, confidence, distance and frontality,
// stabilizes a candidate, then scores one embedding against the
// gallery and emits at most one decision per cooldown window.
package verify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/detect"
	"facekiosk/internal/index"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/face"
	kioskerrors "facekiosk/pkg/errors"
)

// Geometry thresholds applied to the single candidate face.
const (
	minConfidence       = 0.9
	noseOffsetTolerance = 0.15 // horizontal nose offset, fraction of eye distance
	eyeTiltTolerance    = 0.12 // vertical eye misalignment, fraction of eye distance
)

// Config carries the tunable parameters of the state machine. Zero
// values are not defaulted here; callers pass the loaded settings.
type Config struct {
	SimilarityThreshold float64
	Stabilization       time.Duration
	ReverifyCooldown    time.Duration
	MinFaceRatio        float64
	MaxFaceRatio        float64
}

// State names the phase the machine is in after a frame.
type State int

const (
	StateIdle State = iota
	StateStabilizing
	StateCooldown
)

// Gate identifies which check stopped the current frame from
// advancing. GateNone means all checks held.
type Gate string

const (
	GateNone          Gate = ""
	GateNoFace        Gate = "no_face"
	GateMultipleFaces Gate = "multiple_faces"
	GateLowConfidence Gate = "low_confidence"
	GateTooFar        Gate = "too_far"
	GateTooClose      Gate = "too_close"
	GateNotFrontal    Gate = "not_frontal"
	GateAdapterFault  Gate = "adapter_fault"
	GateNoCandidate   Gate = "no_candidate"
)

// Decision is one emitted verification outcome.
type Decision struct {
	Verified   bool
	EmployeeID int64
	Code       string
	Name       string
	Score      float64
	At         time.Time
}

// FrameStatus is what the UI renders after each frame.
type FrameStatus struct {
	State             State
	Gate              Gate
	Detections        []face.Detection
	Progress          float64 // stabilization progress, 0..1
	CooldownRemaining time.Duration
	// Decision is non-nil only on the frame that emitted it.
	Decision *Decision
	// LastDecision is the most recent emission, kept for display
	// across frames with no candidate.
	LastDecision *Decision
}

// Verifier is not safe for concurrent use; the capture loop owns it.
type Verifier struct {
	cfg Config
	clk clock.Clock
	emb detect.Embedder
	idx *index.Index
	log zerolog.Logger

	stableSince time.Time // zero while not stabilizing
	emittedAt   time.Time // zero before the first emission
	last        *Decision
}

// New builds a verifier over the given embedder and gallery.
func New(cfg Config, clk clock.Clock, emb detect.Embedder, idx *index.Index, log zerolog.Logger) *Verifier {
	return &Verifier{
		cfg: cfg,
		clk: clk,
		emb: emb,
		idx: idx,
		log: log.With().Str("component", "verify").Logger(),
	}
}

// Reset forces the machine back to Idle, discarding stabilization
// progress, the cooldown window and the displayed decision.
func (v *Verifier) Reset() {
	v.stableSince = time.Time{}
	v.emittedAt = time.Time{}
	v.last = nil
}

// Observe advances the machine by one frame. detectErr is the fault
// from the detector adapter, if any; it counts as a gate failure
// rather than aborting the loop.
func (v *Verifier) Observe(ctx context.Context, frame detect.Frame, detections []face.Detection, detectErr error) FrameStatus {
	now := v.clk.Now()

	if detectErr != nil {
		v.log.Warn().Err(detectErr).Msg("detector fault")
		return v.fail(GateAdapterFault, detections)
	}
	if gate := v.checkGates(frame, detections); gate != GateNone {
		return v.fail(gate, detections)
	}

	// Gates hold. Cooldown suppresses stabilization entirely so the
	// next window starts fresh once it expires.
	if remaining := v.cooldownRemaining(now); remaining > 0 {
		v.stableSince = time.Time{}
		return FrameStatus{
			State:             StateCooldown,
			Detections:        detections,
			CooldownRemaining: remaining,
			LastDecision:      v.last,
		}
	}

	if v.stableSince.IsZero() {
		v.stableSince = now
	}
	elapsed := now.Sub(v.stableSince)
	if elapsed < v.cfg.Stabilization {
		return FrameStatus{
			State:        StateStabilizing,
			Detections:   detections,
			Progress:     float64(elapsed) / float64(v.cfg.Stabilization),
			LastDecision: v.last,
		}
	}

	return v.verify(ctx, frame, detections[0], detections, now)
}

func (v *Verifier) verify(ctx context.Context, frame detect.Frame, d face.Detection, detections []face.Detection, now time.Time) FrameStatus {
	probe, err := v.emb.Embed(ctx, frame, d)
	if err != nil {
		v.log.Warn().Err(err).Msg("embedder fault")
		return v.fail(GateAdapterFault, detections)
	}

	match, err := v.idx.Search(probe)
	switch {
	case errors.Is(err, kioskerrors.ErrIndexEmpty):
		// No gallery yet; wait without emitting.
		return v.fail(GateNoCandidate, detections)
	case err != nil:
		v.log.Error().Err(err).Msg("gallery query failed")
		return v.fail(GateAdapterFault, detections)
	}

	dec := &Decision{Score: match.Score, At: now}
	if match.Score > v.cfg.SimilarityThreshold {
		dec.Verified = true
		dec.EmployeeID = match.EmployeeID
		dec.Code = match.Code
		dec.Name = match.Name
		v.log.Info().Int64("employee_id", match.EmployeeID).Str("code", match.Code).
			Float64("score", match.Score).Msg("verified")
	} else {
		v.log.Info().Float64("score", match.Score).Msg("unauthorized")
	}

	v.last = dec
	v.emittedAt = now
	v.stableSince = time.Time{}
	return FrameStatus{
		State:             StateCooldown,
		Detections:        detections,
		CooldownRemaining: v.cfg.ReverifyCooldown,
		Decision:          dec,
		LastDecision:      dec,
	}
}

// fail resets stabilization and reports the blocking gate. The last
// emitted decision stays visible.
func (v *Verifier) fail(gate Gate, detections []face.Detection) FrameStatus {
	v.stableSince = time.Time{}
	state := StateIdle
	var remaining time.Duration
	if r := v.cooldownRemaining(v.clk.Now()); r > 0 {
		state = StateCooldown
		remaining = r
	}
	return FrameStatus{
		State:             state,
		Gate:              gate,
		Detections:        detections,
		CooldownRemaining: remaining,
		LastDecision:      v.last,
	}
}

func (v *Verifier) cooldownRemaining(now time.Time) time.Duration {
	if v.emittedAt.IsZero() {
		return 0
	}
	remaining := v.cfg.ReverifyCooldown - now.Sub(v.emittedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// checkGates validates the detection set in order and returns the
// first gate that fails.
func (v *Verifier) checkGates(frame detect.Frame, detections []face.Detection) Gate {
	switch {
	case len(detections) == 0:
		return GateNoFace
	case len(detections) > 1:
		return GateMultipleFaces
	}
	d := detections[0]
	if d.Confidence < minConfidence {
		return GateLowConfidence
	}
	ratio := d.Box.Area() / float64(frame.Width*frame.Height)
	switch {
	case ratio < v.cfg.MinFaceRatio:
		return GateTooFar
	case ratio > v.cfg.MaxFaceRatio:
		return GateTooClose
	}
	if !frontal(d.Landmarks) {
		return GateNotFrontal
	}
	return GateNone
}

// frontal checks that the nose sits near the eye midline and the eyes
// are level, both scaled by the inter-eye distance.
func frontal(lm face.Landmarks) bool {
	d := lm.EyeDistance()
	if d <= 0 {
		return false
	}
	noseOffset := lm.Nose.X - (lm.RightEye.X+lm.LeftEye.X)/2
	if abs(noseOffset) > noseOffsetTolerance*d {
		return false
	}
	return abs(lm.RightEye.Y-lm.LeftEye.Y) <= eyeTiltTolerance*d
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
