package kiosk

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/detect"
	"facekiosk/internal/rules"
	"facekiosk/internal/sync"
	"facekiosk/internal/verify"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
)

// shutdownGrace bounds how long Stop waits for the background loops.
const shutdownGrace = 3 * time.Second

// idleFrameDelay paces the capture loop when no camera is configured.
const idleFrameDelay = 200 * time.Millisecond

// Supervisor owns all long-lived activities: the day initializer, the
// sync engine, and the capture/verification loop. It is constructed
// once in main and runs until the context is cancelled.
type Supervisor struct {
	camera   Camera // nil runs sync-only, no capture
	detector detect.Detector
	verifier *verify.Verifier
	engine   *rules.Engine
	dayInit  *rules.DayInitializer
	syncEng  *sync.Engine
	gallery  *Gallery
	overlay  Overlay
	clk      clock.Clock
	log      zerolog.Logger

	resetCh chan struct{}
}

// NewSupervisor wires the top-level runtime. camera may be nil for
// deployments that only sync.
func NewSupervisor(camera Camera, detector detect.Detector, verifier *verify.Verifier,
	engine *rules.Engine, dayInit *rules.DayInitializer, syncEng *sync.Engine,
	gallery *Gallery, overlay Overlay, clk clock.Clock, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		camera:   camera,
		detector: detector,
		verifier: verifier,
		engine:   engine,
		dayInit:  dayInit,
		syncEng:  syncEng,
		gallery:  gallery,
		overlay:  overlay,
		clk:      clk,
		log:      log.With().Str("component", "supervisor").Logger(),
		resetCh:  make(chan struct{}, 1),
	}
}

// Reset requests a manual state-machine reset; safe from any
// goroutine, coalesces repeated requests.
func (s *Supervisor) Reset() {
	select {
	case s.resetCh <- struct{}{}:
	default:
	}
}

// Run executes the kiosk until ctx is cancelled, then shuts the
// background loops down within the grace period.
func (s *Supervisor) Run(ctx context.Context) error {
	if _, err := s.dayInit.Run(ctx); err != nil {
		// Attendance still works without the initializer; rows catch
		// up on the midnight rollover or the next start.
		s.log.Error().Err(err).Msg("day initialization failed")
	}

	s.syncEng.Start(ctx)
	defer s.stopSync()

	s.captureLoop(ctx)
	return nil
}

func (s *Supervisor) stopSync() {
	done := make(chan struct{})
	go func() {
		s.syncEng.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		s.log.Warn().Msg("sync loops did not stop within grace period")
	}
}

func (s *Supervisor) captureLoop(ctx context.Context) {
	lastDate := s.clk.Now().Format(attendance.DateLayout)
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case <-s.resetCh:
			s.verifier.Reset()
			s.log.Info().Msg("manual reset")
		default:
		}

		// Calendar-day rollover re-runs the initializer.
		if today := s.clk.Now().Format(attendance.DateLayout); today != lastDate {
			lastDate = today
			if _, err := s.dayInit.Run(ctx); err != nil {
				s.log.Error().Err(err).Msg("rollover day initialization failed")
			}
		}

		if s.camera == nil {
			sleepCtx(ctx, idleFrameDelay)
			continue
		}

		frame, err := s.camera.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn().Err(err).Msg("frame read failed")
			sleepCtx(ctx, idleFrameDelay)
			continue
		}

		detections, detectErr := s.detector.Detect(ctx, frame)
		st := s.verifier.Observe(ctx, frame, detections, detectErr)
		s.overlay.RenderFrame(st)

		if st.Decision != nil {
			s.handleDecision(ctx, st.Decision)
		}
	}
}

func (s *Supervisor) handleDecision(ctx context.Context, dec *verify.Decision) {
	if !dec.Verified {
		s.log.Info().Float64("score", dec.Score).Msg("unrecognized face")
		return
	}

	out, err := s.engine.RecordVerified(ctx, dec.EmployeeID)
	if err != nil {
		s.log.Error().Err(err).Int64("employee_id", dec.EmployeeID).Msg("recording attendance failed")
		return
	}
	if !out.Recorded {
		s.overlay.ShowRejection(out.Reason, out.CooldownEnds)
		return
	}
	s.overlay.ShowCard(Card{
		Name:    dec.Name,
		Code:    dec.Code,
		LogType: out.LogType,
		At:      dec.At.Format(attendance.TimeLayout),
		Notes:   out.Notes,
	})
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
