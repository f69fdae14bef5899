// Package kiosk ties the capture loop, verification, rules and sync
// together under one supervisor, and defines the operator-facing
// surfaces (camera in, overlay out).
package kiosk

import (
	"context"

	"github.com/rs/zerolog"

	"facekiosk/internal/detect"
	"facekiosk/internal/rules"
	"facekiosk/internal/verify"
	"facekiosk/pkg/domain/attendance"
)

// Card is the result panel shown after a recorded event.
type Card struct {
	Name    string
	Code    string
	LogType attendance.LogType
	At      string
	Notes   string
}

// Overlay is the display surface. Implementations render frame status
// continuously and result cards on demand, and answer confirmation
// prompts.
type Overlay interface {
	RenderFrame(st verify.FrameStatus)
	ShowCard(c Card)
	ShowRejection(reason rules.RejectReason, cooldownEnds string)
	Confirm(title, message string) bool
}

// Camera supplies frames to the capture loop.
type Camera interface {
	ReadFrame(ctx context.Context) (detect.Frame, error)
	Close() error
}

// ConsoleOverlay renders to the structured log. It stands in for a
// graphical surface on headless deployments and in tests.
type ConsoleOverlay struct {
	log zerolog.Logger

	lastGate  verify.Gate
	lastState verify.State
}

// NewConsoleOverlay builds the console surface.
func NewConsoleOverlay(log zerolog.Logger) *ConsoleOverlay {
	return &ConsoleOverlay{log: log.With().Str("component", "overlay").Logger()}
}

// RenderFrame logs state transitions only; per-frame output would
// swamp the log at camera rate.
func (o *ConsoleOverlay) RenderFrame(st verify.FrameStatus) {
	if st.Gate == o.lastGate && st.State == o.lastState {
		return
	}
	o.lastGate = st.Gate
	o.lastState = st.State
	ev := o.log.Debug().Int("state", int(st.State))
	if st.Gate != verify.GateNone {
		ev = ev.Str("gate", string(st.Gate))
	}
	ev.Msg("frame status")
}

// ShowCard logs the recorded event.
func (o *ConsoleOverlay) ShowCard(c Card) {
	o.log.Info().Str("name", c.Name).Str("code", c.Code).
		Str("log_type", string(c.LogType)).Str("at", c.At).Str("notes", c.Notes).
		Msg("attendance recorded")
}

// ShowRejection logs why no event was recorded.
func (o *ConsoleOverlay) ShowRejection(reason rules.RejectReason, cooldownEnds string) {
	ev := o.log.Info().Str("reason", string(reason))
	if cooldownEnds != "" {
		ev = ev.Str("cooldown_ends", cooldownEnds)
	}
	ev.Msg("attendance rejected")
}

// Confirm has no operator to ask, so it allows the action; blocking an
// early time_out on a headless kiosk would strand the employee.
func (o *ConsoleOverlay) Confirm(title, message string) bool {
	o.log.Info().Str("title", title).Str("message", message).
		Msg("confirmation prompt auto-accepted")
	return true
}

var _ Overlay = (*ConsoleOverlay)(nil)

// NewOverlayConfirmer adapts an Overlay to the rules engine's
// confirmation seam.
func NewOverlayConfirmer(o Overlay) rules.Confirmer {
	return overlayConfirmer{overlay: o}
}

type overlayConfirmer struct {
	overlay Overlay
}

func (c overlayConfirmer) Confirm(title, message string) bool {
	return c.overlay.Confirm(title, message)
}

var _ rules.Confirmer = overlayConfirmer{}
