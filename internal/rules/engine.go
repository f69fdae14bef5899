// Package rules is the attendance decision layer. Given a verified
// employee it decides whether an event may be recorded, classifies it
// against the day's schedule, and maintains the per-day summary row.
package rules

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
	"facekiosk/pkg/domain/schedule"
	kioskerrors "facekiosk/pkg/errors"
)

// cooldownEndLayout renders the end of a login cooldown for the UI.
const cooldownEndLayout = "03:04 PM"

// Confirmer asks the operator-facing surface a yes/no question. It is
// consulted before recording an early time_out.
type Confirmer interface {
	Confirm(title, message string) bool
}

// Config carries the gate toggles.
type Config struct {
	LoginCooldownEnabled     bool
	LoginCooldownMinutes     int
	LogoutRestrictionEnabled bool
}

// RejectReason names why no event was recorded.
type RejectReason string

const (
	ReasonNoSchedule        RejectReason = "no_schedule"
	ReasonAlreadyLoggedOut  RejectReason = "already_logged_out"
	ReasonCooldown          RejectReason = "cooldown"
	ReasonUndertimeDeclined RejectReason = "undertime_declined"
)

// Outcome reports what happened to one verified decision.
type Outcome struct {
	Recorded bool
	LogID    int64
	LogType  attendance.LogType
	Notes    string
	// Reason is set when Recorded is false.
	Reason RejectReason
	// CooldownEnds is set for ReasonCooldown, formatted for display.
	CooldownEnds string
}

// Engine applies the gates and writes events. One instance serves the
// capture loop; all writes go through short transactions on the local
// store.
type Engine struct {
	store   *store.Store
	clk     clock.Clock
	cfg     Config
	confirm Confirmer // nil means always allow
	log     zerolog.Logger
}

// NewEngine builds the rules engine. confirm may be nil, in which case
// undertime confirmation always passes.
func NewEngine(st *store.Store, clk clock.Clock, cfg Config, confirm Confirmer, log zerolog.Logger) *Engine {
	return &Engine{
		store:   st,
		clk:     clk,
		cfg:     cfg,
		confirm: confirm,
		log:     log.With().Str("component", "rules").Logger(),
	}
}

// RecordVerified runs the gate chain for one verified employee and, if
// every gate passes, writes the attendance event and updates the daily
// summary in one transaction.
func (e *Engine) RecordVerified(ctx context.Context, employeeID int64) (Outcome, error) {
	now := e.clk.Now()
	date := now.Format(attendance.DateLayout)
	dow := schedule.DayOfWeek(now)

	plan, err := e.store.DayPlan(ctx, employeeID, dow, date)
	if err != nil {
		return Outcome{}, err
	}
	if len(plan) == 0 {
		e.log.Info().Int64("employee_id", employeeID).Msg("rejected: no schedule today")
		return Outcome{Reason: ReasonNoSchedule}, nil
	}

	logs, err := e.store.LogsForDay(ctx, employeeID, date)
	if err != nil {
		return Outcome{}, err
	}
	next := attendance.NextLogType(logs)

	if e.cfg.LogoutRestrictionEnabled {
		for _, l := range logs {
			if l.LogType == attendance.TimeOut {
				e.log.Info().Int64("employee_id", employeeID).Msg("rejected: already logged out")
				return Outcome{Reason: ReasonAlreadyLoggedOut}, nil
			}
		}
	}

	if e.cfg.LoginCooldownEnabled {
		if ends, blocked := e.cooldownEnds(logs, now); blocked {
			e.log.Info().Int64("employee_id", employeeID).Str("until", ends).
				Msg("rejected: login cooldown")
			return Outcome{Reason: ReasonCooldown, CooldownEnds: ends}, nil
		}
	}

	firstStart := plan.FirstStart().On(now)
	lastEnd := plan.LastEnd().On(now)

	if next == attendance.TimeOut && now.Before(lastEnd) && e.confirm != nil {
		if !e.confirm.Confirm("Early Time Out",
			"Your shift has not ended yet. Record time out anyway?") {
			e.log.Info().Int64("employee_id", employeeID).Msg("rejected: undertime declined")
			return Outcome{Reason: ReasonUndertimeDeclined}, nil
		}
	}

	var notes string
	switch next {
	case attendance.TimeIn:
		notes = attendance.ClassifyTimeIn(wholeMinutes(now.Sub(firstStart)))
	case attendance.TimeOut:
		notes = attendance.ClassifyTimeOut(wholeMinutes(now.Sub(lastEnd)))
	}

	var logID int64
	write := func(tx *sql.Tx) error {
		id, err := e.store.InsertLogTx(ctx, tx, attendance.Log{
			EmployeeID: employeeID,
			LogDate:    date,
			LogType:    next,
			LogTime:    now.Format(attendance.DateTimeLayout),
			Source:     attendance.SourceKiosk,
			Notes:      notes,
		})
		if err != nil {
			return err
		}
		logID = id

		switch next {
		case attendance.TimeIn:
			late := wholeMinutes(now.Sub(firstStart))
			if late < 0 {
				late = 0
			}
			return e.store.ApplyTimeInTx(ctx, tx, employeeID, date,
				now.Format(attendance.TimeLayout), late, now.Format(attendance.DateTimeLayout))
		default:
			return e.applyTimeOut(ctx, tx, employeeID, date, now, plan, lastEnd)
		}
	}

	err = e.store.WithTx(ctx, write)
	if errors.Is(err, kioskerrors.ErrLocalStoreBusy) {
		// One immediate retry; a second failure surfaces.
		e.log.Warn().Int64("employee_id", employeeID).Msg("local store busy, retrying once")
		err = e.store.WithTx(ctx, write)
	}
	if err != nil {
		return Outcome{}, err
	}

	e.log.Info().Int64("employee_id", employeeID).Str("log_type", string(next)).
		Str("notes", notes).Msg("recorded attendance event")
	return Outcome{Recorded: true, LogID: logID, LogType: next, Notes: notes}, nil
}

// applyTimeOut computes the summary fields for a time_out and updates
// the daily row inside the caller's transaction.
func (e *Engine) applyTimeOut(ctx context.Context, tx *sql.Tx, employeeID int64, date string,
	now time.Time, plan schedule.DayPlan, lastEnd time.Time) error {
	scheduled := plan.SpanMinutes()
	sum := plan.TotalMinutes()

	d := wholeMinutes(now.Sub(lastEnd))
	var early, overtime int
	if d < 0 {
		early = -d
	} else {
		overtime = d
	}

	late := 0
	status := attendance.StatusIncomplete
	existing, err := e.store.GetDailyTx(ctx, tx, employeeID, date)
	switch {
	case errors.Is(err, kioskerrors.ErrNotFound):
		// No time_in today; ApplyTimeOutTx creates a bare row.
	case err != nil:
		return err
	default:
		late = existing.LateMinutes
		if existing.TimeIn != "" {
			status = attendance.StatusComplete
		}
	}

	actual := sum - late - early
	if actual < 0 {
		actual = 0
	}

	return e.store.ApplyTimeOutTx(ctx, tx, employeeID, date,
		now.Format(attendance.TimeLayout),
		scheduled, actual, early, overtime, status, now.Format(attendance.DateTimeLayout))
}

// cooldownEnds reports whether the most recent time_in today is still
// inside the login cooldown window, and when that window ends.
func (e *Engine) cooldownEnds(logs []attendance.Log, now time.Time) (string, bool) {
	window := time.Duration(e.cfg.LoginCooldownMinutes) * time.Minute
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].LogType != attendance.TimeIn {
			continue
		}
		lastIn, err := time.ParseInLocation(attendance.DateTimeLayout, logs[i].LogTime, now.Location())
		if err != nil {
			e.log.Warn().Str("log_time", logs[i].LogTime).Msg("unparseable log time, skipping cooldown check")
			return "", false
		}
		if now.Sub(lastIn) < window {
			return lastIn.Add(window).Format(cooldownEndLayout), true
		}
		return "", false
	}
	return "", false
}

// wholeMinutes truncates a duration to whole minutes toward zero.
func wholeMinutes(d time.Duration) int {
	return int(d / time.Minute)
}
