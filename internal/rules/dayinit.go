package rules

import (
	"context"

	"github.com/rs/zerolog"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
	"facekiosk/pkg/domain/schedule"
)

// LeaveSource answers whether an employee is on approved leave on a
// date, returning the leave type name. It is typically backed by the
// remote database; a nil source means leave is never assumed.
type LeaveSource interface {
	ApprovedLeave(ctx context.Context, employeeID int64, date string) (leaveType string, onLeave bool, err error)
}

// DayInitResult counts what one initializer run changed.
type DayInitResult struct {
	MarkedAbsent int
	MarkedLeave  int
	CreatedToday int
}

// DayInitializer finalizes stale open daily rows from previous days
// and seeds today's rows for every scheduled employee. It runs at
// startup and again on calendar-day rollover; both steps are
// idempotent.
type DayInitializer struct {
	store *store.Store
	clk   clock.Clock
	leave LeaveSource // nil degrades to "never on leave"
	log   zerolog.Logger
}

// NewDayInitializer builds the initializer. leave may be nil.
func NewDayInitializer(st *store.Store, clk clock.Clock, leave LeaveSource, log zerolog.Logger) *DayInitializer {
	return &DayInitializer{
		store: st,
		clk:   clk,
		leave: leave,
		log:   log.With().Str("component", "dayinit").Logger(),
	}
}

// Run executes both initializer steps for the current date.
func (di *DayInitializer) Run(ctx context.Context) (DayInitResult, error) {
	now := di.clk.Now()
	today := now.Format(attendance.DateLayout)
	dow := schedule.DayOfWeek(now)

	var res DayInitResult

	stale, err := di.store.StaleOpenDaily(ctx, today)
	if err != nil {
		return res, err
	}
	for _, row := range stale {
		leaveType, onLeave := di.approvedLeave(ctx, row.EmployeeID, row.Date)
		if onLeave {
			if err := di.store.FinalizeDailyLeave(ctx, row.ID, attendance.LeaveNote(leaveType)); err != nil {
				return res, err
			}
			res.MarkedLeave++
			continue
		}
		if err := di.store.FinalizeDailyAbsent(ctx, row.ID); err != nil {
			return res, err
		}
		res.MarkedAbsent++
	}

	scheduled, err := di.store.ScheduledEmployees(ctx, dow, today)
	if err != nil {
		return res, err
	}
	for _, emp := range scheduled {
		status := attendance.StatusIncomplete
		notes := ""
		if leaveType, onLeave := di.approvedLeave(ctx, emp.ID, today); onLeave {
			status = attendance.StatusLeave
			notes = attendance.LeaveNote(leaveType)
		}
		created, err := di.store.InsertDailyShell(ctx, emp.ID, today, status, notes)
		if err != nil {
			return res, err
		}
		if created {
			res.CreatedToday++
		}
	}

	di.log.Info().Str("date", today).
		Int("absent", res.MarkedAbsent).Int("leave", res.MarkedLeave).Int("created", res.CreatedToday).
		Msg("day initialization complete")
	return res, nil
}

// approvedLeave consults the leave source, degrading to "no leave" on
// a nil source or a lookup failure. Attendance must keep working when
// the remote is unreachable.
func (di *DayInitializer) approvedLeave(ctx context.Context, employeeID int64, date string) (string, bool) {
	if di.leave == nil {
		return "", false
	}
	leaveType, onLeave, err := di.leave.ApprovedLeave(ctx, employeeID, date)
	if err != nil {
		di.log.Warn().Err(err).Int64("employee_id", employeeID).Str("date", date).
			Msg("leave lookup failed, assuming no leave")
		return "", false
	}
	return leaveType, onLeave
}
