package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
)

// fakeLeave approves leave for specific (employee, date) pairs.
type fakeLeave struct {
	approved map[int64]map[string]string // employee -> date -> leave type
	err      error
}

func (f *fakeLeave) ApprovedLeave(ctx context.Context, employeeID int64, date string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	lt, ok := f.approved[employeeID][date]
	return lt, ok, nil
}

func newInitializer(s *store.Store, at time.Time, leave LeaveSource) *DayInitializer {
	return NewDayInitializer(s, clock.NewFixed(at), leave, zerolog.Nop())
}

func TestStaleRowsMarkedAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Friday's shell was never filled in.
	_, err := s.InsertDailyShell(ctx, 1, "2026-02-27", attendance.StatusIncomplete, "")
	require.NoError(t, err)

	res, err := newInitializer(s, monday(6, 0, 0), nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedAbsent)
	assert.Zero(t, res.MarkedLeave)

	d, err := s.GetDaily(ctx, 1, "2026-02-27")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, d.Status)
	assert.Zero(t, d.ScheduledMinutes)
	assert.Zero(t, d.ActualMinutes)
}

func TestStaleRowsMarkedLeave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertDailyShell(ctx, 1, "2026-02-27", attendance.StatusIncomplete, "")
	require.NoError(t, err)

	leave := &fakeLeave{approved: map[int64]map[string]string{
		1: {"2026-02-27": "Sick"},
	}}
	res, err := newInitializer(s, monday(6, 0, 0), leave).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedLeave)
	assert.Zero(t, res.MarkedAbsent)

	d, err := s.GetDaily(ctx, 1, "2026-02-27")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLeave, d.Status)
	assert.Equal(t, "On Sick Leave", d.Notes)
}

func TestTodayShellsCreatedForScheduledEmployees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := newInitializer(s, monday(6, 0, 0), nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CreatedToday)

	d, err := s.GetDaily(ctx, 1, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusIncomplete, d.Status)

	// Re-running must not duplicate or reset anything.
	res, err = newInitializer(s, monday(6, 30, 0), nil).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.CreatedToday)
}

func TestTodayLeaveShell(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	leave := &fakeLeave{approved: map[int64]map[string]string{
		1: {"2026-03-02": "Vacation"},
	}}
	res, err := newInitializer(s, monday(6, 0, 0), leave).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.CreatedToday)

	d, err := s.GetDaily(ctx, 1, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusLeave, d.Status)
	assert.Equal(t, "On Vacation Leave", d.Notes)
}

func TestLeaveLookupFailureDegradesToAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertDailyShell(ctx, 1, "2026-02-27", attendance.StatusIncomplete, "")
	require.NoError(t, err)

	leave := &fakeLeave{err: errors.New("connection refused")}
	res, err := newInitializer(s, monday(6, 0, 0), leave).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.MarkedAbsent)

	d, err := s.GetDaily(ctx, 1, "2026-02-27")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAbsent, d.Status)
}

func TestUnscheduledDayCreatesNothing(t *testing.T) {
	s := newTestStore(t)

	// Sunday: nobody is scheduled.
	sunday := time.Date(2026, 3, 1, 6, 0, 0, 0, time.Local)
	res, err := newInitializer(s, sunday, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.CreatedToday)
}
