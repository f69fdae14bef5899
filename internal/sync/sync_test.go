package sync

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
	"facekiosk/pkg/domain/employee"
	"facekiosk/pkg/domain/face"
	"facekiosk/pkg/domain/schedule"
	kioskerrors "facekiosk/pkg/errors"
)

// fakeRemote is a scripted in-memory server. Setting offline makes
// every call fail with the transient sentinel.
type fakeRemote struct {
	offline bool

	nextLogID    int64
	insertedLogs []attendance.Log
	pushedDaily  []attendance.DailyRecord

	employees   []employee.Employee
	lastSince   string
	schedules   []schedule.Schedule
	periods     []schedule.Period
	assignments []schedule.Assignment
	daily       []attendance.DailyRecord
	embeddings  []FaceEmbedding
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	if f.offline {
		return kioskerrors.ErrTransientRemote
	}
	return nil
}

func (f *fakeRemote) InsertAttendanceLog(ctx context.Context, l attendance.Log) (int64, error) {
	if f.offline {
		return 0, kioskerrors.ErrTransientRemote
	}
	f.nextLogID++
	f.insertedLogs = append(f.insertedLogs, l)
	return f.nextLogID, nil
}

func (f *fakeRemote) UpsertDailyAttendance(ctx context.Context, d attendance.DailyRecord) error {
	if f.offline {
		return kioskerrors.ErrTransientRemote
	}
	f.pushedDaily = append(f.pushedDaily, d)
	return nil
}

func (f *fakeRemote) EmployeesSince(ctx context.Context, since string) ([]employee.Employee, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	f.lastSince = since
	return f.employees, nil
}

func (f *fakeRemote) Schedules(ctx context.Context) ([]schedule.Schedule, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	return f.schedules, nil
}

func (f *fakeRemote) SchedulePeriods(ctx context.Context) ([]schedule.Period, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	return f.periods, nil
}

func (f *fakeRemote) EmployeeSchedules(ctx context.Context) ([]schedule.Assignment, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	return f.assignments, nil
}

func (f *fakeRemote) DailyAttendance(ctx context.Context) ([]attendance.DailyRecord, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	return f.daily, nil
}

func (f *fakeRemote) FaceEmbeddings(ctx context.Context) ([]FaceEmbedding, error) {
	if f.offline {
		return nil, kioskerrors.ErrTransientRemote
	}
	return f.embeddings, nil
}

func (f *fakeRemote) ApprovedLeave(ctx context.Context, employeeID int64, date string) (string, bool, error) {
	if f.offline {
		return "", false, kioskerrors.ErrTransientRemote
	}
	return "", false, nil
}

func (f *fakeRemote) Close() error { return nil }

var _ Remote = (*fakeRemote)(nil)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.UpsertEmployee(context.Background(), employee.Employee{
		ID: 1, Code: "E001", FirstName: "Alice", LastName: "Reyes",
		Status: employee.StatusActive,
	}, testNow)
	require.NoError(t, err)
	return s
}

func insertLog(t *testing.T, s *store.Store, logTime string, lt attendance.LogType) int64 {
	t.Helper()
	var id int64
	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		var err error
		id, err = s.InsertLogTx(context.Background(), tx, attendance.Log{
			EmployeeID: 1, LogDate: "2026-03-02", LogType: lt,
			LogTime: logTime, Source: attendance.SourceKiosk,
		})
		return err
	})
	require.NoError(t, err)
	return id
}

func axisEmbedding(axis int) face.Embedding {
	v := make(face.Embedding, face.Dim)
	v[axis] = 1
	return v
}

func TestOfflineToOnlineRecovery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{offline: true}
	pusher := NewPusher(s, remote, clock.NewFixed(testNow), 7, zerolog.Nop())

	insertLog(t, s, "2026-03-02 07:10:30", attendance.TimeIn)
	insertLog(t, s, "2026-03-02 12:05:45", attendance.TimeOut)
	insertLog(t, s, "2026-03-02 12:30:00", attendance.TimeIn)

	res := pusher.RunOnce(ctx)
	assert.Zero(t, res.LogsPushed)
	assert.Equal(t, 3, res.LogsFailed)

	statuses, err := s.SyncStatuses(ctx)
	require.NoError(t, err)
	for _, st := range statuses {
		if st.Stream == "attendance_logs" {
			assert.False(t, st.LastPushSuccess)
			assert.NotEmpty(t, st.PushError)
		}
	}

	// Connectivity returns; the backlog drains in log_time order.
	remote.offline = false
	res = pusher.RunOnce(ctx)
	assert.Equal(t, 3, res.LogsPushed)
	assert.Zero(t, res.LogsFailed)
	require.Len(t, remote.insertedLogs, 3)
	assert.Equal(t, "2026-03-02 07:10:30", remote.insertedLogs[0].LogTime)
	assert.Equal(t, "2026-03-02 12:05:45", remote.insertedLogs[1].LogTime)
	assert.Equal(t, "2026-03-02 12:30:00", remote.insertedLogs[2].LogTime)

	unsynced, err := s.UnsyncedLogs(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	statuses, err = s.SyncStatuses(ctx)
	require.NoError(t, err)
	for _, st := range statuses {
		if st.Stream == "attendance_logs" {
			assert.True(t, st.LastPushSuccess)
			assert.Empty(t, st.PushError)
		}
	}
}

func TestPushIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{}
	pusher := NewPusher(s, remote, clock.NewFixed(testNow), 7, zerolog.Nop())

	insertLog(t, s, "2026-03-02 07:10:30", attendance.TimeIn)

	res := pusher.RunOnce(ctx)
	assert.Equal(t, 1, res.LogsPushed)

	// A synced row must never be pushed again.
	res = pusher.RunOnce(ctx)
	assert.Zero(t, res.LogsPushed)
	assert.Len(t, remote.insertedLogs, 1)
}

func TestDailyPushWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{}
	pusher := NewPusher(s, remote, clock.NewFixed(testNow), 7, zerolog.Nop())

	_, err := s.InsertDailyShell(ctx, 1, "2026-03-01", attendance.StatusIncomplete, "")
	require.NoError(t, err)
	// Outside the 7-day window.
	_, err = s.InsertDailyShell(ctx, 1, "2026-02-01", attendance.StatusIncomplete, "")
	require.NoError(t, err)

	res := pusher.RunOnce(ctx)
	assert.Equal(t, 1, res.DailyPushed)
	require.Len(t, remote.pushedDaily, 1)
	assert.Equal(t, "2026-03-01", remote.pushedDaily[0].Date)
}

func TestPullMirrorsFullSets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Local state the remote no longer knows about.
	require.NoError(t, s.UpsertSchedule(ctx, schedule.Schedule{ID: 1, Name: "Shift"}, testNow))
	_, err := s.ReplacePeriods(ctx, []schedule.Period{
		{ID: 10, ScheduleID: 1, DayOfWeek: 0, Start: schedule.TimeOfDay{Hour: 7}, End: schedule.TimeOfDay{Hour: 12}, Active: true},
		{ID: 11, ScheduleID: 1, DayOfWeek: 1, Start: schedule.TimeOfDay{Hour: 7}, End: schedule.TimeOfDay{Hour: 12}, Active: true},
	}, testNow)
	require.NoError(t, err)
	_, err = s.ReplaceAssignments(ctx, []schedule.Assignment{
		{ID: 100, EmployeeID: 1, ScheduleID: 1, EffectiveDate: "2026-01-01", Active: true},
		{ID: 101, EmployeeID: 1, ScheduleID: 1, EffectiveDate: "2025-01-01", EndDate: "2025-12-31", Active: true},
	}, testNow)
	require.NoError(t, err)

	remote := &fakeRemote{
		schedules: []schedule.Schedule{{ID: 1, Name: "Shift"}},
		periods: []schedule.Period{
			{ID: 10, ScheduleID: 1, DayOfWeek: 0, Start: schedule.TimeOfDay{Hour: 8}, End: schedule.TimeOfDay{Hour: 13}, Active: true},
		},
		assignments: []schedule.Assignment{
			{ID: 100, EmployeeID: 1, ScheduleID: 1, EffectiveDate: "2026-01-01", Active: true},
		},
	}
	puller := NewPuller(s, remote, clock.NewFixed(testNow), zerolog.Nop())

	res := puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Periods)
	assert.Equal(t, 1, res.PeriodsGone)
	assert.Equal(t, 1, res.Assignments)
	assert.Equal(t, 1, res.AssignsGone)

	// Local period 10 now carries the remote's updated times.
	plan, err := s.DayPlan(ctx, 1, 0, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "08:00:00", plan[0].Start.String())
}

func TestPullEmployeesIsIncremental(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{
		employees: []employee.Employee{
			{ID: 2, Code: "E002", FirstName: "Ben", LastName: "Cho", Status: "active"},
		},
	}
	puller := NewPuller(s, remote, clock.NewFixed(testNow), zerolog.Nop())

	res := puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Employees)
	assert.True(t, res.RosterChanged)
	assert.Equal(t, "2000-01-01 00:00:00", remote.lastSince, "first pull covers everything")

	_, err := s.GetEmployee(ctx, 2)
	assert.NoError(t, err)

	// The cursor advanced to the last successful pull.
	remote.employees = nil
	res = puller.RunOnce(ctx)
	assert.Zero(t, res.Employees)
	assert.False(t, res.RosterChanged)
	assert.Equal(t, "2026-03-02 08:00:00", remote.lastSince)
}

func TestPullEmbeddingsTriggerRebuildOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{
		embeddings: []FaceEmbedding{{ID: 1, EmployeeID: 1, Vector: axisEmbedding(0)}},
	}
	puller := NewPuller(s, remote, clock.NewFixed(testNow), zerolog.Nop())

	res := puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Embeddings)
	assert.True(t, res.RosterChanged)

	rows, err := s.ActiveEmbeddings(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// Identical gallery on the next cycle: no rebuild signal.
	res = puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Embeddings)
	assert.False(t, res.RosterChanged)
}

func TestPullStreamIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	remote := &fakeRemote{offline: true}
	puller := NewPuller(s, remote, clock.NewFixed(testNow), zerolog.Nop())

	res := puller.RunOnce(ctx)
	assert.Zero(t, res.Employees)

	statuses, err := s.SyncStatuses(ctx)
	require.NoError(t, err)
	for _, st := range statuses {
		if st.Stream == "attendance_logs" {
			continue // push-only stream
		}
		assert.False(t, st.LastPullSuccess, st.Stream)
	}

	// Nothing was lost locally and the next cycle recovers fully.
	remote.offline = false
	remote.employees = []employee.Employee{
		{ID: 2, Code: "E002", FirstName: "Ben", LastName: "Cho", Status: "active"},
	}
	res = puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Employees)
}

func TestPullDailyMirrorAdoptsLocalRow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Kiosk created the row locally; the server assigned a different pk.
	_, err := s.InsertDailyShell(ctx, 1, "2026-03-02", attendance.StatusIncomplete, "")
	require.NoError(t, err)

	remote := &fakeRemote{
		daily: []attendance.DailyRecord{{
			ID: 900, EmployeeID: 1, Date: "2026-03-02",
			TimeIn: "07:10:30", LateMinutes: 10, Status: attendance.StatusIncomplete,
		}},
	}
	puller := NewPuller(s, remote, clock.NewFixed(testNow), zerolog.Nop())

	res := puller.RunOnce(ctx)
	assert.Equal(t, 1, res.Daily)

	d, err := s.GetDaily(ctx, 1, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(900), d.ID)
	assert.Equal(t, "07:10:30", d.TimeIn)
	assert.Equal(t, 10, d.LateMinutes)
}
