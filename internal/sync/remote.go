// Package sync keeps the kiosk's local store converged with the
// central server: a push loop drains locally recorded attendance, a
// pull loop mirrors the roster, schedules and gallery down. Both
// loops tolerate the remote being unreachable and retry forever.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"facekiosk/internal/store"
	"facekiosk/pkg/domain/attendance"
	"facekiosk/pkg/domain/employee"
	"facekiosk/pkg/domain/face"
	"facekiosk/pkg/domain/schedule"
	kioskerrors "facekiosk/pkg/errors"
)

// FaceEmbedding is one gallery vector pulled from the server.
type FaceEmbedding struct {
	ID         int64
	EmployeeID int64
	Vector     face.Embedding
}

// Remote is the server-side surface the sync loops talk to. All
// methods honor their context; connectivity faults come back wrapped
// in ErrTransientRemote.
type Remote interface {
	Ping(ctx context.Context) error
	InsertAttendanceLog(ctx context.Context, l attendance.Log) (int64, error)
	UpsertDailyAttendance(ctx context.Context, d attendance.DailyRecord) error
	EmployeesSince(ctx context.Context, since string) ([]employee.Employee, error)
	Schedules(ctx context.Context) ([]schedule.Schedule, error)
	SchedulePeriods(ctx context.Context) ([]schedule.Period, error)
	EmployeeSchedules(ctx context.Context) ([]schedule.Assignment, error)
	DailyAttendance(ctx context.Context) ([]attendance.DailyRecord, error)
	FaceEmbeddings(ctx context.Context) ([]FaceEmbedding, error)
	ApprovedLeave(ctx context.Context, employeeID int64, date string) (string, bool, error)
	Close() error
}

// PostgresRemote talks to the central attendance database. Every call
// carries a bounded timeout so a dead link never stalls a sync cycle.
type PostgresRemote struct {
	db      *sql.DB
	timeout time.Duration
	log     zerolog.Logger
}

// OpenRemote connects with the given DSN. The connection is lazy;
// reachability is only known once a call is made.
func OpenRemote(dsn string, timeout time.Duration, log zerolog.Logger) (*PostgresRemote, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open remote: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(time.Minute)
	return &PostgresRemote{
		db:      db,
		timeout: timeout,
		log:     log.With().Str("component", "remote").Logger(),
	}, nil
}

// Close releases the connection pool.
func (r *PostgresRemote) Close() error {
	return r.db.Close()
}

func (r *PostgresRemote) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// transient tags an error as a retryable remote fault.
func transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, kioskerrors.ErrTransientRemote, err)
}

// Ping checks reachability.
func (r *PostgresRemote) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return transient("ping remote", err)
	}
	return nil
}

// InsertAttendanceLog mirrors one local event and returns the server
// primary key.
func (r *PostgresRemote) InsertAttendanceLog(ctx context.Context, l attendance.Log) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_logs (employee_id, log_date, log_type, log_time, source, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		l.EmployeeID, l.LogDate, string(l.LogType), l.LogTime, l.Source, l.Notes).Scan(&id)
	if err != nil {
		return 0, transient("insert attendance log", err)
	}
	return id, nil
}

// UpsertDailyAttendance pushes one summary row, keyed by the natural
// (employee, date) pair so repeated pushes of the same day update in
// place.
func (r *PostgresRemote) UpsertDailyAttendance(ctx context.Context, d attendance.DailyRecord) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO daily_attendance
		(employee_id, attendance_date, time_in, time_out, scheduled_hours, actual_hours,
		 late_minutes, early_departure_minutes, overtime_minutes, break_time_minutes,
		 status, notes, calculated_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		ON CONFLICT (employee_id, attendance_date) DO UPDATE SET
		 time_in = EXCLUDED.time_in,
		 time_out = EXCLUDED.time_out,
		 scheduled_hours = EXCLUDED.scheduled_hours,
		 actual_hours = EXCLUDED.actual_hours,
		 late_minutes = EXCLUDED.late_minutes,
		 early_departure_minutes = EXCLUDED.early_departure_minutes,
		 overtime_minutes = EXCLUDED.overtime_minutes,
		 break_time_minutes = EXCLUDED.break_time_minutes,
		 status = EXCLUDED.status,
		 notes = EXCLUDED.notes,
		 calculated_at = EXCLUDED.calculated_at`,
		d.EmployeeID, d.Date, d.TimeIn, d.TimeOut, d.ScheduledMinutes, d.ActualMinutes,
		d.LateMinutes, d.EarlyDepartureMinutes, d.OvertimeMinutes, d.BreakMinutes,
		d.Status, d.Notes, d.CalculatedAt)
	if err != nil {
		return transient("upsert daily attendance", err)
	}
	return nil
}

// EmployeesSince fetches roster rows created or updated at or after
// the given timestamp.
func (r *PostgresRemote) EmployeesSince(ctx context.Context, since string) ([]employee.Employee, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_id, first_name, COALESCE(middle_name, ''), last_name,
		       COALESCE(email, ''), COALESCE(phone, ''), COALESCE(department, ''),
		       COALESCE(position, ''), status, COALESCE(profile_photo, ''),
		       COALESCE(to_char(created_at, 'YYYY-MM-DD HH24:MI:SS'), ''),
		       COALESCE(to_char(updated_at, 'YYYY-MM-DD HH24:MI:SS'), '')
		FROM employees
		WHERE updated_at >= $1 OR created_at >= $1
		ORDER BY id`, since)
	if err != nil {
		return nil, transient("fetch employees", err)
	}
	defer rows.Close()

	var out []employee.Employee
	for rows.Next() {
		var e employee.Employee
		if err := rows.Scan(&e.ID, &e.Code, &e.FirstName, &e.MiddleName, &e.LastName,
			&e.Email, &e.Phone, &e.Department, &e.Position, &e.Status, &e.ProfilePhoto,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, transient("scan employee", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch employees", err)
	}
	return out, nil
}

// Schedules fetches every schedule template.
func (r *PostgresRemote) Schedules(ctx context.Context) ([]schedule.Schedule, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_name, COALESCE(description, ''),
		       COALESCE(to_char(created_at, 'YYYY-MM-DD HH24:MI:SS'), '')
		FROM schedules
		ORDER BY id`)
	if err != nil {
		return nil, transient("fetch schedules", err)
	}
	defer rows.Close()

	var out []schedule.Schedule
	for rows.Next() {
		var sc schedule.Schedule
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Description, &sc.CreatedAt); err != nil {
			return nil, transient("scan schedule", err)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch schedules", err)
	}
	return out, nil
}

// SchedulePeriods fetches the full period set.
func (r *PostgresRemote) SchedulePeriods(ctx context.Context) ([]schedule.Period, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, day_of_week, COALESCE(period_name, ''),
		       to_char(start_time, 'HH24:MI:SS'), to_char(end_time, 'HH24:MI:SS'), is_active
		FROM schedule_periods
		ORDER BY id`)
	if err != nil {
		return nil, transient("fetch schedule periods", err)
	}
	defer rows.Close()

	var out []schedule.Period
	for rows.Next() {
		var p schedule.Period
		var start, end string
		if err := rows.Scan(&p.ID, &p.ScheduleID, &p.DayOfWeek, &p.Name, &start, &end, &p.Active); err != nil {
			return nil, transient("scan schedule period", err)
		}
		if p.Start, err = schedule.ParseTimeOfDay(start); err != nil {
			return nil, fmt.Errorf("period %d: %w", p.ID, err)
		}
		if p.End, err = schedule.ParseTimeOfDay(end); err != nil {
			return nil, fmt.Errorf("period %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch schedule periods", err)
	}
	return out, nil
}

// EmployeeSchedules fetches the full assignment set.
func (r *PostgresRemote) EmployeeSchedules(ctx context.Context) ([]schedule.Assignment, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_id, schedule_id,
		       to_char(effective_date, 'YYYY-MM-DD'),
		       COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''), is_active,
		       COALESCE(to_char(created_at, 'YYYY-MM-DD HH24:MI:SS'), '')
		FROM employee_schedules
		ORDER BY id`)
	if err != nil {
		return nil, transient("fetch employee schedules", err)
	}
	defer rows.Close()

	var out []schedule.Assignment
	for rows.Next() {
		var a schedule.Assignment
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ScheduleID,
			&a.EffectiveDate, &a.EndDate, &a.Active, &a.CreatedAt); err != nil {
			return nil, transient("scan employee schedule", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch employee schedules", err)
	}
	return out, nil
}

// DailyAttendance fetches all summary rows; the server is
// authoritative for historical corrections.
func (r *PostgresRemote) DailyAttendance(ctx context.Context) ([]attendance.DailyRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_id, to_char(attendance_date, 'YYYY-MM-DD'),
		       COALESCE(to_char(time_in, 'HH24:MI:SS'), ''),
		       COALESCE(to_char(time_out, 'HH24:MI:SS'), ''),
		       COALESCE(scheduled_hours, 0), COALESCE(actual_hours, 0),
		       COALESCE(late_minutes, 0), COALESCE(early_departure_minutes, 0),
		       COALESCE(overtime_minutes, 0), COALESCE(break_time_minutes, 0),
		       status, COALESCE(notes, ''),
		       COALESCE(to_char(calculated_at, 'YYYY-MM-DD HH24:MI:SS'), '')
		FROM daily_attendance
		ORDER BY id`)
	if err != nil {
		return nil, transient("fetch daily attendance", err)
	}
	defer rows.Close()

	var out []attendance.DailyRecord
	for rows.Next() {
		var d attendance.DailyRecord
		var scheduled, actual float64
		if err := rows.Scan(&d.ID, &d.EmployeeID, &d.Date, &d.TimeIn, &d.TimeOut,
			&scheduled, &actual, &d.LateMinutes, &d.EarlyDepartureMinutes,
			&d.OvertimeMinutes, &d.BreakMinutes, &d.Status, &d.Notes, &d.CalculatedAt); err != nil {
			return nil, transient("scan daily attendance", err)
		}
		// The *_hours columns carry minute counts end to end.
		d.ScheduledMinutes = int(scheduled)
		d.ActualMinutes = int(actual)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch daily attendance", err)
	}
	return out, nil
}

// FaceEmbeddings fetches the full gallery.
func (r *PostgresRemote) FaceEmbeddings(ctx context.Context) ([]FaceEmbedding, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_id, embedding
		FROM face_embeddings
		ORDER BY id`)
	if err != nil {
		return nil, transient("fetch face embeddings", err)
	}
	defer rows.Close()

	var out []FaceEmbedding
	for rows.Next() {
		var fe FaceEmbedding
		var blob []byte
		if err := rows.Scan(&fe.ID, &fe.EmployeeID, &blob); err != nil {
			return nil, transient("scan face embedding", err)
		}
		vec, err := store.DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("face embedding %d: %w", fe.ID, err)
		}
		fe.Vector = vec
		out = append(out, fe)
	}
	if err := rows.Err(); err != nil {
		return nil, transient("fetch face embeddings", err)
	}
	return out, nil
}

// ApprovedLeave reports whether an approved leave covers the employee
// on the given date, returning the leave-type name.
func (r *PostgresRemote) ApprovedLeave(ctx context.Context, employeeID int64, date string) (string, bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	var leaveType string
	row := r.db.QueryRowContext(ctx, `
		SELECT lt.name
		FROM employee_leaves el
		JOIN leave_types lt ON lt.id = el.leave_type_id
		WHERE el.employee_id = $1
		  AND el.status = 'approved'
		  AND $2::date BETWEEN el.start_date AND el.end_date
		LIMIT 1`, employeeID, date)
	switch err := row.Scan(&leaveType); {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, transient("fetch approved leave", err)
	}
	return leaveType, true, nil
}

var _ Remote = (*PostgresRemote)(nil)
