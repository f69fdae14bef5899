package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facekiosk/pkg/domain/attendance"
	kioskerrors "facekiosk/pkg/errors"
)

// ==========================================================================
// Attendance logs
// ==========================================================================

// InsertLogTx appends one attendance event inside the caller's
// transaction and returns its local ID. Events are immutable once
// written; only the sync columns change afterwards.
func (s *Store) InsertLogTx(ctx context.Context, tx *sql.Tx, l attendance.Log) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_logs
		(employee_id, log_date, log_type, log_time, source, notes, synced)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		l.EmployeeID, l.LogDate, string(l.LogType), l.LogTime, l.Source, l.Notes)
	if err != nil {
		return 0, mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, mapErr(err)
	}
	return id, nil
}

// LogsForDayTx returns the employee's events for one date in log_time
// order, inside the caller's transaction.
func (s *Store) LogsForDayTx(ctx context.Context, tx *sql.Tx, employeeID int64, date string) ([]attendance.Log, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, employee_id, log_date, log_type, log_time,
		       COALESCE(source, ''), COALESCE(notes, ''), synced
		FROM attendance_logs
		WHERE employee_id = ? AND log_date = ?
		ORDER BY log_time ASC`, employeeID, date)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// LogsForDay is the read-only variant of LogsForDayTx.
func (s *Store) LogsForDay(ctx context.Context, employeeID int64, date string) ([]attendance.Log, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, log_date, log_type, log_time,
		       COALESCE(source, ''), COALESCE(notes, ''), synced
		FROM attendance_logs
		WHERE employee_id = ? AND log_date = ?
		ORDER BY log_time ASC`, employeeID, date)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

func scanLogs(rows *sql.Rows) ([]attendance.Log, error) {
	var out []attendance.Log
	for rows.Next() {
		var (
			l       attendance.Log
			logType string
			synced  int
		)
		if err := rows.Scan(&l.ID, &l.EmployeeID, &l.LogDate, &logType, &l.LogTime,
			&l.Source, &l.Notes, &synced); err != nil {
			return nil, mapErr(err)
		}
		l.LogType = attendance.LogType(logType)
		l.Synced = synced != 0
		out = append(out, l)
	}
	return out, rows.Err()
}

// UnsyncedLogs returns events not yet mirrored to the server, oldest
// first, so push preserves per-employee order.
func (s *Store) UnsyncedLogs(ctx context.Context, limit int) ([]attendance.Log, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, log_date, log_type, log_time,
		       COALESCE(source, ''), COALESCE(notes, ''), synced
		FROM attendance_logs
		WHERE synced = 0
		ORDER BY log_time ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	return scanLogs(rows)
}

// MarkLogSynced records the server-assigned mirror ID after a
// successful push. Pushing is idempotent on this flag: a synced row is
// never pushed again.
func (s *Store) MarkLogSynced(ctx context.Context, logID, mirrorID int64, syncedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE attendance_logs
		SET synced = 1, synced_at = ?, mirror_id = ?
		WHERE id = ?`, syncedAt.Format(attendance.DateTimeLayout), mirrorID, logID)
	return mapErr(err)
}

// ==========================================================================
// Daily attendance
// ==========================================================================

// GetDailyTx loads the (employee, date) summary row inside the caller's
// transaction. Returns ErrNotFound when the row does not exist yet.
func (s *Store) GetDailyTx(ctx context.Context, tx *sql.Tx, employeeID int64, date string) (attendance.DailyRecord, error) {
	row := tx.QueryRowContext(ctx, dailySelect+` WHERE employee_id = ? AND attendance_date = ?`, employeeID, date)
	return scanDaily(row)
}

// GetDaily is the read-only variant of GetDailyTx.
func (s *Store) GetDaily(ctx context.Context, employeeID int64, date string) (attendance.DailyRecord, error) {
	row := s.db.QueryRowContext(ctx, dailySelect+` WHERE employee_id = ? AND attendance_date = ?`, employeeID, date)
	return scanDaily(row)
}

const dailySelect = `
	SELECT id, employee_id, attendance_date,
	       COALESCE(time_in, ''), COALESCE(time_out, ''),
	       COALESCE(scheduled_hours, 0), COALESCE(actual_hours, 0),
	       COALESCE(late_minutes, 0), COALESCE(early_departure_minutes, 0),
	       COALESCE(overtime_minutes, 0), COALESCE(break_time_minutes, 0),
	       COALESCE(status, ''), COALESCE(notes, ''), COALESCE(calculated_at, '')
	FROM daily_attendance`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDaily(row rowScanner) (attendance.DailyRecord, error) {
	var (
		d                attendance.DailyRecord
		schedMin, actMin float64
	)
	err := row.Scan(&d.ID, &d.EmployeeID, &d.Date, &d.TimeIn, &d.TimeOut,
		&schedMin, &actMin, &d.LateMinutes, &d.EarlyDepartureMinutes,
		&d.OvertimeMinutes, &d.BreakMinutes, &d.Status, &d.Notes, &d.CalculatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.DailyRecord{}, kioskerrors.ErrNotFound
	}
	if err != nil {
		return attendance.DailyRecord{}, mapErr(err)
	}
	// The columns are REAL for historical reasons; the values are whole minutes.
	d.ScheduledMinutes = int(schedMin)
	d.ActualMinutes = int(actMin)
	return d, nil
}

// ApplyTimeInTx upserts the daily row for a time_in event: records the
// wall-clock time-in and the late minutes, status stays incomplete.
func (s *Store) ApplyTimeInTx(ctx context.Context, tx *sql.Tx, employeeID int64, date, timeIn string, lateMinutes int, calculatedAt string) error {
	existing, err := s.GetDailyTx(ctx, tx, employeeID, date)
	switch {
	case errors.Is(err, kioskerrors.ErrNotFound):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_attendance
			(employee_id, attendance_date, time_in, late_minutes, status, calculated_at)
			VALUES (?, ?, ?, ?, 'incomplete', ?)`,
			employeeID, date, timeIn, lateMinutes, calculatedAt)
		return mapErr(err)
	case err != nil:
		return err
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE daily_attendance
			SET time_in = ?, late_minutes = ?, status = 'incomplete', calculated_at = ?
			WHERE id = ?`, timeIn, lateMinutes, calculatedAt, existing.ID)
		return mapErr(err)
	}
}

// ApplyTimeOutTx completes the daily row for a time_out event with the
// calculated minute fields. When no row exists (time_out without a
// time_in) a bare incomplete row is created instead.
func (s *Store) ApplyTimeOutTx(ctx context.Context, tx *sql.Tx, employeeID int64, date, timeOut string,
	scheduledMinutes, actualMinutes, earlyDepartureMinutes, overtimeMinutes int, status, calculatedAt string) error {
	existing, err := s.GetDailyTx(ctx, tx, employeeID, date)
	switch {
	case errors.Is(err, kioskerrors.ErrNotFound):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_attendance
			(employee_id, attendance_date, time_out, status, calculated_at)
			VALUES (?, ?, ?, 'incomplete', ?)`,
			employeeID, date, timeOut, calculatedAt)
		return mapErr(err)
	case err != nil:
		return err
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE daily_attendance
			SET time_out = ?, scheduled_hours = ?, actual_hours = ?,
			    early_departure_minutes = ?, overtime_minutes = ?,
			    status = ?, calculated_at = ?
			WHERE id = ?`,
			timeOut, scheduledMinutes, actualMinutes, earlyDepartureMinutes,
			overtimeMinutes, status, calculatedAt, existing.ID)
		return mapErr(err)
	}
}

// DailySince returns summary rows with attendance_date on or after
// cutoff, newest date first, for the push window.
func (s *Store) DailySince(ctx context.Context, cutoff string) ([]attendance.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, dailySelect+`
		WHERE attendance_date >= ?
		ORDER BY attendance_date DESC, employee_id ASC`, cutoff)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []attendance.DailyRecord
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDailyMirror applies a pulled daily_attendance row by its
// server primary key. The server is authoritative for historical
// corrections. A row the kiosk created locally for the same
// (employee, date) pair is adopted: it takes the server's id and
// fields rather than colliding with a fresh insert. Adoption matches
// the natural key only; an unrelated local row whose AUTOINCREMENT id
// happens to equal the server id is re-keyed onto an unused local id
// first, so the server id never lands on the wrong row.
func (s *Store) UpsertDailyMirror(ctx context.Context, d attendance.DailyRecord, syncedAt time.Time) (bool, error) {
	now := syncedAt.Format(attendance.DateTimeLayout)
	inserted := false
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		// Re-key any unrelated row squatting on the server id. MAX(id)+1
		// is unused, and the squatting row keeps its natural key and data.
		_, err := tx.ExecContext(ctx, `
			UPDATE daily_attendance
			SET id = (SELECT MAX(id) + 1 FROM daily_attendance)
			WHERE id = ? AND NOT (employee_id = ? AND attendance_date = ?)`,
			d.ID, d.EmployeeID, d.Date)
		if err != nil {
			return mapErr(err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE daily_attendance
			SET id = ?, time_in = ?, time_out = ?,
			    scheduled_hours = ?, actual_hours = ?, late_minutes = ?,
			    early_departure_minutes = ?, overtime_minutes = ?, break_time_minutes = ?,
			    status = ?, notes = ?, calculated_at = ?, last_synced = ?
			WHERE employee_id = ? AND attendance_date = ?`,
			d.ID, nullString(d.TimeIn), nullString(d.TimeOut),
			d.ScheduledMinutes, d.ActualMinutes, d.LateMinutes,
			d.EarlyDepartureMinutes, d.OvertimeMinutes, d.BreakMinutes,
			d.Status, d.Notes, d.CalculatedAt, now, d.EmployeeID, d.Date)
		if err != nil {
			return mapErr(err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO daily_attendance
			(id, employee_id, attendance_date, time_in, time_out,
			 scheduled_hours, actual_hours, late_minutes, early_departure_minutes,
			 overtime_minutes, break_time_minutes, status, notes, calculated_at, last_synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.EmployeeID, d.Date, nullString(d.TimeIn), nullString(d.TimeOut),
			d.ScheduledMinutes, d.ActualMinutes, d.LateMinutes, d.EarlyDepartureMinutes,
			d.OvertimeMinutes, d.BreakMinutes, d.Status, d.Notes, d.CalculatedAt, now)
		if err != nil {
			return fmt.Errorf("insert daily mirror %d: %w", d.ID, mapErr(err))
		}
		inserted = true
		return nil
	})
	return inserted, err
}

// ==========================================================================
// Day-initializer support
// ==========================================================================

// StaleDaily identifies a summary row that was never closed out.
type StaleDaily struct {
	ID         int64
	EmployeeID int64
	Date       string
}

// StaleOpenDaily returns rows older than today where the employee never
// timed in and the row has not been finalized as absent or leave.
func (s *Store) StaleOpenDaily(ctx context.Context, today string) ([]StaleDaily, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT da.id, da.employee_id, da.attendance_date
		FROM daily_attendance da
		WHERE da.attendance_date < ?
		  AND da.time_in IS NULL
		  AND da.status != 'absent'
		  AND da.status != 'leave'
		ORDER BY da.attendance_date, da.employee_id`, today)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []StaleDaily
	for rows.Next() {
		var r StaleDaily
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Date); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FinalizeDailyAbsent marks a stale row absent and blanks the minute
// counters (NULL, not zero: absence has no measured minutes).
func (s *Store) FinalizeDailyAbsent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_attendance
		SET status = 'absent',
		    late_minutes = NULL,
		    early_departure_minutes = NULL,
		    overtime_minutes = NULL
		WHERE id = ?`, id)
	return mapErr(err)
}

// FinalizeDailyLeave marks a stale row as covered by an approved leave.
func (s *Store) FinalizeDailyLeave(ctx context.Context, id int64, notes string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_attendance
		SET status = 'leave',
		    notes = ?,
		    late_minutes = NULL,
		    early_departure_minutes = NULL,
		    overtime_minutes = NULL
		WHERE id = ?`, notes, id)
	return mapErr(err)
}

// InsertDailyShell creates today's placeholder row for a scheduled
// employee (status incomplete, or leave with a note). Does nothing if a
// row already exists for the pair.
func (s *Store) InsertDailyShell(ctx context.Context, employeeID int64, date, status, notes string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO daily_attendance
		(employee_id, attendance_date, status, time_in, time_out,
		 late_minutes, early_departure_minutes, overtime_minutes, notes)
		VALUES (?, ?, ?, NULL, NULL, NULL, NULL, NULL, ?)`,
		employeeID, date, status, nullString(notes))
	if err != nil {
		return false, mapErr(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
