package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"facekiosk/pkg/domain/schedule"
)

// UpsertSchedule applies a pulled schedule template by primary key.
func (s *Store) UpsertSchedule(ctx context.Context, sc schedule.Schedule, syncedAt time.Time) error {
	now := syncedAt.Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules SET schedule_name = ?, description = ?, last_synced = ?
		WHERE id = ?`, sc.Name, sc.Description, now, sc.ID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, schedule_name, description, created_at, last_synced)
		VALUES (?, ?, ?, ?, ?)`, sc.ID, sc.Name, sc.Description, sc.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("insert schedule %d: %w", sc.ID, mapErr(err))
	}
	return nil
}

// ReplacePeriods makes the local schedule_periods set equal to the
// remote set: rows absent remotely are deleted, the rest upserted.
// This is one of the two streams with authoritative deletion.
// Returns the number of deleted orphans.
func (s *Store) ReplacePeriods(ctx context.Context, periods []schedule.Period, syncedAt time.Time) (int, error) {
	now := syncedAt.Format("2006-01-02 15:04:05")
	remote := make(map[int64]bool, len(periods))
	for _, p := range periods {
		remote[p.ID] = true
	}

	deleted := 0
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		orphans, err := orphanIDs(ctx, tx, "schedule_periods", remote)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			if err := deleteByID(ctx, tx, "schedule_periods", orphans); err != nil {
				return err
			}
			deleted = len(orphans)
		}
		for _, p := range periods {
			res, err := tx.ExecContext(ctx, `
				UPDATE schedule_periods
				SET schedule_id = ?, day_of_week = ?, period_name = ?,
				    start_time = ?, end_time = ?, is_active = ?, last_synced = ?
				WHERE id = ?`,
				p.ScheduleID, p.DayOfWeek, p.Name, p.Start.String(), p.End.String(),
				boolToInt(p.Active), now, p.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO schedule_periods
				(id, schedule_id, day_of_week, period_name, start_time, end_time, is_active, last_synced)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.ScheduleID, p.DayOfWeek, p.Name, p.Start.String(), p.End.String(),
				boolToInt(p.Active), now)
			if err != nil {
				return fmt.Errorf("insert period %d: %w", p.ID, err)
			}
		}
		return nil
	})
	return deleted, err
}

// ReplaceAssignments applies the same full-set-with-delete policy to
// employee_schedules.
func (s *Store) ReplaceAssignments(ctx context.Context, assignments []schedule.Assignment, syncedAt time.Time) (int, error) {
	now := syncedAt.Format("2006-01-02 15:04:05")
	remote := make(map[int64]bool, len(assignments))
	for _, a := range assignments {
		remote[a.ID] = true
	}

	deleted := 0
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		orphans, err := orphanIDs(ctx, tx, "employee_schedules", remote)
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			if err := deleteByID(ctx, tx, "employee_schedules", orphans); err != nil {
				return err
			}
			deleted = len(orphans)
		}
		for _, a := range assignments {
			endDate := nullString(a.EndDate)
			res, err := tx.ExecContext(ctx, `
				UPDATE employee_schedules
				SET employee_id = ?, schedule_id = ?, effective_date = ?,
				    end_date = ?, is_active = ?, last_synced = ?
				WHERE id = ?`,
				a.EmployeeID, a.ScheduleID, a.EffectiveDate, endDate,
				boolToInt(a.Active), now, a.ID)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				continue
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO employee_schedules
				(id, employee_id, schedule_id, effective_date, end_date, is_active, created_at, last_synced)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, a.EmployeeID, a.ScheduleID, a.EffectiveDate, endDate,
				boolToInt(a.Active), a.CreatedAt, now)
			if err != nil {
				return fmt.Errorf("insert assignment %d: %w", a.ID, err)
			}
		}
		return nil
	})
	return deleted, err
}

// DayPlan resolves the active periods for an employee on one date.
// The active assignment is the most-recent-effective non-expired active
// row; its active periods for the day are returned sorted by start
// time. An empty plan means no schedule today.
func (s *Store) DayPlan(ctx context.Context, employeeID int64, dayOfWeek int, date string) (schedule.DayPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.id, sp.schedule_id, sp.day_of_week, COALESCE(sp.period_name, ''),
		       sp.start_time, sp.end_time, sp.is_active
		FROM schedule_periods sp
		WHERE sp.schedule_id = (
			SELECT es.schedule_id FROM employee_schedules es
			WHERE es.employee_id = ?
			  AND es.is_active = 1
			  AND es.effective_date <= ?
			  AND (es.end_date IS NULL OR es.end_date >= ?)
			ORDER BY es.effective_date DESC
			LIMIT 1
		)
		  AND sp.day_of_week = ?
		  AND sp.is_active = 1
		ORDER BY sp.start_time ASC`, employeeID, date, date, dayOfWeek)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var plan schedule.DayPlan
	for rows.Next() {
		var (
			p          schedule.Period
			start, end string
			active     int
		)
		if err := rows.Scan(&p.ID, &p.ScheduleID, &p.DayOfWeek, &p.Name, &start, &end, &active); err != nil {
			return nil, mapErr(err)
		}
		if p.Start, err = schedule.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if p.End, err = schedule.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		p.Active = active != 0
		plan = append(plan, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	plan.Sort()
	return plan, nil
}

// ==========================================================================
// Helpers shared by the full-set streams
// ==========================================================================

func orphanIDs(ctx context.Context, tx *sql.Tx, table string, remote map[int64]bool) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id FROM "+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !remote[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans, rows.Err()
}

func deleteByID(ctx context.Context, tx *sql.Tx, table string, ids []int64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders), args...)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
