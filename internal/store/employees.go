package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facekiosk/pkg/domain/employee"
	kioskerrors "facekiosk/pkg/errors"
)

// GetEmployee returns one roster entry by server-assigned ID.
func (s *Store) GetEmployee(ctx context.Context, id int64) (employee.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, first_name, COALESCE(middle_name, ''), last_name,
		       COALESCE(email, ''), COALESCE(phone, ''), COALESCE(department, ''),
		       COALESCE(position, ''), COALESCE(status, ''), COALESCE(profile_photo, ''),
		       COALESCE(created_at, ''), COALESCE(updated_at, '')
		FROM employees WHERE id = ?`, id)
	return scanEmployee(row)
}

// GetEmployeeByCode returns one roster entry by its human code.
func (s *Store) GetEmployeeByCode(ctx context.Context, code string) (employee.Employee, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, first_name, COALESCE(middle_name, ''), last_name,
		       COALESCE(email, ''), COALESCE(phone, ''), COALESCE(department, ''),
		       COALESCE(position, ''), COALESCE(status, ''), COALESCE(profile_photo, ''),
		       COALESCE(created_at, ''), COALESCE(updated_at, '')
		FROM employees WHERE employee_id = ?`, code)
	return scanEmployee(row)
}

func scanEmployee(row *sql.Row) (employee.Employee, error) {
	var e employee.Employee
	err := row.Scan(&e.ID, &e.Code, &e.FirstName, &e.MiddleName, &e.LastName,
		&e.Email, &e.Phone, &e.Department, &e.Position, &e.Status, &e.ProfilePhoto,
		&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return employee.Employee{}, kioskerrors.ErrNotFound
	}
	if err != nil {
		return employee.Employee{}, mapErr(err)
	}
	return e, nil
}

// UpsertEmployee applies a pulled roster row by primary key. Returns
// true when a new row was inserted. Local rows are never deleted.
func (s *Store) UpsertEmployee(ctx context.Context, e employee.Employee, syncedAt time.Time) (bool, error) {
	now := syncedAt.Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET employee_id = ?, first_name = ?, middle_name = ?, last_name = ?,
		    email = ?, phone = ?, department = ?, position = ?, status = ?,
		    profile_photo = ?, updated_at = ?, last_synced = ?
		WHERE id = ?`,
		e.Code, e.FirstName, e.MiddleName, e.LastName, e.Email, e.Phone,
		e.Department, e.Position, e.Status, e.ProfilePhoto, e.UpdatedAt, now, e.ID)
	if err != nil {
		return false, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO employees
		(id, employee_id, first_name, middle_name, last_name, email, phone,
		 department, position, status, profile_photo, created_at, updated_at, last_synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Code, e.FirstName, e.MiddleName, e.LastName, e.Email, e.Phone,
		e.Department, e.Position, e.Status, e.ProfilePhoto, e.CreatedAt, e.UpdatedAt, now)
	if err != nil {
		return false, fmt.Errorf("insert employee %d: %w", e.ID, mapErr(err))
	}
	return true, nil
}

// ScheduledEmployees returns the distinct active employees that have an
// active schedule period on the given day of week, valid on date.
// Used by the day-initializer.
func (s *Store) ScheduledEmployees(ctx context.Context, dayOfWeek int, date string) ([]employee.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT e.id, e.employee_id, e.first_name, e.last_name
		FROM employees e
		INNER JOIN employee_schedules es ON e.id = es.employee_id
		INNER JOIN schedules s ON es.schedule_id = s.id
		INNER JOIN schedule_periods sp ON s.id = sp.schedule_id
		WHERE LOWER(e.status) = 'active'
		  AND es.is_active = 1
		  AND sp.is_active = 1
		  AND sp.day_of_week = ?
		  AND (es.end_date IS NULL OR es.end_date >= ?)
		ORDER BY e.id`, dayOfWeek, date)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []employee.Employee
	for rows.Next() {
		var e employee.Employee
		if err := rows.Scan(&e.ID, &e.Code, &e.FirstName, &e.LastName); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
