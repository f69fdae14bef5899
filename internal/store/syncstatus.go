package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"facekiosk/pkg/domain/attendance"
	kioskerrors "facekiosk/pkg/errors"
)

// SyncStatus is the recorded outcome of the last push and pull for one
// logical stream. Written only by the sync engine.
type SyncStatus struct {
	Stream          string
	LastPullTime    string
	LastPushTime    string
	LastPullSuccess bool
	LastPushSuccess bool
	PullError       string
	PushError       string
	UpdatedAt       string
}

// RecordPush updates the push half of a stream's status row.
// A failure records only the flag and error text; the timestamp moves
// only on success so retries pick up where they left off.
func (s *Store) RecordPush(ctx context.Context, stream string, ok bool, errMsg string, at time.Time) error {
	now := at.Format(attendance.DateTimeLayout)
	var err error
	if ok {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sync_status
			SET last_push_time = ?, last_push_success = 1, push_error_message = NULL, updated_at = ?
			WHERE table_name = ?`, now, now, stream)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sync_status
			SET last_push_success = 0, push_error_message = ?, updated_at = ?
			WHERE table_name = ?`, nullString(errMsg), now, stream)
	}
	return mapErr(err)
}

// RecordPull updates the pull half of a stream's status row. On
// failure the last_pull_time cursor stays put; incremental pulls must
// not skip the window that failed.
func (s *Store) RecordPull(ctx context.Context, stream string, ok bool, errMsg string, at time.Time) error {
	now := at.Format(attendance.DateTimeLayout)
	var err error
	if ok {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sync_status
			SET last_pull_time = ?, last_pull_success = 1, pull_error_message = NULL, updated_at = ?
			WHERE table_name = ?`, now, now, stream)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE sync_status
			SET last_pull_success = 0, pull_error_message = ?, updated_at = ?
			WHERE table_name = ?`, nullString(errMsg), now, stream)
	}
	return mapErr(err)
}

// LastPullTime returns the recorded last pull time for one stream,
// used for incremental pulls.
func (s *Store) LastPullTime(ctx context.Context, stream string) (string, error) {
	var t sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT last_pull_time FROM sync_status WHERE table_name = ?`, stream).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kioskerrors.ErrNotFound
	}
	if err != nil {
		return "", mapErr(err)
	}
	if !t.Valid {
		return "2000-01-01 00:00:00", nil
	}
	return t.String, nil
}

// SyncStatuses returns all stream rows ordered by stream name.
func (s *Store) SyncStatuses(ctx context.Context) ([]SyncStatus, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, COALESCE(last_pull_time, ''), COALESCE(last_push_time, ''),
		       last_pull_success, last_push_success,
		       COALESCE(pull_error_message, ''), COALESCE(push_error_message, ''),
		       COALESCE(updated_at, '')
		FROM sync_status
		ORDER BY table_name`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []SyncStatus
	for rows.Next() {
		var (
			st             SyncStatus
			pullOK, pushOK int
		)
		if err := rows.Scan(&st.Stream, &st.LastPullTime, &st.LastPushTime,
			&pullOK, &pushOK, &st.PullError, &st.PushError, &st.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		st.LastPullSuccess = pullOK != 0
		st.LastPushSuccess = pushOK != 0
		out = append(out, st)
	}
	return out, rows.Err()
}
