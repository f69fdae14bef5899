// Package store is the durable local store on the kiosk, backed by an
// embedded SQLite database.
//
// All tasks share one Store. Writers take short transactions, one
// logical update each; SQLite's single-writer model plus a busy timeout
// keeps contention bounded. Busy errors surface as ErrLocalStoreBusy so
// callers can retry once within the same task.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	kioskerrors "facekiosk/pkg/errors"
)

// Store wraps the local database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the local database at path and
// ensures the schema exists. Use ":memory:" for an in-process store in
// tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	// One connection: SQLite allows a single writer, and a shared pool
	// over :memory: would otherwise see distinct databases.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for read-only queries; writers should go
// through the store methods or WithTx.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w: init schema: %v", kioskerrors.ErrLocalStoreCorrupt, err)
		}
	}
	for _, stream := range trackedStreams {
		// last_pull_time starts NULL so the first incremental pull on a
		// fresh install covers the whole existing roster.
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO sync_status (table_name, last_pull_time, last_push_time)
			VALUES (?, NULL, datetime('now'))`, stream)
		if err != nil {
			return fmt.Errorf("%w: seed sync_status: %v", kioskerrors.ErrLocalStoreCorrupt, err)
		}
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on nil and rolling
// back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		tx.Rollback()
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	return nil
}

// mapErr translates driver errors into the kiosk error taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kioskerrors.ErrLocalStoreBusy) ||
		errors.Is(err, kioskerrors.ErrLocalStoreCorrupt) ||
		errors.Is(err, kioskerrors.ErrNotFound) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY") {
		return fmt.Errorf("%w: %v", kioskerrors.ErrLocalStoreBusy, err)
	}
	if strings.Contains(msg, "malformed") || strings.Contains(msg, "SQLITE_CORRUPT") {
		return fmt.Errorf("%w: %v", kioskerrors.ErrLocalStoreCorrupt, err)
	}
	return err
}
