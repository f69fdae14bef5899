// Package errors defines common error types used across the kiosk.
// These errors classify failures at the adapter, store, and sync
// boundaries so callers can decide between retry, skip, and abort.
package errors

import "errors"

// Adapter errors — returned by the detector and embedder boundaries.
var (
	// ErrDetector is returned when the face detector backend fails on a frame.
	// The frame is treated as having no usable face; the pipeline continues.
	ErrDetector = errors.New("detector failure")

	// ErrEmbedder is returned when the embedding backend fails on a crop.
	// Verification for the current candidate is abandoned, not the session.
	ErrEmbedder = errors.New("embedder failure")
)

// Index errors — returned by the embedding index.
var (
	// ErrIndexEmpty is returned when a search runs against an index with
	// no enrolled embeddings.
	ErrIndexEmpty = errors.New("embedding index empty")

	// ErrDimensionMismatch is returned when an embedding is not 512-dimensional.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Local store errors — returned by the SQLite-backed store.
var (
	// ErrLocalStoreBusy is returned when the local database is locked by a
	// concurrent writer. Callers retry once within the same task.
	ErrLocalStoreBusy = errors.New("local store busy")

	// ErrLocalStoreCorrupt is returned when the local database fails an
	// integrity check. Unrecoverable without operator intervention.
	ErrLocalStoreCorrupt = errors.New("local store corrupt")

	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
)

// Sync errors — returned at the remote mirror boundary.
var (
	// ErrTransientRemote is returned when the remote mirror is unreachable
	// or a remote statement fails. Sync cycles log it and retry on the
	// next interval; it never aborts the kiosk.
	ErrTransientRemote = errors.New("transient remote failure")
)
