// Package index holds the in-memory face embedding matrix the kiosk
// matches probes against.
//
// The gallery is an N x 512 row-major float32 matrix plus a parallel
// slice of per-row identity metadata. Readers never lock: Search loads
// a snapshot through an atomic pointer and works on it even while a
// Rebuild swaps in a replacement. A snapshot is immutable after
// publication.
package index

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"facekiosk/pkg/domain/face"
	kioskerrors "facekiosk/pkg/errors"
)

// Entry is one gallery row offered to Rebuild. An employee may own
// several entries; each stays its own row.
type Entry struct {
	EmployeeID int64
	Code       string
	Name       string
	Vector     face.Embedding
}

// Match is the best gallery row for a probe.
type Match struct {
	EmployeeID int64
	Code       string
	Name       string
	Score      float64
	Row        int
}

type snapshot struct {
	// matrix is row-major, len == len(rows) * face.Dim.
	matrix []float32
	rows   []rowMeta
}

type rowMeta struct {
	employeeID int64
	code       string
	name       string
}

// Index is safe for concurrent Search and Rebuild.
type Index struct {
	current atomic.Pointer[snapshot]
	log     zerolog.Logger
}

// New returns an empty index. Search fails with ErrIndexEmpty until
// the first successful Rebuild.
func New(log zerolog.Logger) *Index {
	idx := &Index{log: log.With().Str("component", "index").Logger()}
	idx.current.Store(&snapshot{})
	return idx
}

// Rebuild validates every entry, packs a fresh matrix and publishes it
// atomically. On any invalid entry the rebuild is abandoned and the
// previous snapshot stays live.
func (idx *Index) Rebuild(ctx context.Context, entries []Entry) error {
	next := &snapshot{
		matrix: make([]float32, 0, len(entries)*face.Dim),
		rows:   make([]rowMeta, 0, len(entries)),
	}
	seen := map[int64]struct{}{}
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Vector.Validate(); err != nil {
			idx.log.Error().Err(err).Int("row", i).Int64("employee_id", e.EmployeeID).
				Msg("rejecting gallery rebuild")
			return err
		}
		next.matrix = append(next.matrix, e.Vector...)
		next.rows = append(next.rows, rowMeta{employeeID: e.EmployeeID, code: e.Code, name: e.Name})
		seen[e.EmployeeID] = struct{}{}
	}
	idx.current.Store(next)
	idx.log.Info().Int("embeddings", len(next.rows)).Int("employees", len(seen)).
		Msg("gallery rebuilt")
	return nil
}

// Search scores the probe against every row and returns the single
// best match. Equal scores resolve to the earliest row, so results
// are stable across repeated calls on the same snapshot.
func (idx *Index) Search(probe face.Embedding) (Match, error) {
	if len(probe) != face.Dim {
		return Match{}, kioskerrors.ErrDimensionMismatch
	}
	snap := idx.current.Load()
	if len(snap.rows) == 0 {
		return Match{}, kioskerrors.ErrIndexEmpty
	}

	bestRow := 0
	bestScore := dot(probe, snap.matrix[:face.Dim])
	for r := 1; r < len(snap.rows); r++ {
		score := dot(probe, snap.matrix[r*face.Dim:(r+1)*face.Dim])
		if score > bestScore {
			bestScore = score
			bestRow = r
		}
	}

	meta := snap.rows[bestRow]
	return Match{
		EmployeeID: meta.employeeID,
		Code:       meta.code,
		Name:       meta.name,
		Score:      bestScore,
		Row:        bestRow,
	}, nil
}

// Size reports the row count of the live snapshot.
func (idx *Index) Size() int {
	return len(idx.current.Load().rows)
}

// Entries returns a copy of the live snapshot as entries, in row
// order. Used when persisting the gallery to a snapshot file.
func (idx *Index) Entries() []Entry {
	snap := idx.current.Load()
	out := make([]Entry, len(snap.rows))
	for r, meta := range snap.rows {
		vec := make(face.Embedding, face.Dim)
		copy(vec, snap.matrix[r*face.Dim:(r+1)*face.Dim])
		out[r] = Entry{EmployeeID: meta.employeeID, Code: meta.code, Name: meta.name, Vector: vec}
	}
	return out
}

// dot accumulates in float64; float32 accumulation loses enough
// precision over 512 terms to flip near-threshold decisions.
func dot(a face.Embedding, row []float32) float64 {
	var sum float64
	for i, v := range a {
		sum += float64(v) * float64(row[i])
	}
	return sum
}
