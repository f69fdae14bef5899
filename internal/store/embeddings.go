package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"facekiosk/pkg/domain/face"
	kioskerrors "facekiosk/pkg/errors"
)

// EmbeddingRow is one enrolled face vector joined with the owning
// employee's display metadata, as consumed by the index rebuild.
type EmbeddingRow struct {
	ID         int64
	EmployeeID int64
	Code       string
	Name       string
	Vector     face.Embedding
}

// UpsertFaceEmbedding applies a pulled embedding by primary key.
// Embeddings are immutable server-side; the update path only matters
// when a pull is replayed.
func (s *Store) UpsertFaceEmbedding(ctx context.Context, id, employeeID int64, vector face.Embedding, syncedAt time.Time) (bool, error) {
	blob := EncodeEmbedding(vector)
	now := syncedAt.Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx, `
		UPDATE face_embeddings SET employee_id = ?, embedding = ?, last_synced = ?
		WHERE id = ?`, employeeID, blob, now, id)
	if err != nil {
		return false, mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO face_embeddings (id, employee_id, embedding, last_synced)
		VALUES (?, ?, ?, ?)`, id, employeeID, blob, now)
	if err != nil {
		return false, fmt.Errorf("insert embedding %d: %w", id, mapErr(err))
	}
	return true, nil
}

// ActiveEmbeddings returns every embedding belonging to an active
// employee, in (employee, embedding) order so index rebuilds are
// deterministic.
func (s *Store) ActiveEmbeddings(ctx context.Context) ([]EmbeddingRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fe.id, fe.employee_id, e.employee_id, e.first_name || ' ' || e.last_name, fe.embedding
		FROM face_embeddings fe
		JOIN employees e ON fe.employee_id = e.id
		WHERE LOWER(e.status) = 'active'
		ORDER BY fe.employee_id, fe.id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var (
			r    EmbeddingRow
			blob []byte
		)
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.Code, &r.Name, &blob); err != nil {
			return nil, mapErr(err)
		}
		r.Vector, err = DecodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// EncodeEmbedding packs a vector as little-endian float32, the wire
// format shared with the server's embedding blobs.
func EncodeEmbedding(v face.Embedding) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeEmbedding unpacks a little-endian float32 blob and checks the
// dimensionality.
func DecodeEmbedding(blob []byte) (face.Embedding, error) {
	if len(blob) != 4*face.Dim {
		return nil, fmt.Errorf("%w: blob of %d bytes", kioskerrors.ErrDimensionMismatch, len(blob))
	}
	v := make(face.Embedding, face.Dim)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
