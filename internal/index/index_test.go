package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facekiosk/pkg/domain/face"
	kioskerrors "facekiosk/pkg/errors"
)

// axisEmbedding is a unit vector along one dimension; dot products
// between distinct axes are exactly zero.
func axisEmbedding(axis int) face.Embedding {
	v := make(face.Embedding, face.Dim)
	v[axis] = 1
	return v
}

func testEntries() []Entry {
	return []Entry{
		{EmployeeID: 1, Code: "E001", Name: "Alice Reyes", Vector: axisEmbedding(0)},
		{EmployeeID: 2, Code: "E002", Name: "Ben Cho", Vector: axisEmbedding(1)},
		{EmployeeID: 2, Code: "E002", Name: "Ben Cho", Vector: axisEmbedding(2)},
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(zerolog.Nop())
	_, err := idx.Search(axisEmbedding(0))
	assert.ErrorIs(t, err, kioskerrors.ErrIndexEmpty)
	assert.Zero(t, idx.Size())
}

func TestSearchBestMatch(t *testing.T) {
	idx := New(zerolog.Nop())
	require.NoError(t, idx.Rebuild(context.Background(), testEntries()))
	assert.Equal(t, 3, idx.Size())

	m, err := idx.Search(axisEmbedding(2))
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.EmployeeID)
	assert.Equal(t, "E002", m.Code)
	assert.Equal(t, 2, m.Row)
	assert.InDelta(t, 1.0, m.Score, 1e-6)
}

func TestSearchTieBreaksToLowestRow(t *testing.T) {
	idx := New(zerolog.Nop())
	entries := []Entry{
		{EmployeeID: 1, Code: "E001", Name: "Alice Reyes", Vector: axisEmbedding(0)},
		{EmployeeID: 2, Code: "E002", Name: "Ben Cho", Vector: axisEmbedding(0)},
	}
	require.NoError(t, idx.Rebuild(context.Background(), entries))

	// Both rows score identically; the earlier row wins.
	m, err := idx.Search(axisEmbedding(0))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Row)
	assert.Equal(t, int64(1), m.EmployeeID)
}

func TestRebuildRejectsInvalidVectors(t *testing.T) {
	idx := New(zerolog.Nop())
	require.NoError(t, idx.Rebuild(context.Background(), testEntries()))

	bad := make(face.Embedding, face.Dim)
	bad[0] = 2 // norm 2, far outside tolerance
	err := idx.Rebuild(context.Background(), []Entry{{EmployeeID: 3, Vector: bad}})
	require.Error(t, err)

	// The previous snapshot must survive a failed rebuild.
	assert.Equal(t, 3, idx.Size())
	m, err := idx.Search(axisEmbedding(0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.EmployeeID)
}

func TestSearchRejectsWrongDimension(t *testing.T) {
	idx := New(zerolog.Nop())
	require.NoError(t, idx.Rebuild(context.Background(), testEntries()))

	_, err := idx.Search(make(face.Embedding, 128))
	assert.ErrorIs(t, err, kioskerrors.ErrDimensionMismatch)
}

func TestRebuildSwapIsVisible(t *testing.T) {
	idx := New(zerolog.Nop())
	require.NoError(t, idx.Rebuild(context.Background(), testEntries()))

	// Shrink the gallery to a single different row.
	require.NoError(t, idx.Rebuild(context.Background(), []Entry{
		{EmployeeID: 9, Code: "E009", Name: "Cara Diaz", Vector: axisEmbedding(5)},
	}))
	assert.Equal(t, 1, idx.Size())

	m, err := idx.Search(axisEmbedding(5))
	require.NoError(t, err)
	assert.Equal(t, int64(9), m.EmployeeID)
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := New(zerolog.Nop())
	require.NoError(t, idx.Rebuild(context.Background(), testEntries()))

	path := filepath.Join(t.TempDir(), "gallery.json")
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, WriteSnapshot(path, idx.Entries(), now))

	entries, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "E001", entries[0].Code)
	assert.Equal(t, "Ben Cho", entries[2].Name)

	restored := New(zerolog.Nop())
	require.NoError(t, restored.Rebuild(context.Background(), entries))
	m, err := restored.Search(axisEmbedding(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.EmployeeID)
	assert.Equal(t, 1, m.Row)
}

func TestSnapshotMissingFile(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
