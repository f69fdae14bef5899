package kiosk

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facekiosk/internal/index"
	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/employee"
	"facekiosk/pkg/domain/face"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func axisEmbedding(axis int) face.Embedding {
	v := make(face.Embedding, face.Dim)
	v[axis] = 1
	return v
}

func seededStore(t *testing.T, withEmbedding bool) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.UpsertEmployee(ctx, employee.Employee{
		ID: 1, Code: "E001", FirstName: "Alice", LastName: "Reyes",
		Status: employee.StatusActive,
	}, testNow)
	require.NoError(t, err)
	if withEmbedding {
		_, err = s.UpsertFaceEmbedding(ctx, 1, 1, axisEmbedding(0), testNow)
		require.NoError(t, err)
	}
	return s
}

func TestHydrateFromStore(t *testing.T) {
	s := seededStore(t, true)
	idx := index.New(zerolog.Nop())
	snap := filepath.Join(t.TempDir(), "gallery.json")
	g := NewGallery(s, idx, snap, clock.NewFixed(testNow), zerolog.Nop())

	require.NoError(t, g.Hydrate(context.Background()))
	assert.Equal(t, 1, idx.Size())

	// A populated rebuild also refreshes the snapshot file.
	_, err := os.Stat(snap)
	assert.NoError(t, err)
}

func TestHydrateFallsBackToSnapshot(t *testing.T) {
	snap := filepath.Join(t.TempDir(), "gallery.json")
	entries := []index.Entry{{EmployeeID: 1, Code: "E001", Name: "Alice Reyes", Vector: axisEmbedding(0)}}
	require.NoError(t, index.WriteSnapshot(snap, entries, testNow))

	// Store has no embeddings; the file supplies the gallery.
	s := seededStore(t, false)
	idx := index.New(zerolog.Nop())
	g := NewGallery(s, idx, snap, clock.NewFixed(testNow), zerolog.Nop())

	require.NoError(t, g.Hydrate(context.Background()))
	assert.Equal(t, 1, idx.Size())

	m, err := idx.Search(axisEmbedding(0))
	require.NoError(t, err)
	assert.Equal(t, "E001", m.Code)
}

func TestHydrateEmptyEverywhere(t *testing.T) {
	s := seededStore(t, false)
	idx := index.New(zerolog.Nop())
	g := NewGallery(s, idx, filepath.Join(t.TempDir(), "absent.json"), clock.NewFixed(testNow), zerolog.Nop())

	// Missing snapshot is not an error; the kiosk starts with an empty
	// gallery and waits for a pull.
	require.NoError(t, g.Hydrate(context.Background()))
	assert.Zero(t, idx.Size())
}

func TestRebuildPrefersStoreOverSnapshot(t *testing.T) {
	s := seededStore(t, true)
	idx := index.New(zerolog.Nop())
	g := NewGallery(s, idx, "", clock.NewFixed(testNow), zerolog.Nop())

	require.NoError(t, g.Rebuild(context.Background()))
	assert.Equal(t, 1, idx.Size())
}

func TestConsoleOverlayConfirmDefaultsToAllow(t *testing.T) {
	o := NewConsoleOverlay(zerolog.Nop())
	assert.True(t, o.Confirm("Early Time Out", "proceed?"))
	assert.True(t, NewOverlayConfirmer(o).Confirm("Early Time Out", "proceed?"))
}
