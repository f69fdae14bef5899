package kiosk

import (
	"context"
	"errors"
	"io/fs"

	"github.com/rs/zerolog"

	"facekiosk/internal/index"
	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
)

// Gallery owns the embedding index lifecycle: hydration at startup and
// rebuilds when sync reports roster or gallery changes.
type Gallery struct {
	store        *store.Store
	idx          *index.Index
	snapshotPath string // empty disables the file fallback
	clk          clock.Clock
	log          zerolog.Logger
}

// NewGallery wires the gallery manager.
func NewGallery(st *store.Store, idx *index.Index, snapshotPath string, clk clock.Clock, log zerolog.Logger) *Gallery {
	return &Gallery{
		store:        st,
		idx:          idx,
		snapshotPath: snapshotPath,
		clk:          clk,
		log:          log.With().Str("component", "gallery").Logger(),
	}
}

// Hydrate fills the index at startup: from the local store when it has
// embeddings, otherwise from the snapshot file. An empty gallery is
// not an error; verification simply reports no candidates until a pull
// delivers embeddings.
func (g *Gallery) Hydrate(ctx context.Context) error {
	if err := g.Rebuild(ctx); err != nil {
		return err
	}
	if g.idx.Size() > 0 || g.snapshotPath == "" {
		return nil
	}

	entries, err := index.ReadSnapshot(g.snapshotPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		g.log.Warn().Err(err).Str("path", g.snapshotPath).Msg("snapshot unreadable, starting empty")
		return nil
	}
	if err := g.idx.Rebuild(ctx, entries); err != nil {
		g.log.Warn().Err(err).Msg("snapshot rejected, starting empty")
		return nil
	}
	g.log.Info().Int("embeddings", g.idx.Size()).Msg("gallery restored from snapshot")
	return nil
}

// Rebuild reloads the index from the local store and refreshes the
// snapshot file when anything was loaded.
func (g *Gallery) Rebuild(ctx context.Context) error {
	rows, err := g.store.ActiveEmbeddings(ctx)
	if err != nil {
		return err
	}
	entries := make([]index.Entry, len(rows))
	for i, r := range rows {
		entries[i] = index.Entry{EmployeeID: r.EmployeeID, Code: r.Code, Name: r.Name, Vector: r.Vector}
	}
	if err := g.idx.Rebuild(ctx, entries); err != nil {
		return err
	}
	if len(entries) > 0 && g.snapshotPath != "" {
		if err := index.WriteSnapshot(g.snapshotPath, entries, g.clk.Now()); err != nil {
			g.log.Warn().Err(err).Str("path", g.snapshotPath).Msg("snapshot write failed")
		}
	}
	return nil
}
