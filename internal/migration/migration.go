// Package migration implements the offline re-embedding migration spec §6.3
// calls for when embedding.model_id changes: rather than live dual-generation
// serving (explicitly out of scope per spec §1's "online re-embedding when
// the model changes" Non-goal), the daemon must be stopped and
// `engram reindex` run once to rebuild the vector index under the new
// model/dim and cut it over atomically.
package migration

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/types"
	"github.com/engramhq/engram/internal/vectorindex"
)

func parseID(s string) (types.ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return types.ID{}, fmt.Errorf("migration: parsing capture id %q: %w", s, err)
	}
	return id, nil
}

// Progress reports re-embedding progress to a CLI-level display (a
// progressbar.ProgressBar in cmd/engram); current/total are capture
// counts, not bytes.
type Progress func(current, total int)

// Plan re-embeds every capture that currently carries an embedding into
// dst, a freshly opened vector index, using embedder for the new
// generation. It returns the number of captures migrated. The caller is
// responsible for opening dst via vectorindex.Open with the new
// dim/model_id and for the atomic directory cutover afterward
// (datadir.Layout.CutoverVectors).
func Plan(ctx context.Context, st *store.Store, dst vectorindex.Index, embedder embedding.Embedder, batchSize int, progress Progress) (int, error) {
	if batchSize <= 0 {
		batchSize = 16
	}

	candidates, err := st.ListMatching(store.ScanFilters{})
	if err != nil {
		return 0, fmt.Errorf("migration: listing captures: %w", err)
	}

	var toMigrate []string
	for _, c := range candidates {
		if c.EmbeddingRef != nil {
			toMigrate = append(toMigrate, c.CaptureID.String())
		}
	}

	total := len(toMigrate)
	migrated := 0
	if progress != nil {
		progress(0, total)
	}

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		if err := ctx.Err(); err != nil {
			return migrated, err
		}
		if err := migrateBatch(ctx, st, dst, embedder, toMigrate[start:end]); err != nil {
			return migrated, err
		}
		migrated += end - start
		if progress != nil {
			progress(migrated, total)
		}
	}
	return migrated, nil
}

func migrateBatch(ctx context.Context, st *store.Store, dst vectorindex.Index, embedder embedding.Embedder, ids []string) error {
	texts := make([]string, 0, len(ids))
	caps := make([]string, 0, len(ids))
	for _, idStr := range ids {
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		cap, err := st.GetCapture(id)
		if err != nil {
			return fmt.Errorf("migration: loading capture %s: %w", idStr, err)
		}
		texts = append(texts, cap.Text)
		caps = append(caps, idStr)
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("migration: re-embedding batch: %w", err)
	}

	for i, idStr := range caps {
		id, err := parseID(idStr)
		if err != nil {
			return err
		}
		vid, err := dst.Insert(vectors[i])
		if err != nil {
			return fmt.Errorf("migration: inserting vector for %s: %w", idStr, err)
		}
		if err := st.Reembed(id, vid, embedder.Dim(), embedder.ModelID()); err != nil {
			return fmt.Errorf("migration: rebinding %s: %w", idStr, err)
		}
	}
	return nil
}
