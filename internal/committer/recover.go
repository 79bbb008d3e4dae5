package committer

import (
	"context"
	"fmt"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/types"
)

// Recover scans every orphan intent row left by a process that crashed
// between Step A and Step C, and resolves each one, per spec §4.5:
//
//   - If the vector index already has a live entry at the reserved vid,
//     Step B completed before the crash; only Step C (the confirm) is
//     replayed.
//   - Otherwise Step B never ran. Recover re-embeds the capture's text
//     and redoes Steps B and C, unless the embedder is unavailable or
//     fails, in which case the intent row is simply discarded, leaving
//     the capture's embedding_ref null — the first branch of the §3
//     invariant.
//
// Recover must run to completion before the pipeline starts accepting new
// drafts, since a live intent row for a capture_id would otherwise block
// a fresh Step A insert (the unique constraint on intents.capture_id).
func (c *Committer) Recover(ctx context.Context) (resolved int, err error) {
	pendings, err := c.store.ListPendingIntents()
	if err != nil {
		return 0, fmt.Errorf("committer: recover: list pending intents: %w", err)
	}

	for _, p := range pendings {
		if c.index.Has(p.VID) {
			if err := c.store.ConfirmCaptureStepC(p.CaptureID, p.VID, p.Dim, p.ModelID); err != nil {
				return resolved, fmt.Errorf("committer: recover: finalize %s: %w", p.CaptureID, err)
			}
			c.publishOrphan(p.CaptureID, resolutionFinalized)
			resolved++
			continue
		}

		resolution := resolutionNull
		cap, getErr := c.store.GetCapture(p.CaptureID)
		if getErr == nil && c.embedder != nil {
			vectors, embedErr := c.embedder.EmbedBatch(ctx, []string{cap.Text})
			if embedErr == nil && len(vectors) == 1 {
				if err := c.index.InsertAt(p.VID, vectors[0]); err == nil {
					if err := c.store.ConfirmCaptureStepC(p.CaptureID, p.VID, p.Dim, p.ModelID); err == nil {
						resolution = resolutionReembed
					}
				}
			}
		}

		if resolution == resolutionNull {
			if err := c.store.DeleteIntent(p.CaptureID); err != nil {
				return resolved, fmt.Errorf("committer: recover: discard intent %s: %w", p.CaptureID, err)
			}
		}
		c.publishOrphan(p.CaptureID, resolution)
		resolved++
	}

	return resolved, nil
}

func (c *Committer) publishOrphan(id types.ID, resolution string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(bus.KindCaptureIntentOrphan, OrphanEvent{ID: id, Resolution: resolution})
}
