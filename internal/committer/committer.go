// Package committer implements the Dual-Write Committer (spec §4.5): the
// write-ahead intent protocol that keeps the record store and the vector
// index in lock-step without a shared transaction. The record store is
// the source of truth; the vector index is a rebuildable derivative.
package committer

import (
	"context"
	"fmt"
	"time"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/types"
	"github.com/engramhq/engram/internal/vectorindex"
)

// PersistedEvent is the payload of a bus.KindCapturePersisted event.
type PersistedEvent struct {
	ID types.ID
}

// OrphanEvent is the payload of a bus.KindCaptureIntentOrphan event,
// published once per intent row the startup recovery scan resolves.
type OrphanEvent struct {
	ID         types.ID
	Resolution string // "finalized", "re-embedded", or "null"
}

const (
	resolutionFinalized = "finalized"
	resolutionReembed   = "re-embedded"
	resolutionNull      = "null"
)

// Committer owns Steps A/B/C of the dual-write protocol and the startup
// orphan-intent recovery scan. The embedder's current generation (Dim,
// ModelID) is what every Step A/C call binds new rows to; Commit never
// re-embeds, but Recover may, for captures whose Step B never happened.
type Committer struct {
	store    *store.Store
	index    vectorindex.Index
	bus      *bus.Bus
	embedder embedding.Embedder
	metrics  *metrics.Collector
}

// New returns a Committer writing captures to st and vectors to idx,
// publishing lifecycle events on evBus. embedder supplies the current
// generation's dim/model_id and is used by Recover to re-embed captures
// whose Step B never completed. collector may be nil.
func New(st *store.Store, idx vectorindex.Index, evBus *bus.Bus, embedder embedding.Embedder, collector *metrics.Collector) *Committer {
	return &Committer{store: st, index: idx, bus: evBus, embedder: embedder, metrics: collector}
}

// Commit runs Steps A, B, and C for a single admitted, embedded capture.
// vector must already be unit-norm and of the current generation's
// dimensionality; the caller (the pipeline's commit stage) is responsible
// for having produced it via the Embedder.
//
// If Step B or Step C fails, the capture and its intent row are rolled
// back entirely rather than left half-committed: a capture either ends up
// fully persisted with its embedding, or not persisted at all. This is
// stricter than the crash-recovery path (§4.5's third outcome, "mark
// embedding_ref = null"), which only applies to failures discovered after
// an actual process restart, not to synchronous commit-time errors the
// pipeline can simply surface as a drop.
func (c *Committer) Commit(ctx context.Context, cap *types.Capture, vector []float32) error {
	start := time.Now()
	if c.metrics != nil {
		defer func() { c.metrics.ObserveCommitLatency(time.Since(start)) }()
	}

	dim, modelID := c.embedder.Dim(), c.embedder.ModelID()

	if err := c.store.InsertCaptureStepA(cap, dim, modelID); err != nil {
		return fmt.Errorf("committer: step a: %w", err)
	}

	pending, err := c.store.GetPendingIntent(cap.ID)
	if err != nil {
		_ = c.store.DeleteCapture(cap.ID)
		return fmt.Errorf("committer: read back intent: %w", err)
	}

	if err := c.index.InsertAt(pending.VID, vector); err != nil {
		_ = c.store.DeleteCapture(cap.ID)
		return fmt.Errorf("committer: step b: %w", err)
	}

	if err := c.store.ConfirmCaptureStepC(cap.ID, pending.VID, dim, modelID); err != nil {
		_ = c.index.Delete(pending.VID)
		_ = c.store.DeleteCapture(cap.ID)
		return fmt.Errorf("committer: step c: %w", err)
	}

	if c.bus != nil {
		c.bus.Publish(bus.KindCapturePersisted, PersistedEvent{ID: cap.ID})
	}
	return nil
}
