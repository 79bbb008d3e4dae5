// Package pipeline wires the Intake Queue, Safety Gate, Dedup Filter,
// Embedder, and Dual-Write Committer into the single ingestion path
// described in spec §4.1–§4.5: a Capture Source pushes a draft in, and
// it either ends up durably committed or dropped with a reason.
package pipeline

import (
	"context"
	"time"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/capture"
	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

// kinds enumerates every source kind the queue pre-allocates a lane for;
// it is the complete set from internal/types, so a draft's Kind always
// resolves to one of these.
var kinds = []types.Kind{
	types.KindScreenOCR,
	types.KindAudioTranscript,
	types.KindDictation,
	types.KindIngestedText,
}

// queuedDraft pairs a draft with the id assigned to it at enqueue time
// (so Push can report it to the caller) and the time it arrived (so
// NextBatch can bound its own wait by accumulated queue time, not just
// batch size).
type queuedDraft struct {
	id         types.ID
	draft      capture.Draft
	enqueuedAt time.Time
}

// DroppedEvent is the payload of a bus.KindCaptureDropped event,
// published by every pipeline stage that can reject a draft.
type DroppedEvent struct {
	Kind   types.Kind
	Reason ekind.DropReason
	Of     types.ID // the prior capture a duplicate matched, when applicable
}

// Queue is the bounded Intake Queue (spec §4.1): one fixed-capacity
// channel per source kind, so a burst on one kind can neither starve nor
// backpressure another. Capacity is the same for every lane, matching
// the single pipeline.queue_capacity config knob.
type Queue struct {
	lanes map[types.Kind]chan queuedDraft
	bus   *bus.Bus
}

// NewQueue returns a Queue with one lane per source kind, each buffered
// to capacity drafts.
func NewQueue(capacity int, evBus *bus.Bus) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &Queue{lanes: make(map[types.Kind]chan queuedDraft, len(kinds)), bus: evBus}
	for _, k := range kinds {
		q.lanes[k] = make(chan queuedDraft, capacity)
	}
	return q
}

// Push implements capture.Source. It never blocks: a full lane reports
// Backpressure immediately, exactly as spec §4.1's "TryEnqueue →
// Dropped{reason=full}" (rather than waiting out the deadline), leaving
// the deadline to bound how long a caller spends retrying Push itself.
func (q *Queue) Push(draft capture.Draft, deadline time.Time) capture.Result {
	ch, ok := q.lanes[draft.Kind]
	if !ok {
		return capture.Dropped(ekind.ReasonSafetyError)
	}

	id := types.NewID()
	select {
	case ch <- queuedDraft{id: id, draft: draft, enqueuedAt: time.Now()}:
		return capture.Accepted(id)
	default:
		if q.bus != nil {
			q.bus.Publish(bus.KindCaptureDropped, DroppedEvent{Kind: draft.Kind, Reason: ekind.ReasonFull})
		}
		return capture.Backpressure(100)
	}
}

// nextBatch blocks until at least one draft is waiting on kind's lane,
// then keeps collecting up to batchMax drafts or until batchTimeout has
// elapsed since the first one arrived, whichever comes first — the
// "batches of up to B drafts or at most T milliseconds" rule of spec
// §4.1. A batchTimeout of 0 returns as soon as a single draft is ready.
func (q *Queue) nextBatch(ctx context.Context, kind types.Kind, batchMax int, batchTimeout time.Duration) ([]queuedDraft, error) {
	ch := q.lanes[kind]
	if batchMax <= 0 {
		batchMax = 1
	}

	var first queuedDraft
	select {
	case first = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	batch := []queuedDraft{first}
	if batchTimeout <= 0 || batchMax == 1 {
		return batch, nil
	}

	// The wait counts from when the first draft was enqueued, so time it
	// already spent in the lane is not waited again.
	remaining := batchTimeout - time.Since(first.enqueuedAt)
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	for len(batch) < batchMax {
		select {
		case d := <-ch:
			batch = append(batch, d)
		case <-timer.C:
			return batch, nil
		case <-ctx.Done():
			return batch, nil
		}
	}
	return batch, nil
}
