// Package capture defines the inbound Capture Source contract (spec
// §6.1): the narrow interface external collaborators (screen-grab
// drivers, OCR engines, audio capture, dictation) use to push drafts
// into the engine without depending on the pipeline's internals.
package capture

import (
	"time"

	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

// Draft is a pre-safety, pre-persistence record offered by a source.
// SourceApp and OriginMetadata are optional.
type Draft struct {
	Kind           types.Kind
	CapturedAt     time.Time
	SourceApp      string
	Text           string
	OriginMetadata map[string]any
}

// Status classifies a Push outcome.
type Status string

const (
	StatusAccepted     Status = "accepted"
	StatusDropped      Status = "dropped"
	StatusBackpressure Status = "backpressure"
)

// Result is the outcome of a single Push call. Exactly one of the
// status-specific fields is meaningful, selected by Status.
//
// Accepted does not imply persistence: a source must wait for a
// CapturePersisted event on the bus (spec §4.10) before treating a
// capture as durable.
type Result struct {
	Status       Status
	ID           types.ID
	Reason       ekind.DropReason
	RetryAfterMs int
}

// Accepted builds the result a source sees once a draft has been
// admitted to the intake queue.
func Accepted(id types.ID) Result {
	return Result{Status: StatusAccepted, ID: id}
}

// Dropped builds the result a source sees when a draft is rejected
// outright (never entered, or entered then discarded, the pipeline).
func Dropped(reason ekind.DropReason) Result {
	return Result{Status: StatusDropped, Reason: reason}
}

// Backpressure builds the result a source sees when the intake queue is
// full; the source should retry after the given delay rather than
// block indefinitely.
func Backpressure(retryAfterMs int) Result {
	return Result{Status: StatusBackpressure, RetryAfterMs: retryAfterMs}
}

// Source is implemented by anything the engine accepts captures from.
// Push must never block past the draft's deadline; a full queue returns
// Backpressure rather than blocking.
type Source interface {
	Push(draft Draft, deadline time.Time) Result
}
