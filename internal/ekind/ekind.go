// Package ekind defines the sentinel error taxonomy shared across the
// ingestion and retrieval engine, mirroring the error-kind table in the
// project's design notes.
package ekind

import "errors"

// Kind is a coarse classification of an error, usable with errors.Is.
// Callers wrap a Kind with additional context using fmt.Errorf("...: %w", Kind).
type Kind error

var (
	// ErrIngestRejected covers safety/dedup/deadline/queue-full rejections
	// at intake. It is never fatal to the process.
	ErrIngestRejected Kind = errors.New("ingest rejected")

	// ErrEmbeddingUnavailable indicates the embedding model is not loaded.
	// Retryable.
	ErrEmbeddingUnavailable Kind = errors.New("embedding unavailable")

	// ErrStoreBusy indicates a transient store contention error; retry with
	// jitter.
	ErrStoreBusy Kind = errors.New("store busy")

	// ErrStoreCorrupt is fatal to the affected row only; the row is
	// quarantined rather than the process crashing.
	ErrStoreCorrupt Kind = errors.New("store corrupt")

	// ErrIndexOutOfSync is resolved internally by the orphan-intent scan and
	// should never surface past the committer/recovery routine.
	ErrIndexOutOfSync Kind = errors.New("index out of sync")

	// ErrQueryTimeout indicates a query's deadline elapsed before any result
	// was produced.
	ErrQueryTimeout Kind = errors.New("query timeout")

	// ErrQueryInvalid indicates malformed query parameters.
	ErrQueryInvalid Kind = errors.New("query invalid")

	// ErrConfigInvalid indicates a configuration value failed validation.
	ErrConfigInvalid Kind = errors.New("config invalid")
)

// DropReason enumerates why a capture was not admitted, carried on
// Dropped events (§6.1 / §4.1-4.5 of the design).
type DropReason string

const (
	ReasonFull         DropReason = "full"
	ReasonExactDup     DropReason = "exact_dup"
	ReasonNearDup      DropReason = "near_dup"
	ReasonSafetyError  DropReason = "safety_error"
	ReasonDeadline     DropReason = "deadline"
	ReasonEmbedFailure DropReason = "embed_failure"
)
