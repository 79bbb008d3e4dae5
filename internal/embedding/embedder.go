// Package embedding turns admitted capture text into dim-dimensional
// unit vectors (spec §4.4). It defines the pluggable Embedder contract,
// a deterministic embedder usable without a real model for tests and
// local development, and a batching wrapper that groups concurrent
// Embed calls using github.com/joeycumines/go-microbatch the same way
// the spec requires: batch up to a configurable size, flush after a
// configurable interval, whichever comes first.
package embedding

import "context"

// Embedder turns text into unit-norm vectors. Every vector returned by
// one EmbedBatch call shares the same dim and model id; a batch either
// wholly succeeds or wholly fails; order is preserved.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	ModelID() string
}

// Generation identifies one embedding model version bound to a fixed
// dimensionality. A model id change always starts a new generation;
// vectors from different generations are never comparable (spec §4.4,
// §4.7 VectorEntry.model_id).
type Generation struct {
	ID      int64
	ModelID string
	Dim     int
}
