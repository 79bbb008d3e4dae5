package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"math/rand"
)

// DeterministicEmbedder maps text to a reproducible unit vector derived
// from its SHA-256 digest, with no model weights to load. It exists so
// the pipeline and query packages can be exercised end-to-end (including
// near-dup cosine checks) without a real embedding model wired in; the
// config default model id "local-v1" names this embedder.
type DeterministicEmbedder struct {
	dim     int
	modelID string
}

// NewDeterministicEmbedder returns an embedder producing dim-dimensional
// unit vectors under the given model id.
func NewDeterministicEmbedder(dim int, modelID string) *DeterministicEmbedder {
	return &DeterministicEmbedder{dim: dim, modelID: modelID}
}

func (e *DeterministicEmbedder) Dim() int        { return e.dim }
func (e *DeterministicEmbedder) ModelID() string { return e.modelID }

// EmbedBatch embeds every text independently; a single malformed entry
// cannot occur since any string hashes cleanly, so this never partially
// fails.
func (e *DeterministicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *DeterministicEmbedder) embedOne(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.LittleEndian.Uint64(sum[:8]))
	src := rand.New(rand.NewSource(seed))

	vec := make([]float32, e.dim)
	var norm float64
	for i := range vec {
		v := src.NormFloat64()
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

var _ Embedder = (*DeterministicEmbedder)(nil)
