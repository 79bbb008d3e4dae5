package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/types"
	"github.com/engramhq/engram/internal/vectorindex"
)

// NewCapture returns a ready-to-insert capture fixture with the given
// text; every other field is a reasonable default a test can override.
func NewCapture(text string) *types.Capture {
	return &types.Capture{
		ID:          types.NewID(),
		Kind:        types.KindIngestedText,
		CapturedAt:  time.Now().UTC(),
		SourceApp:   "test",
		Text:        text,
		TextHash:    "hash-" + text,
		Tier:        types.TierHot,
		LengthChars: len(text),
	}
}

// NewTestVectorIndex opens a brute-force vector index rooted in a fresh
// temp directory, closed automatically at test cleanup.
func NewTestVectorIndex(t *testing.T, dim int, modelID string) *vectorindex.BruteForceIndex {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "vectors")
	idx, err := vectorindex.Open(dir, dim, modelID)
	if err != nil {
		t.Fatalf("failed to open test vector index: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

// NewTestBus returns a fresh event bus. It has no buffer of its own; each
// test picks its subscriber buffer depth when it calls Subscribe.
func NewTestBus() *bus.Bus {
	return bus.New()
}

// NewTestEmbedder returns a deterministic embedder of the given
// dimensionality, suitable for tests that need stable, repeatable
// vectors without a real model.
func NewTestEmbedder(dim int) embedding.Embedder {
	return embedding.NewDeterministicEmbedder(dim, "test-v1")
}
