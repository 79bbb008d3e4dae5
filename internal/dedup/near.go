package dedup

import (
	"fmt"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/engramhq/engram/internal/types"
)

// nearEntry is one ring-buffer slot: a recent embedding and the capture
// it belongs to.
type nearEntry struct {
	captureID types.ID
	vector    []float32
}

// NearFilter suppresses captures whose embedding is too similar to one
// of the last N committed embeddings (spec §4.3 Level 2). It is
// deliberately built on hashicorp/golang-lru/v2 with Add-only access: as
// long as nothing ever calls Get, the cache's "least recently used"
// eviction degenerates into a plain FIFO ring of the last N insertions,
// which is exactly the bounded window the spec calls for, reusing the
// same library the teacher uses for its two-tier response cache
// (internal/cache.CacheMiddleware).
type NearFilter struct {
	mu        sync.Mutex
	ring      *lru.Cache[int64, nearEntry]
	seq       int64
	threshold float64
}

// NewNearFilter returns a filter holding up to ringSize embeddings,
// flagging a new vector as a near-duplicate once its cosine similarity
// to any ring member reaches threshold (spec default 0.95).
func NewNearFilter(ringSize int, threshold float64) (*NearFilter, error) {
	ring, err := lru.New[int64, nearEntry](ringSize)
	if err != nil {
		return nil, fmt.Errorf("dedup: new near-dup ring: %w", err)
	}
	return &NearFilter{ring: ring, threshold: threshold}, nil
}

// Check scans every embedding currently in the ring and reports the
// highest similarity found. It does not mutate the ring; callers that
// decide to commit the capture must call Record separately, since the
// spec requires embeddings of suppressed captures to never enter the
// ring (they are discarded, not recorded).
func (f *NearFilter) Check(vector []float32) (dup bool, priorID types.ID, sim float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best float64
	var bestID types.ID
	found := false
	for _, key := range f.ring.Keys() {
		entry, ok := f.ring.Peek(key)
		if !ok {
			continue
		}
		s := cosine(vector, entry.vector)
		if !found || s > best {
			best = s
			bestID = entry.captureID
			found = true
		}
	}
	if found && best >= f.threshold {
		return true, bestID, best
	}
	return false, types.ID{}, best
}

// Record appends an admitted capture's embedding to the ring, evicting
// the oldest entry once the ring is full.
func (f *NearFilter) Record(captureID types.ID, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.ring.Add(f.seq, nearEntry{captureID: captureID, vector: vector})
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
