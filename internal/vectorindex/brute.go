package vectorindex

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
)

// compactThreshold is the number of op-log records accumulated since the
// last snapshot before BruteForceIndex folds them into a fresh snapshot
// and truncates the log. Kept modest since every search already scans
// every live vector; a bloated log only slows startup replay, not
// queries.
const compactThreshold = 2000

// BruteForceIndex is a brute-force cosine-similarity ANN index: every
// search compares the query against every live vector. It trades search
// cost (linear in index size) for simplicity and exactness, matching the
// single-writer/many-reader access pattern the record store uses rather
// than the worker-pool/channel shape of its grounding reference, since
// this index's entire working set lives in memory with no external I/O
// per operation.
type BruteForceIndex struct {
	dir        string
	mu         sync.RWMutex
	dim        int
	modelID    string
	generation int64
	nextVID    int64
	seq        int64
	vectors    map[int64][]float32
	log        *oplog
	sinceSn    int
}

// Open loads (or creates) a vector index rooted at dir for the given
// dimensionality and model id. A dim/model_id mismatch against an
// existing manifest means the caller asked for a different generation
// than what's on disk; the caller (the embedder's cutover logic) is
// responsible for pointing at a fresh directory per generation.
func Open(dir string, dim int, modelID string) (*BruteForceIndex, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("vectorindex: create dir: %w", err)
	}

	m, err := loadManifest(dir)
	switch {
	case os.IsNotExist(err):
		m = &manifest{Generation: 1, ModelID: modelID, Dim: dim, NextVID: 1, SnapshotSeq: 0}
		if err := m.save(dir); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("vectorindex: load manifest: %w", err)
	default:
		if m.Dim != dim || m.ModelID != modelID {
			return nil, fmt.Errorf("vectorindex: generation mismatch: disk has dim=%d model=%q, opened with dim=%d model=%q",
				m.Dim, m.ModelID, dim, modelID)
		}
	}

	var vectors map[int64][]float32
	if m.SnapshotSeq > 0 {
		_, vectors, err = readSnapshot(dir, m.SnapshotSeq)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: load snapshot: %w", err)
		}
	} else {
		vectors = make(map[int64][]float32)
	}

	if err := replayOplog(dir, m.Dim, vectors); err != nil {
		return nil, err
	}

	l, err := openOplog(dir)
	if err != nil {
		return nil, err
	}

	return &BruteForceIndex{
		dir:        dir,
		dim:        m.Dim,
		modelID:    m.ModelID,
		generation: m.Generation,
		nextVID:    m.NextVID,
		seq:        m.SnapshotSeq,
		vectors:    vectors,
		log:        l,
	}, nil
}

func (idx *BruteForceIndex) Dim() int { return idx.dim }

func (idx *BruteForceIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Insert assigns the next vid, appends the insert to the op-log, and
// makes the vector visible to subsequent searches. vid values are never
// reused, matching the "deletes tombstone the mapping" rule in spec §4.5.
func (idx *BruteForceIndex) Insert(vector []float32) (int64, error) {
	if len(vector) != idx.dim {
		return 0, fmt.Errorf("vectorindex: insert: vector has dim %d, index expects %d", len(vector), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	vid := idx.nextVID
	if err := idx.log.appendInsert(vid, vector); err != nil {
		return 0, fmt.Errorf("vectorindex: insert: %w", err)
	}
	idx.nextVID++
	cp := make([]float32, idx.dim)
	copy(cp, vector)
	idx.vectors[vid] = cp
	idx.sinceSn++

	if err := idx.maybeCompactLocked(); err != nil {
		return 0, err
	}
	return vid, nil
}

// InsertAt stores vector under a caller-supplied vid rather than
// allocating one, used to bind a vector to the vid a record-store intent
// row already reserved. If vid falls within the range the index would
// otherwise generate itself, nextVID is advanced past it so Insert never
// hands out a colliding value later.
func (idx *BruteForceIndex) InsertAt(vid int64, vector []float32) error {
	if len(vector) != idx.dim {
		return fmt.Errorf("vectorindex: insert at: vector has dim %d, index expects %d", len(vector), idx.dim)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.log.appendInsert(vid, vector); err != nil {
		return fmt.Errorf("vectorindex: insert at: %w", err)
	}
	cp := make([]float32, idx.dim)
	copy(cp, vector)
	idx.vectors[vid] = cp
	if vid >= idx.nextVID {
		idx.nextVID = vid + 1
	}
	idx.sinceSn++

	return idx.maybeCompactLocked()
}

// Has reports whether vid currently has a live vector.
func (idx *BruteForceIndex) Has(vid int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.vectors[vid]
	return ok
}

// Delete tombstones vid. Deleting an unknown vid is a no-op.
func (idx *BruteForceIndex) Delete(vid int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.vectors[vid]; !ok {
		return nil
	}
	if err := idx.log.appendDelete(vid); err != nil {
		return fmt.Errorf("vectorindex: delete: %w", err)
	}
	delete(idx.vectors, vid)
	idx.sinceSn++
	return idx.maybeCompactLocked()
}

// Search scans every live vector, keeping those for which filter
// returns true (or all of them if filter is nil), and returns the top k
// by cosine similarity descending. Ties are broken by lower vid, giving
// a stable order for callers that apply their own secondary tie-break.
func (idx *BruteForceIndex) Search(vector []float32, k int, filter Filter) ([]Hit, error) {
	if len(vector) != idx.dim {
		return nil, fmt.Errorf("vectorindex: search: vector has dim %d, index expects %d", len(vector), idx.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]Hit, 0, len(idx.vectors))
	for vid, vec := range idx.vectors {
		if filter != nil && !filter(vid) {
			continue
		}
		hits = append(hits, Hit{VID: vid, Score: cosine(vector, vec)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].VID < hits[j].VID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close flushes a final snapshot and releases the op-log file handle.
func (idx *BruteForceIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := idx.snapshotLocked(); err != nil {
		return err
	}
	return idx.log.close()
}

func (idx *BruteForceIndex) maybeCompactLocked() error {
	if idx.sinceSn < compactThreshold {
		return nil
	}
	return idx.snapshotLocked()
}

func (idx *BruteForceIndex) snapshotLocked() error {
	seq := idx.seq + 1
	if err := writeSnapshot(idx.dir, seq, idx.dim, idx.vectors); err != nil {
		return err
	}
	if err := idx.log.truncate(); err != nil {
		return err
	}
	m := &manifest{
		Generation:  idx.generation,
		ModelID:     idx.modelID,
		Dim:         idx.dim,
		NextVID:     idx.nextVID,
		SnapshotSeq: seq,
	}
	if err := m.save(idx.dir); err != nil {
		return err
	}
	idx.seq = seq
	idx.sinceSn = 0
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
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

var _ Index = (*BruteForceIndex)(nil)
