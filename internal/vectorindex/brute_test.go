package vectorindex

import (
	"math"
	"path/filepath"
	"testing"
)

func unit(v []float32) []float32 {
	var n float64
	for _, x := range v {
		n += float64(x) * float64(x)
	}
	s := float32(1)
	if n > 0 {
		s = float32(1 / math.Sqrt(n))
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func TestOpen_CreatesManifestAndEmptyIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 4, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	if idx.Dim() != 4 {
		t.Errorf("Dim: got %d, want 4", idx.Dim())
	}
	if idx.Len() != 0 {
		t.Errorf("Len: got %d, want 0", idx.Len())
	}
}

func TestOpen_RejectsGenerationMismatch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 4, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	idx.Close()

	if _, err := Open(dir, 8, "local-v1"); err == nil {
		t.Fatal("expected error reopening with a different dim")
	}
	if _, err := Open(dir, 4, "local-v2"); err == nil {
		t.Fatal("expected error reopening with a different model id")
	}
}

func TestInsertSearch_RanksByCosineSimilarity(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	aligned := unit([]float32{1, 0})
	orthogonal := unit([]float32{0, 1})
	opposite := unit([]float32{-1, 0})

	vidA, err := idx.Insert(aligned)
	if err != nil {
		t.Fatalf("Insert aligned: %v", err)
	}
	if _, err := idx.Insert(orthogonal); err != nil {
		t.Fatalf("Insert orthogonal: %v", err)
	}
	if _, err := idx.Insert(opposite); err != nil {
		t.Fatalf("Insert opposite: %v", err)
	}

	hits, err := idx.Search(aligned, 3, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].VID != vidA {
		t.Errorf("top hit: got vid %d, want %d", hits[0].VID, vidA)
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Errorf("hits not sorted descending: %+v", hits)
	}
}

func TestSearch_AppliesFilter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	v := unit([]float32{1, 0})
	vid1, _ := idx.Insert(v)
	vid2, _ := idx.Insert(v)

	hits, err := idx.Search(v, 10, func(vid int64) bool { return vid == vid2 })
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].VID != vid2 {
		t.Fatalf("expected only vid2 to pass the filter, got %+v (vid1=%d)", hits, vid1)
	}
}

func TestDelete_RemovesFromSearchResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	v := unit([]float32{1, 0})
	vid, err := idx.Insert(v)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Delete(vid); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("Len after delete: got %d, want 0", idx.Len())
	}

	hits, err := idx.Search(v, 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits after delete, got %+v", hits)
	}

	// Deleting again is a no-op, not an error.
	if err := idx.Delete(vid); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestOpen_SurvivesRestartWithoutSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v := unit([]float32{1, 0})
	vid, err := idx.Insert(v)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 1 {
		t.Fatalf("Len after reopen: got %d, want 1", reopened.Len())
	}
	hits, err := reopened.Search(v, 1, nil)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].VID != vid {
		t.Fatalf("expected reopened index to retain vid %d, got %+v", vid, hits)
	}
}

func TestOpen_ReplaysOplogAfterSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	idx, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	v1 := unit([]float32{1, 0})
	v2 := unit([]float32{0, 1})
	if _, err := idx.Insert(v1); err != nil {
		t.Fatalf("Insert v1: %v", err)
	}

	// Force a snapshot, then write more ops that only live in the log.
	if err := idx.snapshotLocked(); err != nil {
		t.Fatalf("snapshotLocked: %v", err)
	}
	vid2, err := idx.Insert(v2)
	if err != nil {
		t.Fatalf("Insert v2: %v", err)
	}
	if err := idx.log.close(); err != nil {
		t.Fatalf("close oplog: %v", err)
	}

	reopened, err := Open(dir, 2, "local-v1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 2 {
		t.Fatalf("Len after reopen: got %d, want 2", reopened.Len())
	}
	hits, err := reopened.Search(v2, 1, nil)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 || hits[0].VID != vid2 {
		t.Fatalf("expected vid %d from op-log replay, got %+v", vid2, hits)
	}
}
