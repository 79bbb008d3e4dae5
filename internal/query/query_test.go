package query

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/engramhq/engram/internal/committer"
	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/testutil"
	"github.com/engramhq/engram/internal/types"
)

func newPlanner(t *testing.T, weight, tau float64) (*Planner, *committer.Committer, func(text string) *types.Capture) {
	t.Helper()
	st := testutil.NewTestStore(t)
	embedder := testutil.NewTestEmbedder(8)
	idx := testutil.NewTestVectorIndex(t, embedder.Dim(), embedder.ModelID())
	evBus := testutil.NewTestBus()
	ctr := committer.New(st, idx, evBus, embedder, nil)

	cfg := func() config.SearchConfig {
		return config.SearchConfig{SemanticWeight: weight, FTSNormalizerTau: tau}
	}
	p := New(st, idx, embedder, cfg, nil)

	insert := func(text string) *types.Capture {
		cap := testutil.NewCapture(text)
		vecs, err := embedder.EmbedBatch(context.Background(), []string{text})
		if err != nil {
			t.Fatalf("EmbedBatch: %v", err)
		}
		if err := ctr.Commit(context.Background(), cap, vecs[0]); err != nil {
			t.Fatalf("Commit: %v", err)
		}
		return cap
	}

	return p, ctr, insert
}

func TestSearch_RawFTS_FindsKeywordMatch(t *testing.T) {
	p, _, insert := newPlanner(t, 0.7, 5)
	insert("the quick brown fox jumps over the lazy dog")
	insert("an unrelated sentence about weather")

	results, err := p.Search(context.Background(), ModeRawFTS, "fox", Filters{}, 10, 0, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results.Hits))
	}
}

func TestSearch_Semantic_FindsSelfMatch(t *testing.T) {
	p, _, insert := newPlanner(t, 0.7, 5)
	cap := insert("meeting notes about quarterly planning")
	insert("a completely different topic involving gardening")

	results, err := p.Search(context.Background(), ModeSemantic, cap.Text, Filters{}, 10, 0, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Hits) == 0 || results.Hits[0].Capture.ID != cap.ID {
		t.Fatalf("expected %s to rank first, got %+v", cap.ID, results.Hits)
	}
}

func TestSearch_Hybrid_AppliesContentTypeFilter(t *testing.T) {
	p, _, insert := newPlanner(t, 0.7, 5)
	insert("apple pie recipe with cinnamon")
	filtered := Filters{ContentType: types.KindAudioTranscript}

	results, err := p.Search(context.Background(), ModeHybrid, "apple pie", filtered, 10, 0, time.Time{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results.Hits) != 0 {
		t.Fatalf("expected content_type filter to exclude all ingested_text captures, got %d hits", len(results.Hits))
	}
}

func TestSearch_RecordsQueryLatencyMetric(t *testing.T) {
	st := testutil.NewTestStore(t)
	embedder := testutil.NewTestEmbedder(8)
	idx := testutil.NewTestVectorIndex(t, embedder.Dim(), embedder.ModelID())
	evBus := testutil.NewTestBus()
	ctr := committer.New(st, idx, evBus, embedder, nil)
	collector := metrics.NewCollector()

	cfg := func() config.SearchConfig {
		return config.SearchConfig{SemanticWeight: 0.7, FTSNormalizerTau: 5}
	}
	p := New(st, idx, embedder, cfg, collector)

	cap := testutil.NewCapture("a note searched to verify latency is recorded")
	vecs, err := embedder.EmbedBatch(context.Background(), []string{cap.Text})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if err := ctr.Commit(context.Background(), cap, vecs[0]); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, err := p.Search(context.Background(), ModeRawFTS, "latency", Filters{}, 10, 0, time.Time{}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `engram_query_latency_seconds_count{mode="raw_fts"} 1`) {
		t.Errorf("expected query latency histogram to have one observation for mode raw_fts, got:\n%s", body)
	}
}

func TestPurge_DryRunDoesNotDelete(t *testing.T) {
	p, _, insert := newPlanner(t, 0.7, 5)
	insert("will it survive a dry run purge")

	result, err := p.Purge(Filters{}, true)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if result.Matched != 1 || result.Deleted != 0 {
		t.Fatalf("expected dry run to match 1 and delete 0, got %+v", result)
	}

	stats, err := p.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("expected dry run to leave the row in place, got total=%d", stats.Total)
	}
}

func TestPurge_DeletesMatchingCaptures(t *testing.T) {
	p, _, insert := newPlanner(t, 0.7, 5)
	insert("ephemeral note to be purged")

	result, err := p.Purge(Filters{}, false)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deletion, got %+v", result)
	}

	stats, err := p.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 {
		t.Fatalf("expected store to be empty after purge, got total=%d", stats.Total)
	}
}
