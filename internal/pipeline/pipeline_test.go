package pipeline

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/engramhq/engram/internal/capture"
	"github.com/engramhq/engram/internal/committer"
	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/dedup"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/safety"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/testutil"
	"github.com/engramhq/engram/internal/types"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, func()) {
	t.Helper()
	st := testutil.NewTestStore(t)
	inner := testutil.NewTestEmbedder(8)
	idx := testutil.NewTestVectorIndex(t, inner.Dim(), inner.ModelID())
	evBus := testutil.NewTestBus()
	ctr := committer.New(st, idx, evBus, inner, nil)

	gate := safety.New(config.SafetyConfig{RedactPII: true, LuhnRequired: true, KindsEnabled: []string{"email", "credit_card", "ssn", "phone"}})
	exact := dedup.NewExactFilter(st, 60*time.Second)
	near, err := dedup.NewNearFilter(32, 0.95)
	if err != nil {
		t.Fatalf("NewNearFilter: %v", err)
	}
	batched := embedding.NewBatchingEmbedder(inner, 4, 20*time.Millisecond)

	cfg := func() config.PipelineConfig {
		return config.PipelineConfig{QueueCapacity: 8, BatchMax: 4, BatchTimeoutMs: 20}
	}

	q := NewQueue(cfg().QueueCapacity, evBus)
	p := New(q, gate, exact, near, batched, ctr, evBus, cfg, nil)

	return p, st, func() { batched.Close() }
}

func waitPersisted(t *testing.T, st *store.Store, id types.ID) *types.Capture {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c, err := st.GetCapture(id); err == nil {
			return c
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("capture %s was never persisted", id)
	return nil
}

func TestPipeline_AcceptedDraftIsPersisted(t *testing.T) {
	p, st, closeFn := newTestPipeline(t)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	result := p.Push(capture.Draft{
		Kind:       types.KindIngestedText,
		CapturedAt: time.Now(),
		SourceApp:  "test",
		Text:       "a note about quarterly planning",
	}, time.Now().Add(time.Second))

	if result.Status != capture.StatusAccepted {
		t.Fatalf("expected accepted, got %+v", result)
	}

	cap := waitPersisted(t, st, result.ID)
	if cap.Text != "a note about quarterly planning" {
		t.Fatalf("unexpected persisted text: %q", cap.Text)
	}

	cancel()
	<-done
}

func TestPipeline_ExactDuplicateIsDropped(t *testing.T) {
	p, st, closeFn := newTestPipeline(t)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	draft := capture.Draft{
		Kind:       types.KindIngestedText,
		CapturedAt: time.Now(),
		SourceApp:  "test",
		Text:       "the exact same text twice",
	}

	first := p.Push(draft, time.Now().Add(time.Second))
	waitPersisted(t, st, first.ID)

	second := p.Push(draft, time.Now().Add(time.Second))
	time.Sleep(100 * time.Millisecond)

	if _, err := st.GetCapture(second.ID); err == nil {
		t.Fatalf("expected exact-duplicate draft to never be persisted")
	}

	cancel()
	<-done
}

func TestHashText_CanonicalizesBeforeHashing(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"Meeting with Alice", "meeting with alice"},
		{"meeting  with   alice", "meeting with alice"},
		{"  meeting with alice  ", "meeting with alice"},
	}
	for _, c := range cases {
		if hashText(c.a) != hashText(c.b) {
			t.Errorf("hashText(%q) != hashText(%q), expected canonicalized equality", c.a, c.b)
		}
	}

	if hashText("meeting with alice") == hashText("meeting with bob") {
		t.Error("hashText collapsed two distinct texts to the same hash")
	}
}

func TestPipeline_CaseAndWhitespaceVariantIsExactDuplicate(t *testing.T) {
	p, st, closeFn := newTestPipeline(t)
	defer closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	first := p.Push(capture.Draft{
		Kind:       types.KindIngestedText,
		CapturedAt: time.Now(),
		SourceApp:  "test",
		Text:       "Meeting with Alice at 3pm",
	}, time.Now().Add(time.Second))
	waitPersisted(t, st, first.ID)

	second := p.Push(capture.Draft{
		Kind:       types.KindIngestedText,
		CapturedAt: time.Now(),
		SourceApp:  "test",
		Text:       "meeting  with alice at 3pm",
	}, time.Now().Add(time.Second))
	time.Sleep(100 * time.Millisecond)

	if _, err := st.GetCapture(second.ID); err == nil {
		t.Fatalf("expected case/whitespace variant to be suppressed as an exact duplicate")
	}

	cancel()
	<-done
}

func TestPipeline_RecordsIngestAndDropMetrics(t *testing.T) {
	st := testutil.NewTestStore(t)
	inner := testutil.NewTestEmbedder(8)
	idx := testutil.NewTestVectorIndex(t, inner.Dim(), inner.ModelID())
	evBus := testutil.NewTestBus()
	collector := metrics.NewCollector()
	ctr := committer.New(st, idx, evBus, inner, collector)

	gate := safety.New(config.SafetyConfig{RedactPII: true, LuhnRequired: true, KindsEnabled: []string{"email", "credit_card", "ssn", "phone"}})
	exact := dedup.NewExactFilter(st, 60*time.Second)
	near, err := dedup.NewNearFilter(32, 0.95)
	if err != nil {
		t.Fatalf("NewNearFilter: %v", err)
	}
	batched := embedding.NewBatchingEmbedder(inner, 4, 20*time.Millisecond)
	defer batched.Close()

	cfg := func() config.PipelineConfig {
		return config.PipelineConfig{QueueCapacity: 8, BatchMax: 4, BatchTimeoutMs: 20}
	}
	q := NewQueue(cfg().QueueCapacity, evBus)
	p := New(q, gate, exact, near, batched, ctr, evBus, cfg, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	draft := capture.Draft{
		Kind:       types.KindIngestedText,
		CapturedAt: time.Now(),
		SourceApp:  "test",
		Text:       "metrics should move when a capture is committed",
	}
	first := p.Push(draft, time.Now().Add(time.Second))
	waitPersisted(t, st, first.ID)
	p.Push(draft, time.Now().Add(time.Second))
	time.Sleep(100 * time.Millisecond)

	cancel()
	<-done

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `engram_captures_ingested_total{kind="ingested_text"} 1`) {
		t.Errorf("expected ingested counter to have moved, got:\n%s", body)
	}
	if !strings.Contains(body, `engram_captures_dropped_total{kind="ingested_text",reason="exact_dup"} 1`) {
		t.Errorf("expected dropped counter to have moved, got:\n%s", body)
	}
	if !strings.Contains(body, "engram_embed_latency_seconds_count 1") {
		t.Errorf("expected embed latency histogram to have one observation, got:\n%s", body)
	}
	if !strings.Contains(body, "engram_commit_latency_seconds_count 1") {
		t.Errorf("expected commit latency histogram to have one observation, got:\n%s", body)
	}
}

func TestQueue_FullLaneReturnsBackpressure(t *testing.T) {
	q := NewQueue(1, nil)
	draft := capture.Draft{Kind: types.KindIngestedText, CapturedAt: time.Now(), Text: "x"}

	if r := q.Push(draft, time.Now().Add(time.Second)); r.Status != capture.StatusAccepted {
		t.Fatalf("expected first push accepted, got %+v", r)
	}
	r := q.Push(draft, time.Now().Add(time.Second))
	if r.Status != capture.StatusBackpressure {
		t.Fatalf("expected backpressure on full lane, got %+v", r)
	}
}
