package store

import (
	"testing"
	"time"

	"github.com/engramhq/engram/internal/types"
)

func newTestCapture(text string) *types.Capture {
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

func TestInsertCaptureStepA_CreatesIntentAndFTSRow(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("the quick brown fox")

	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}

	got, err := st.GetCapture(c.ID)
	if err != nil {
		t.Fatalf("GetCapture: %v", err)
	}
	if got.HasEmbedding() {
		t.Error("capture should not have an embedding ref right after Step A")
	}

	pending, err := st.ListPendingIntents()
	if err != nil {
		t.Fatalf("ListPendingIntents: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending intent, got %d", len(pending))
	}
	if pending[0].CaptureID != c.ID {
		t.Errorf("pending intent capture id mismatch: got %s want %s", pending[0].CaptureID, c.ID)
	}

	hits, err := st.SearchFTS("quick fox", 10)
	if err != nil {
		t.Fatalf("SearchFTS: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 FTS hit, got %d", len(hits))
	}
}

func TestConfirmCaptureStepC_ClearsIntentSetsEmbeddingRef(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("an example capture")

	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}
	pending, err := st.ListPendingIntents()
	if err != nil {
		t.Fatalf("ListPendingIntents: %v", err)
	}
	vid := pending[0].VID

	if err := st.ConfirmCaptureStepC(c.ID, vid, 8, "local-v1"); err != nil {
		t.Fatalf("ConfirmCaptureStepC: %v", err)
	}

	pending, err = st.ListPendingIntents()
	if err != nil {
		t.Fatalf("ListPendingIntents after confirm: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending intents after confirm, got %d", len(pending))
	}

	got, err := st.GetCapture(c.ID)
	if err != nil {
		t.Fatalf("GetCapture: %v", err)
	}
	if !got.HasEmbedding() || *got.EmbeddingRef != vid {
		t.Errorf("expected embedding_ref %d, got %v", vid, got.EmbeddingRef)
	}
}

func TestConfirmCaptureStepC_RejectsMismatchedVID(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("mismatched vid test")

	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}

	if err := st.ConfirmCaptureStepC(c.ID, 9999, 8, "local-v1"); err == nil {
		t.Fatal("expected error confirming with wrong vid")
	}
}

func TestFindByTextHash_RespectsWindow(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("duplicate candidate")
	c.TextHash = "shared-hash"
	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}

	matches, err := st.FindByTextHash("shared-hash", types.KindIngestedText, "test", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindByTextHash: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match within window, got %d", len(matches))
	}

	matches, err = st.FindByTextHash("shared-hash", types.KindIngestedText, "test", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("FindByTextHash (future window): %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected 0 matches for a window starting in the future, got %d", len(matches))
	}

	matches, err = st.FindByTextHash("shared-hash", types.KindAudioTranscript, "test", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindByTextHash (different kind): %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected 0 matches for a different kind sharing the same text_hash, got %d", len(matches))
	}

	matches, err = st.FindByTextHash("shared-hash", types.KindIngestedText, "other-app", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("FindByTextHash (different source_app): %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected 0 matches for a different source_app sharing the same text_hash, got %d", len(matches))
	}
}

func TestDeleteCapture_RemovesRowAndFTSEntry(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("to be deleted")
	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}

	if err := st.DeleteCapture(c.ID); err != nil {
		t.Fatalf("DeleteCapture: %v", err)
	}

	if _, err := st.GetCapture(c.ID); err == nil {
		t.Fatal("expected error fetching deleted capture")
	}

	hits, err := st.SearchFTS("deleted", 10)
	if err != nil {
		t.Fatalf("SearchFTS: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no FTS hits after delete, got %d", len(hits))
	}
}

func TestSearchFTS_SanitizesInjectionAttempt(t *testing.T) {
	st := openTestStore(t)
	c := newTestCapture("safe content about widgets")
	if err := st.InsertCaptureStepA(c, 8, "local-v1"); err != nil {
		t.Fatalf("InsertCaptureStepA: %v", err)
	}

	// An attempt to use FTS5 query syntax should be treated as literal text,
	// not as a malformed or unexpectedly broad query.
	if _, err := st.SearchFTS(`widgets OR *`, 10); err != nil {
		t.Fatalf("SearchFTS with query-syntax-looking input: %v", err)
	}
}
