package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/engramhq/engram/internal/bus"
	"github.com/engramhq/engram/internal/capture"
	"github.com/engramhq/engram/internal/committer"
	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/dedup"
	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/safety"
	"github.com/engramhq/engram/internal/types"
)

// Pipeline is the Capture Source's consumer: it drains the Intake Queue,
// running each draft through the Safety Gate, the two-level Dedup
// Filter, the batching Embedder, and finally the Dual-Write Committer
// (spec §4.1–§4.5). It implements capture.Source by forwarding Push to
// its Queue.
type Pipeline struct {
	queue    *Queue
	gate     *safety.Gate
	exact    *dedup.ExactFilter
	near     *dedup.NearFilter
	embedder *embedding.BatchingEmbedder
	commit   *committer.Committer
	bus      *bus.Bus
	cfg      func() config.PipelineConfig
	metrics  *metrics.Collector
}

// New wires a Pipeline's stages together. cfg is called at the start of
// every lane's batch wait so config hot-reloads (spec §6.4) take effect
// without restarting the worker. collector may be nil, in which case the
// pipeline runs without instrumentation (used by tests that don't care
// about metrics).
func New(queue *Queue, gate *safety.Gate, exact *dedup.ExactFilter, near *dedup.NearFilter, embedder *embedding.BatchingEmbedder, commit *committer.Committer, evBus *bus.Bus, cfg func() config.PipelineConfig, collector *metrics.Collector) *Pipeline {
	return &Pipeline{
		queue:    queue,
		gate:     gate,
		exact:    exact,
		near:     near,
		embedder: embedder,
		commit:   commit,
		bus:      evBus,
		cfg:      cfg,
		metrics:  collector,
	}
}

// Push implements capture.Source.
func (p *Pipeline) Push(draft capture.Draft, deadline time.Time) capture.Result {
	return p.queue.Push(draft, deadline)
}

// Run starts one worker per source kind and blocks until ctx is
// cancelled, matching the teacher's daemon.Run goroutine-group shape
// (internal/daemon/daemon.go's prune/purge workers): each worker keeps
// running across individual draft failures, recovering from panics
// rather than taking the whole pipeline down with it.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, k := range kinds {
		wg.Add(1)
		go func(kind types.Kind) {
			defer wg.Done()
			p.runLane(ctx, kind)
		}(k)
	}
	wg.Wait()
	return ctx.Err()
}

// Close stops accepting new embedding work and waits for any in-flight
// batch to finish.
func (p *Pipeline) Close() error {
	return p.embedder.Close()
}

func (p *Pipeline) runLane(ctx context.Context, kind types.Kind) {
	for ctx.Err() == nil {
		cfg := p.cfg()
		batch, err := p.queue.nextBatch(ctx, kind, cfg.BatchMax, time.Duration(cfg.BatchTimeoutMs)*time.Millisecond)
		for _, qd := range batch {
			p.processOne(ctx, qd)
		}
		if err != nil && len(batch) == 0 {
			return
		}
	}
}

// processOne runs a single draft through every stage, recovering from
// any stage panic so one bad draft never takes its lane's worker down.
func (p *Pipeline) processOne(ctx context.Context, qd queuedDraft) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("kind", string(qd.draft.Kind)).Msg("pipeline: recovered from panic processing draft")
			p.drop(qd.draft.Kind, ekind.ReasonSafetyError, types.ID{})
		}
	}()

	redacted, flags, err := p.gate.Redact(qd.draft.Text)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(qd.draft.Kind)).Msg("pipeline: safety gate error")
		p.drop(qd.draft.Kind, ekind.ReasonSafetyError, types.ID{})
		return
	}

	hash := hashText(redacted)
	dup, priorID, err := p.exact.Check(hash, qd.draft.Kind, qd.draft.SourceApp, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("pipeline: exact dedup check failed")
		return
	}
	if dup {
		p.drop(qd.draft.Kind, ekind.ReasonExactDup, priorID)
		return
	}

	embedStart := time.Now()
	vector, err := p.embedder.Embed(ctx, redacted)
	if p.metrics != nil {
		p.metrics.ObserveEmbedLatency(time.Since(embedStart))
	}
	if err != nil {
		log.Warn().Err(err).Msg("pipeline: embedding failed")
		p.drop(qd.draft.Kind, ekind.ReasonEmbedFailure, types.ID{})
		return
	}

	if p.near != nil {
		if nearDup, priorID, _ := p.near.Check(vector); nearDup {
			p.drop(qd.draft.Kind, ekind.ReasonNearDup, priorID)
			return
		}
	}

	cap := &types.Capture{
		ID:             qd.id,
		Kind:           qd.draft.Kind,
		CapturedAt:     qd.draft.CapturedAt,
		SourceApp:      qd.draft.SourceApp,
		Text:           redacted,
		TextHash:       hash,
		Tier:           types.TierHot,
		PIIFlags:       flags,
		LengthChars:    len([]rune(redacted)),
		OriginMetadata: qd.draft.OriginMetadata,
	}

	if err := p.commit.Commit(ctx, cap, vector); err != nil {
		log.Error().Err(err).Str("capture_id", qd.id.String()).Msg("pipeline: commit failed")
		return
	}
	if p.near != nil {
		p.near.Record(cap.ID, vector)
	}
	if p.metrics != nil {
		p.metrics.RecordIngested(cap.Kind)
	}
}

func (p *Pipeline) drop(kind types.Kind, reason ekind.DropReason, of types.ID) {
	if p.metrics != nil {
		p.metrics.RecordDropped(kind, reason)
	}
	if p.bus == nil {
		return
	}
	p.bus.Publish(bus.KindCaptureDropped, DroppedEvent{Kind: kind, Reason: reason, Of: of})
}

// hashText fingerprints a capture's (post-redaction) text for the exact
// dedup filter's text_hash column. spec.md §3 defines text_hash over the
// canonicalized text (NFC-normalized, lowercased, whitespace-collapsed),
// so two captures that differ only in case or incidental spacing still
// collide in the exact-dedup check. spec.md calls for BLAKE3; no BLAKE3
// package appears anywhere in the retrieval pack, so this uses stdlib
// sha256 instead (see DESIGN.md).
func hashText(text string) string {
	sum := sha256.Sum256([]byte(canonicalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// canonicalizeText applies spec.md §3's text_hash canonicalization: NFC
// normalization, lowercasing, then collapsing runs of whitespace (and
// trimming leading/trailing whitespace) to a single space.
func canonicalizeText(text string) string {
	normalized := norm.NFC.String(text)
	lowered := strings.ToLower(normalized)
	return strings.Join(strings.Fields(lowered), " ")
}
