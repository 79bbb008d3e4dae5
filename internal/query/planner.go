package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/config"
	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/embedding"
	"github.com/engramhq/engram/internal/metrics"
	"github.com/engramhq/engram/internal/store"
	"github.com/engramhq/engram/internal/types"
	"github.com/engramhq/engram/internal/vectorindex"
)

// overFetchFactor widens the raw FTS/semantic candidate sets beyond
// limit+offset before filters and blending are applied, so a page near
// the end of a filtered result set isn't starved by an under-sized
// pre-filter fetch. It's a fixed constant rather than a config knob since
// nothing in spec.md exposes it as tunable.
const overFetchFactor = 4

// Planner implements search, recent, get, stats, and purge against a
// Record Store and a Vector Index, blending their results per the four
// modes in spec §4.8.
type Planner struct {
	store    *store.Store
	index    vectorindex.Index
	embedder embedding.Embedder
	cfg      func() config.SearchConfig
	metrics  *metrics.Collector
}

// New returns a Planner. cfg is called on every Search so config
// hot-reloads (spec §6.4) take effect without restarting the planner.
// collector may be nil.
func New(st *store.Store, idx vectorindex.Index, embedder embedding.Embedder, cfg func() config.SearchConfig, collector *metrics.Collector) *Planner {
	return &Planner{store: st, index: idx, embedder: embedder, cfg: cfg, metrics: collector}
}

// Search runs one of the four query modes and returns ranked, paged,
// filtered results. Paging is offset-based; a consistent read of the
// record store is approximated by issuing every sub-query against the
// store's reader pool within this single call (the reader pool observes
// SQLite's WAL snapshot semantics), a simplification of the spec's
// "planner captures a read transaction" language.
func (p *Planner) Search(ctx context.Context, mode Mode, queryText string, filters Filters, limit, offset int, deadline time.Time) (*Results, error) {
	if limit <= 0 {
		limit = 10
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return nil, fmt.Errorf("query: %w: deadline already elapsed", ekind.ErrQueryTimeout)
	}

	if p.metrics != nil {
		start := time.Now()
		defer func() { p.metrics.ObserveQueryLatency(string(mode), time.Since(start)) }()
	}

	switch mode {
	case ModeRawFTS:
		return p.searchRawFTS(ctx, queryText, filters, limit, offset, deadline)
	case ModeSemantic:
		return p.searchSemantic(ctx, queryText, filters, limit, offset, deadline)
	case ModeHybrid:
		return p.searchHybrid(ctx, queryText, filters, limit, offset, deadline, p.cfg().SemanticWeight)
	case ModeKeyword, "":
		return p.searchHybrid(ctx, queryText, filters, limit, offset, deadline, p.cfg().SemanticWeight)
	default:
		return nil, fmt.Errorf("query: %w: unknown mode %q", ekind.ErrQueryInvalid, mode)
	}
}

func (p *Planner) searchRawFTS(ctx context.Context, queryText string, filters Filters, limit, offset int, deadline time.Time) (*Results, error) {
	hits, err := p.store.SearchFTS(queryText, overFetch(limit, offset))
	if err != nil {
		return nil, fmt.Errorf("query: raw_fts: %w", err)
	}
	tau := p.cfg().FTSNormalizerTau

	var out []Result
	for _, h := range hits {
		cap, ok := p.loadFiltered(h.CaptureID, filters)
		if !ok {
			continue
		}
		out = append(out, Result{Capture: cap, Score: normalizeBM25(h.BM25, tau), Source: "fts"})
	}
	return p.finish(ctx, out, limit, offset, deadline)
}

func (p *Planner) searchSemantic(ctx context.Context, queryText string, filters Filters, limit, offset int, deadline time.Time) (*Results, error) {
	hits, err := p.vectorSearch(ctx, queryText, overFetch(limit, offset))
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, h := range hits {
		id, err := p.store.CaptureIDForVID(h.VID)
		if err != nil {
			// The vector index may be one op-log entry ahead of a row the
			// ranker can't yet resolve to a capture; skip it silently
			// rather than fail the whole query, per spec §5.
			continue
		}
		cap, ok := p.loadFiltered(id.String(), filters)
		if !ok {
			continue
		}
		out = append(out, Result{Capture: cap, Score: h.Score, Source: "semantic"})
	}
	return p.finish(ctx, out, limit, offset, deadline)
}

func (p *Planner) searchHybrid(ctx context.Context, queryText string, filters Filters, limit, offset int, deadline time.Time, weight float64) (*Results, error) {
	n := overFetch(limit, offset)
	tau := p.cfg().FTSNormalizerTau

	ftsHits, err := p.store.SearchFTS(queryText, n)
	if err != nil {
		return nil, fmt.Errorf("query: hybrid: fts: %w", err)
	}
	vecHits, err := p.vectorSearch(ctx, queryText, n)
	if err != nil {
		return nil, err
	}

	rows := make(map[string]*rankedRow)
	for _, h := range ftsHits {
		row := rows[h.CaptureID]
		if row == nil {
			row = &rankedRow{}
			rows[h.CaptureID] = row
		}
		row.ftsNorm = normalizeBM25(h.BM25, tau)
		row.hasFTS = true
	}
	for _, h := range vecHits {
		id, err := p.store.CaptureIDForVID(h.VID)
		if err != nil {
			continue
		}
		key := id.String()
		row := rows[key]
		if row == nil {
			row = &rankedRow{}
			rows[key] = row
		}
		row.cos = h.Score
		row.hasCos = true
	}

	var out []Result
	for captureID, row := range rows {
		cap, ok := p.loadFiltered(captureID, filters)
		if !ok {
			continue
		}
		source := "hybrid"
		switch {
		case row.hasFTS && !row.hasCos:
			source = "fts"
		case row.hasCos && !row.hasFTS:
			source = "semantic"
		}
		out = append(out, Result{Capture: cap, Score: blend(row.cos, row.ftsNorm, weight), Source: source})
	}
	return p.finish(ctx, out, limit, offset, deadline)
}

// vectorSearch embeds queryText and runs the vector index search, or
// returns a wrapped ErrEmbeddingUnavailable if the embedder fails.
func (p *Planner) vectorSearch(ctx context.Context, queryText string, k int) ([]vectorindex.Hit, error) {
	vecs, err := p.embedder.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, fmt.Errorf("query: %w: %v", ekind.ErrEmbeddingUnavailable, err)
	}
	hits, err := p.index.Search(vecs[0], k, nil)
	if err != nil {
		return nil, fmt.Errorf("query: vector search: %w", err)
	}
	return hits, nil
}

func (p *Planner) loadFiltered(captureID string, filters Filters) (*types.Capture, bool) {
	id, err := parseID(captureID)
	if err != nil {
		return nil, false
	}
	cap, err := p.store.GetCapture(id)
	if err != nil {
		return nil, false
	}
	if !matches(cap, filters) {
		return nil, false
	}
	return cap, true
}

func matches(cap *types.Capture, f Filters) bool {
	if f.ContentType != "" && cap.Kind != f.ContentType {
		return false
	}
	if f.SourceApp != "" && cap.SourceApp != f.SourceApp {
		return false
	}
	if !f.TimeRange.Since.IsZero() && cap.CapturedAt.Before(f.TimeRange.Since) {
		return false
	}
	if !f.TimeRange.Until.IsZero() && cap.CapturedAt.After(f.TimeRange.Until) {
		return false
	}
	return true
}

func (p *Planner) finish(ctx context.Context, hits []Result, limit, offset int, deadline time.Time) (*Results, error) {
	sortResults(hits)
	truncated := false
	if !deadline.IsZero() && time.Now().After(deadline) {
		if len(hits) == 0 {
			return nil, fmt.Errorf("query: %w", ekind.ErrQueryTimeout)
		}
		truncated = true
	}
	if err := ctx.Err(); err != nil {
		if len(hits) == 0 {
			return nil, fmt.Errorf("query: %w: %v", ekind.ErrQueryTimeout, err)
		}
		truncated = true
	}
	return &Results{Hits: page(hits, offset, limit), Truncated: truncated}, nil
}

func overFetch(limit, offset int) int {
	n := (limit + offset) * overFetchFactor
	if n < limit+offset {
		n = limit + offset
	}
	if n <= 0 {
		n = limit * overFetchFactor
	}
	return n
}

// Get fetches a single capture by id (spec §6.2 get()).
func (p *Planner) Get(id types.ID) (*types.Capture, error) {
	cap, err := p.store.GetCapture(id)
	if err != nil {
		return nil, fmt.Errorf("query: get: %w", err)
	}
	return cap, nil
}

// Recent returns captures matching filters, newest first (spec §6.2
// recent()).
func (p *Planner) Recent(filters Filters, limit, offset int) ([]*types.Capture, error) {
	caps, err := p.store.Recent(toScanFilters(filters), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query: recent: %w", err)
	}
	return caps, nil
}

// Stats reports counts, byte sizes, and tier distribution (spec §6.2
// stats()).
func (p *Planner) Stats() (store.Stats, error) {
	st, err := p.store.Stats()
	if err != nil {
		return store.Stats{}, fmt.Errorf("query: stats: %w", err)
	}
	return st, nil
}

// PurgeResult reports how many captures a purge matched and, unless
// dryRun was requested, deleted.
type PurgeResult struct {
	Matched int
	Deleted int
}

// Purge deletes every capture matching filters from the record store and
// the vector index, record-then-vector per spec §4.9's fixed ordering, or
// just counts matches when dryRun is true (spec §6.2 purge()).
func (p *Planner) Purge(filters Filters, dryRun bool) (PurgeResult, error) {
	candidates, err := p.store.ListMatching(toScanFilters(filters))
	if err != nil {
		return PurgeResult{}, fmt.Errorf("query: purge: %w", err)
	}
	result := PurgeResult{Matched: len(candidates)}
	if dryRun {
		return result, nil
	}

	for _, cand := range candidates {
		if err := p.store.DeleteCapture(cand.CaptureID); err != nil {
			return result, fmt.Errorf("query: purge: delete capture %s: %w", cand.CaptureID, err)
		}
		if cand.EmbeddingRef != nil {
			if err := p.index.Delete(*cand.EmbeddingRef); err != nil {
				return result, fmt.Errorf("query: purge: delete vector %d: %w", *cand.EmbeddingRef, err)
			}
		}
		result.Deleted++
	}
	return result, nil
}

func toScanFilters(f Filters) store.ScanFilters {
	return store.ScanFilters{
		Kind:      f.ContentType,
		SourceApp: f.SourceApp,
		Since:     f.TimeRange.Since,
		Until:     f.TimeRange.Until,
	}
}

func parseID(s string) (types.ID, error) {
	return uuid.Parse(s)
}
