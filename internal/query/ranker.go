package query

import (
	"math"
	"sort"

	"github.com/engramhq/engram/internal/types"
)

// normalizeBM25 maps a raw FTS5 BM25 score (more negative is better) onto
// [0, 1) using 1 − exp(−bm25 / τ), per spec §4.8. bm25 is negated first
// since FTS5 reports it negative-is-better; the normalizer then treats
// larger-is-better like every other score in this package.
func normalizeBM25(bm25, tau float64) float64 {
	if tau <= 0 {
		tau = 1
	}
	positive := -bm25
	if positive < 0 {
		positive = 0
	}
	return 1 - math.Exp(-positive/tau)
}

// blend combines a FTS and semantic score per spec §4.8's hybrid formula:
// w·cos + (1−w)·fts_norm. Either input may be zero when a row was found by
// only one retrieval path.
func blend(cos, ftsNorm, weight float64) float64 {
	return weight*cos + (1-weight)*ftsNorm
}

// rankedRow accumulates a capture's score(s) across retrieval paths
// before being collapsed into a single Result.
type rankedRow struct {
	capture *types.Capture
	cos     float64
	ftsNorm float64
	hasCos  bool
	hasFTS  bool
}

// sortResults orders hits by descending score, breaking ties by the lower
// capture id (spec §4.8's "stable tie-breaks (lower id wins)").
func sortResults(hits []Result) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return idLess(hits[i].Capture.ID, hits[j].Capture.ID)
	})
}

func idLess(a, b types.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// page applies offset/limit to an already-sorted result slice. It does
// not report whether the page boundary cut results short;
// Results.Truncated is set by the caller to reflect a deadline, not
// pagination.
func page(hits []Result, offset, limit int) []Result {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) || limit <= 0 {
		end = len(hits)
	}
	return hits[offset:end]
}
