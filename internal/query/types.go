// Package query implements the Query Planner + Ranker (spec §4.8) and the
// rest of the outbound Query/Subscription interface (spec §6.2): search,
// recent, get, stats, and purge. It is the only package that reads from
// both the record store and the vector index.
package query

import (
	"time"

	"github.com/engramhq/engram/internal/types"
)

// Mode selects a search strategy.
type Mode string

const (
	// ModeKeyword is hybrid with the configured default blend weight; the
	// public default entry point (spec §4.8).
	ModeKeyword  Mode = "keyword"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
	ModeRawFTS   Mode = "raw_fts"
)

// TimeRange bounds captured_at; a zero value on either side is unbounded.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// Filters narrows a search, recent, or purge operation.
type Filters struct {
	ContentType types.Kind
	SourceApp   string
	TimeRange   TimeRange
}

// Result is a single ranked hit.
type Result struct {
	Capture *types.Capture
	Score   float64
	// Source names which retrieval path produced this hit: "fts",
	// "semantic", or "hybrid" for rows present in both result sets.
	Source string
}

// Results is the outcome of a search, paged and possibly truncated by a
// deadline.
type Results struct {
	Hits      []Result
	Truncated bool
}
