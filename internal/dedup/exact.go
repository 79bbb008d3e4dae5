// Package dedup implements the two-level suppression described in spec
// §4.3: an exact-hash check over a short TTL window, and a near-dup
// cosine check over a small ring of recent embeddings.
package dedup

import (
	"fmt"
	"time"

	"github.com/engramhq/engram/internal/types"
)

// HashLookup is the subset of the record store's read surface the exact
// filter needs; kept as an interface so this package never imports
// internal/store directly.
type HashLookup interface {
	FindByTextHash(hash string, kind types.Kind, sourceApp string, since time.Time) ([]*types.Capture, error)
}

// ExactFilter suppresses repeat captures whose canonicalized text hash
// was already committed within the configured window (default 60s,
// spec §4.3 Level 1). text_hash is only required to be unique within the
// active window per (kind, source_app), so the lookup is always scoped to
// both.
type ExactFilter struct {
	lookup HashLookup
	window time.Duration
}

// NewExactFilter returns a filter that checks hashes against lookup
// within the given window.
func NewExactFilter(lookup HashLookup, window time.Duration) *ExactFilter {
	return &ExactFilter{lookup: lookup, window: window}
}

// Check reports whether hash has already been committed within the
// window ending at now, scoped to the same (kind, source_app) pair. On a
// hit it returns the id of the earliest matching prior capture so the
// caller can attribute the drop.
func (f *ExactFilter) Check(hash string, kind types.Kind, sourceApp string, now time.Time) (dup bool, priorID types.ID, err error) {
	matches, err := f.lookup.FindByTextHash(hash, kind, sourceApp, now.Add(-f.window))
	if err != nil {
		return false, types.ID{}, fmt.Errorf("dedup: exact check: %w", err)
	}
	if len(matches) == 0 {
		return false, types.ID{}, nil
	}
	earliest := matches[0]
	for _, c := range matches[1:] {
		if c.CapturedAt.Before(earliest.CapturedAt) {
			earliest = c
		}
	}
	return true, earliest.ID, nil
}
