package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/types"
)

// RetagTiers recomputes every capture's tier from its age against the
// hot/warm boundaries and returns how many rows moved into each tier. It
// generalizes the teacher's Store.Prune from a single delete-by-cutoff
// query into the hot/warm/cold classification step of the retention
// sweep (spec §4.9).
func (s *Store) RetagTiers(now time.Time, hotDays, warmDays int) (hot, warm, cold int64, err error) {
	hotCutoff := now.AddDate(0, 0, -hotDays).UTC().Format(time.RFC3339Nano)
	warmCutoff := now.AddDate(0, 0, -warmDays).UTC().Format(time.RFC3339Nano)

	tx, err := s.writer.Begin()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("store: retag tiers: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`UPDATE captures SET tier = 'hot' WHERE captured_at >= ? AND tier != 'hot'`, hotCutoff)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("store: retag hot: %w", err)
	}
	hot, _ = res.RowsAffected()

	res, err = tx.Exec(`
		UPDATE captures SET tier = 'warm'
		WHERE captured_at < ? AND captured_at >= ? AND tier != 'warm'`, hotCutoff, warmCutoff)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("store: retag warm: %w", err)
	}
	warm, _ = res.RowsAffected()

	res, err = tx.Exec(`UPDATE captures SET tier = 'cold' WHERE captured_at < ? AND tier != 'cold'`, warmCutoff)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("store: retag cold: %w", err)
	}
	cold, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("store: retag tiers: commit: %w", err)
	}
	return hot, warm, cold, nil
}

// ExpiredCandidate is a capture eligible for retention deletion, carrying
// the vector id (if any) so the sweeper can delete the vector-index entry
// in the same pass.
type ExpiredCandidate struct {
	CaptureID    types.ID
	EmbeddingRef *int64
}

// ListExpiredCaptures returns every capture older than the retention
// cutoff. It never deletes anything itself: the caller (the retention
// sweeper) deletes the record first, then the vector, per spec §4.9's
// required ordering, and supports a dry_run pass that only calls this.
func (s *Store) ListExpiredCaptures(cutoff time.Time) ([]ExpiredCandidate, error) {
	rows, err := s.reader.Query(`
		SELECT id, embedding_ref FROM captures WHERE captured_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list expired captures: %w", err)
	}
	defer rows.Close()

	var out []ExpiredCandidate
	for rows.Next() {
		var idStr string
		var ref *int64
		if err := rows.Scan(&idStr, &ref); err != nil {
			return nil, fmt.Errorf("store: scan expired candidate: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("store: parse expired candidate id: %w", err)
		}
		out = append(out, ExpiredCandidate{CaptureID: id, EmbeddingRef: ref})
	}
	return out, rows.Err()
}
