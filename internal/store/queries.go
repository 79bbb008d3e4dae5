package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

func uuidParse(s string) (types.ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return types.ID{}, fmt.Errorf("store: %w: parse id: %v", ekind.ErrStoreCorrupt, err)
	}
	return id, nil
}

// ScanFilters narrows a Recent/Purge scan. A zero value matches everything.
// Kind filters on capture kind when non-empty; Since/Until bound
// captured_at (zero time means unbounded on that side).
type ScanFilters struct {
	Kind      types.Kind
	SourceApp string
	Since     time.Time
	Until     time.Time
}

// CaptureIDForVID resolves the inverse of embedding_ref: which capture a
// confirmed vector-index vid belongs to. Used by the semantic/hybrid
// ranker to turn vector search hits back into captures.
func (s *Store) CaptureIDForVID(vid int64) (types.ID, error) {
	row := s.reader.QueryRow(`SELECT capture_id FROM vectors_metadata WHERE vid = ?`, vid)
	var idStr string
	if err := row.Scan(&idStr); err != nil {
		return types.ID{}, fmt.Errorf("store: capture id for vid %d: %w", vid, err)
	}
	return uuidParse(idStr)
}

// Recent returns captures matching filters, newest first, for the
// time-descending scan operation of the Query/Subscription interface
// (spec §6.2 recent()).
func (s *Store) Recent(filters ScanFilters, limit, offset int) ([]*types.Capture, error) {
	where, args := filters.whereClause()
	rows, err := s.reader.Query(fmt.Sprintf(`
		SELECT id, kind, captured_at, source_app, text, text_hash, embedding_ref, tier, pii_flags, length_chars, origin_metadata
		FROM captures %s
		ORDER BY captured_at DESC, id DESC
		LIMIT ? OFFSET ?`, where),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var out []*types.Capture
	for rows.Next() {
		c, err := scanCaptureRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountMatching reports how many captures satisfy filters.
func (s *Store) CountMatching(filters ScanFilters) (int64, error) {
	where, args := filters.whereClause()
	row := s.reader.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM captures %s`, where), args...)
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count matching: %w", err)
	}
	return n, nil
}

// ListMatching returns every capture id (plus its embedding_ref) satisfying
// filters, unpaged, for the purge operation to delete.
func (s *Store) ListMatching(filters ScanFilters) ([]ExpiredCandidate, error) {
	where, args := filters.whereClause()
	rows, err := s.reader.Query(fmt.Sprintf(`SELECT id, embedding_ref FROM captures %s`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list matching: %w", err)
	}
	defer rows.Close()

	var out []ExpiredCandidate
	for rows.Next() {
		var idStr string
		var ref *int64
		if err := rows.Scan(&idStr, &ref); err != nil {
			return nil, fmt.Errorf("store: scan matching candidate: %w", err)
		}
		id, err := uuidParse(idStr)
		if err != nil {
			return nil, err
		}
		out = append(out, ExpiredCandidate{CaptureID: id, EmbeddingRef: ref})
	}
	return out, rows.Err()
}

// Stats summarizes the record store's contents for the stats() operation
// of the Query/Subscription interface.
type Stats struct {
	Total     int64
	HotCount  int64
	WarmCount int64
	ColdCount int64
	DBSizeB   int64
}

// Stats reports row counts by tier plus the on-disk database size.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	row := s.reader.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE tier = 'hot'),
			COUNT(*) FILTER (WHERE tier = 'warm'),
			COUNT(*) FILTER (WHERE tier = 'cold')
		FROM captures`)
	if err := row.Scan(&st.Total, &st.HotCount, &st.WarmCount, &st.ColdCount); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}

	var pageCount, pageSize int64
	if err := s.reader.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return Stats{}, fmt.Errorf("store: stats: page_count: %w", err)
	}
	if err := s.reader.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return Stats{}, fmt.Errorf("store: stats: page_size: %w", err)
	}
	st.DBSizeB = pageCount * pageSize
	return st, nil
}

func (f ScanFilters) whereClause() (string, []any) {
	var clauses []string
	var args []any
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.SourceApp != "" {
		clauses = append(clauses, "source_app = ?")
		args = append(args, f.SourceApp)
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "captured_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "captured_at <= ?")
		args = append(args, f.Until.UTC().Format(time.RFC3339Nano))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
