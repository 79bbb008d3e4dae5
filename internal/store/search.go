package store

import (
	"fmt"
	"strings"
)

// FTSHit is a single keyword-search result: a capture id and its raw BM25
// score (more negative is a better match, per SQLite's FTS5 convention).
type FTSHit struct {
	CaptureID string
	BM25      float64
}

// SearchFTS runs a BM25-ranked full-text query against captures_fts and
// returns up to limit hits ordered best-first. The query text is sanitized
// before being handed to FTS5's MATCH grammar so user input can never be
// interpreted as column filters or boolean operators (spec §4.8's "raw_fts
// mode still sanitizes against injection into the search grammar").
func (s *Store) SearchFTS(query string, limit int) ([]FTSHit, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	rows, err := s.reader.Query(`
		SELECT id, bm25(captures_fts) AS score
		FROM captures_fts
		WHERE captures_fts MATCH ?
		ORDER BY score ASC
		LIMIT ?`, sanitized, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: search fts: %w", err)
	}
	defer rows.Close()

	var out []FTSHit
	for rows.Next() {
		var hit FTSHit
		if err := rows.Scan(&hit.CaptureID, &hit.BM25); err != nil {
			return nil, fmt.Errorf("store: scan fts hit: %w", err)
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// sanitizeFTSQuery reduces free text to a conjunction of quoted terms so
// that FTS5 operators (AND, OR, NOT, NEAR, *, ^, :, -) in user input are
// treated as literal text rather than query syntax.
func sanitizeFTSQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		cleaned := strings.ReplaceAll(f, `"`, "")
		if cleaned == "" {
			continue
		}
		terms = append(terms, `"`+cleaned+`"`)
	}
	return strings.Join(terms, " ")
}
