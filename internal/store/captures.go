package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/ekind"
	"github.com/engramhq/engram/internal/types"
)

// InsertCaptureStepA performs Step A of the dual-write commit protocol
// (spec §4.5): it inserts the capture row, its FTS row, and an intent row
// recording that an embedding for it is in flight, all inside a single
// transaction. A capture is queryable by keyword search immediately after
// Step A returns, even though its vector is not yet committed.
func (s *Store) InsertCaptureStepA(c *types.Capture, dim int, modelID string) error {
	meta, err := json.Marshal(c.OriginMetadata)
	if err != nil {
		return fmt.Errorf("store: marshal origin_metadata: %w", err)
	}

	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: %w: begin step a: %v", ekind.ErrStoreBusy, err)
	}
	defer tx.Rollback() //nolint:errcheck

	id := c.ID.String()

	_, err = tx.Exec(`
		INSERT INTO captures
			(id, kind, captured_at, source_app, text, text_hash, embedding_ref, tier, pii_flags, length_chars, origin_metadata)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?)`,
		id, string(c.Kind), c.CapturedAt.UTC().Format(time.RFC3339Nano), c.SourceApp,
		c.Text, c.TextHash, string(c.Tier), uint32(c.PIIFlags), c.LengthChars, string(meta),
	)
	if err != nil {
		return fmt.Errorf("store: insert capture: %w", err)
	}

	if _, err := tx.Exec(`INSERT INTO captures_fts (id, text) VALUES (?, ?)`, id, c.Text); err != nil {
		return fmt.Errorf("store: insert fts row: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO intents (capture_id, dim, model_id, created_at) VALUES (?, ?, ?, ?)`,
		id, dim, modelID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("store: insert intent: %w", err)
	}

	return tx.Commit()
}

// ConfirmCaptureStepC performs Step C of the dual-write commit protocol:
// it deletes the intent row and inserts a confirmed vectors_metadata row
// carrying the same vid, then updates the capture's embedding_ref. This
// runs only after Step B (the vector index insert) has succeeded.
func (s *Store) ConfirmCaptureStepC(captureID types.ID, vid int64, dim int, modelID string) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: %w: begin step c: %v", ekind.ErrStoreBusy, err)
	}
	defer tx.Rollback() //nolint:errcheck

	id := captureID.String()

	res, err := tx.Exec(`DELETE FROM intents WHERE capture_id = ? AND vid = ?`, id, vid)
	if err != nil {
		return fmt.Errorf("store: delete intent: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: %w: no intent row for capture %s vid %d", ekind.ErrIndexOutOfSync, id, vid)
	}

	if _, err := tx.Exec(`
		INSERT INTO vectors_metadata (vid, capture_id, dim, model_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		vid, id, dim, modelID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("store: insert vectors_metadata: %w", err)
	}

	if _, err := tx.Exec(`UPDATE captures SET embedding_ref = ? WHERE id = ?`, vid, id); err != nil {
		return fmt.Errorf("store: update embedding_ref: %w", err)
	}

	return tx.Commit()
}

// Reembed rebinds a capture to a vector already inserted under newVid in a
// freshly opened vector-index generation, used by the offline re-embedding
// migration (spec §4.4/§6.3) rather than the dual-write pipeline: unlike
// ConfirmCaptureStepC there is no intent row to consume, since the capture
// was already fully committed under the previous generation.
func (s *Store) Reembed(captureID types.ID, newVid int64, dim int, modelID string) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: %w: begin reembed: %v", ekind.ErrStoreBusy, err)
	}
	defer tx.Rollback() //nolint:errcheck

	id := captureID.String()

	if _, err := tx.Exec(`DELETE FROM vectors_metadata WHERE capture_id = ?`, id); err != nil {
		return fmt.Errorf("store: reembed: delete old vectors_metadata: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO vectors_metadata (vid, capture_id, dim, model_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		newVid, id, dim, modelID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("store: reembed: insert vectors_metadata: %w", err)
	}
	if _, err := tx.Exec(`UPDATE captures SET embedding_ref = ? WHERE id = ?`, newVid, id); err != nil {
		return fmt.Errorf("store: reembed: update embedding_ref: %w", err)
	}

	return tx.Commit()
}

// DeleteIntent removes an intent row without confirming it, used by the
// committer's recovery scan when a capture cannot be re-embedded; the
// capture row itself is kept, with embedding_ref left null.
func (s *Store) DeleteIntent(captureID types.ID) error {
	_, err := s.writer.Exec(`DELETE FROM intents WHERE capture_id = ?`, captureID.String())
	if err != nil {
		return fmt.Errorf("store: delete intent: %w", err)
	}
	return nil
}

// DeleteCapture removes a capture, its FTS row, and any vectors_metadata/
// intent rows referencing it, all in one transaction. Callers that also
// need to remove the vector index entry must do so separately against the
// vector index (captures and the vector index are not in a shared
// transaction by design, per spec §4.5/§4.9); the retention sweeper always
// calls this first and deletes the vector-index entry second.
func (s *Store) DeleteCapture(id types.ID) error {
	tx, err := s.writer.Begin()
	if err != nil {
		return fmt.Errorf("store: %w: begin delete: %v", ekind.ErrStoreBusy, err)
	}
	defer tx.Rollback() //nolint:errcheck

	sid := id.String()
	if _, err := tx.Exec(`DELETE FROM captures WHERE id = ?`, sid); err != nil {
		return fmt.Errorf("store: delete capture: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM captures_fts WHERE id = ?`, sid); err != nil {
		return fmt.Errorf("store: delete fts row: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM vectors_metadata WHERE capture_id = ?`, sid); err != nil {
		return fmt.Errorf("store: delete vectors_metadata row: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM intents WHERE capture_id = ?`, sid); err != nil {
		return fmt.Errorf("store: delete intent row: %w", err)
	}

	return tx.Commit()
}

// GetCapture fetches a single capture by id.
func (s *Store) GetCapture(id types.ID) (*types.Capture, error) {
	row := s.reader.QueryRow(`
		SELECT id, kind, captured_at, source_app, text, text_hash, embedding_ref, tier, pii_flags, length_chars, origin_metadata
		FROM captures WHERE id = ?`, id.String())
	return scanCapture(row)
}

// FindByTextHash returns every capture sharing the given text_hash and
// (kind, source_app) pair whose captured_at falls within [since, now].
// Used by the dedup filter's exact match level (§4.3); text_hash is only
// required to be unique within the window per (kind, source_app), so the
// query scopes on both rather than text_hash alone.
func (s *Store) FindByTextHash(hash string, kind types.Kind, sourceApp string, since time.Time) ([]*types.Capture, error) {
	rows, err := s.reader.Query(`
		SELECT id, kind, captured_at, source_app, text, text_hash, embedding_ref, tier, pii_flags, length_chars, origin_metadata
		FROM captures WHERE text_hash = ? AND kind = ? AND source_app = ? AND captured_at >= ?
		ORDER BY captured_at DESC`,
		hash, string(kind), sourceApp, since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("store: find by text hash: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row *sql.Row) (*types.Capture, error) {
	return scanCaptureGeneric(row)
}

func scanCaptureRows(rows *sql.Rows) (*types.Capture, error) {
	return scanCaptureGeneric(rows)
}

func scanCaptureGeneric(s rowScanner) (*types.Capture, error) {
	var (
		idStr, kind, capturedAt, sourceApp, text, textHash, tier, metaJSON string
		embeddingRef                                                      sql.NullInt64
		piiFlags                                                          uint32
		lengthChars                                                       int
	)

	if err := s.Scan(&idStr, &kind, &capturedAt, &sourceApp, &text, &textHash, &embeddingRef, &tier, &piiFlags, &lengthChars, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan capture: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("store: %w: parse capture id: %v", ekind.ErrStoreCorrupt, err)
	}

	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("store: %w: parse captured_at: %v", ekind.ErrStoreCorrupt, err)
	}

	var meta map[string]any
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("store: %w: parse origin_metadata: %v", ekind.ErrStoreCorrupt, err)
		}
	}

	c := &types.Capture{
		ID:             id,
		Kind:           types.Kind(kind),
		CapturedAt:     ts,
		SourceApp:      sourceApp,
		Text:           text,
		TextHash:       textHash,
		Tier:           types.Tier(tier),
		PIIFlags:       types.PIIFlag(piiFlags),
		LengthChars:    lengthChars,
		OriginMetadata: meta,
	}
	if embeddingRef.Valid {
		v := embeddingRef.Int64
		c.EmbeddingRef = &v
	}
	return c, nil
}
