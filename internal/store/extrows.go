package store

import (
	"fmt"
	"time"

	"github.com/engramhq/engram/internal/types"
)

// InsertExtRow stores an opaque row owned by a downstream collaborator
// (TaskRecord, IntentRecord, Summary, Entity — spec §3) without
// interpreting its payload.
func (s *Store) InsertExtRow(row types.ExtRow) error {
	_, err := s.writer.Exec(`
		INSERT INTO ext_rows (table_name, id, created_at, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(table_name, id) DO UPDATE SET payload = excluded.payload`,
		row.Table, row.ID, row.CreatedAt.UTC().Format(time.RFC3339Nano), row.Payload,
	)
	if err != nil {
		return fmt.Errorf("store: insert ext row: %w", err)
	}
	return nil
}

// GetExtRow fetches a single opaque row by table and id.
func (s *Store) GetExtRow(table, id string) (*types.ExtRow, error) {
	row := s.reader.QueryRow(`SELECT table_name, id, created_at, payload FROM ext_rows WHERE table_name = ? AND id = ?`, table, id)

	var r types.ExtRow
	var createdAt string
	if err := row.Scan(&r.Table, &r.ID, &createdAt, &r.Payload); err != nil {
		return nil, fmt.Errorf("store: get ext row: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse ext row created_at: %w", err)
	}
	r.CreatedAt = ts
	return &r, nil
}

// DeleteExtRow removes a single opaque row.
func (s *Store) DeleteExtRow(table, id string) error {
	_, err := s.writer.Exec(`DELETE FROM ext_rows WHERE table_name = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("store: delete ext row: %w", err)
	}
	return nil
}
