package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/types"
)

// PendingIntent describes an uncommitted Step A/B write: a capture exists
// with its embedding not yet confirmed in vectors_metadata.
type PendingIntent struct {
	VID        int64
	CaptureID  uuid.UUID
	Dim        int
	ModelID    string
	CreatedAt  time.Time
}

// ListPendingIntents returns every row left in the intents table, for the
// orphan-intent scan the daemon runs on startup (spec §4.5): each of these
// corresponds to a process that crashed between Step A and Step C.
func (s *Store) ListPendingIntents() ([]PendingIntent, error) {
	rows, err := s.reader.Query(`SELECT vid, capture_id, dim, model_id, created_at FROM intents ORDER BY vid ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list pending intents: %w", err)
	}
	defer rows.Close()

	var out []PendingIntent
	for rows.Next() {
		var (
			vid                int64
			captureID, modelID string
			dim                int
			createdAt          string
		)
		if err := rows.Scan(&vid, &captureID, &dim, &modelID, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan pending intent: %w", err)
		}
		id, err := uuid.Parse(captureID)
		if err != nil {
			return nil, fmt.Errorf("store: parse intent capture id: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("store: parse intent created_at: %w", err)
		}
		out = append(out, PendingIntent{VID: vid, CaptureID: id, Dim: dim, ModelID: modelID, CreatedAt: ts})
	}
	return out, rows.Err()
}

// GetPendingIntent fetches the single intent row reserved for captureID at
// Step A, so the committer can bind Step B to the vid already reserved
// rather than minting a new one.
func (s *Store) GetPendingIntent(captureID types.ID) (*PendingIntent, error) {
	row := s.reader.QueryRow(`SELECT vid, capture_id, dim, model_id, created_at FROM intents WHERE capture_id = ?`, captureID.String())

	var (
		vid       int64
		idStr     string
		dim       int
		modelID   string
		createdAt string
	)
	if err := row.Scan(&vid, &idStr, &dim, &modelID, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: get pending intent: no intent row for capture %s", captureID)
		}
		return nil, fmt.Errorf("store: get pending intent: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("store: parse pending intent capture id: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse pending intent created_at: %w", err)
	}
	return &PendingIntent{VID: vid, CaptureID: id, Dim: dim, ModelID: modelID, CreatedAt: ts}, nil
}
