package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/engramhq/engram/internal/types"
)

// UpsertSession creates or updates a session row. Sessions group related
// captures (dictation or chat) under a single lifecycle; the core stores
// them without interpreting content (spec §3).
func (s *Store) UpsertSession(sess *types.Session) error {
	var endedAt sql.NullString
	if sess.EndedAt != nil {
		endedAt = sql.NullString{String: sess.EndedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.writer.Exec(`
		INSERT INTO sessions (session_id, started_at, ended_at, kind)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET ended_at = excluded.ended_at, kind = excluded.kind`,
		sess.SessionID.String(), sess.StartedAt.UTC().Format(time.RFC3339Nano), endedAt, string(sess.Kind),
	)
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(id types.ID) (*types.Session, error) {
	row := s.reader.QueryRow(`SELECT session_id, started_at, ended_at, kind FROM sessions WHERE session_id = ?`, id.String())

	var (
		sidStr, startedAt, kind string
		endedAt                 sql.NullString
	)
	if err := row.Scan(&sidStr, &startedAt, &endedAt, &kind); err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}

	sid, err := uuid.Parse(sidStr)
	if err != nil {
		return nil, fmt.Errorf("store: parse session id: %w", err)
	}
	st, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse session started_at: %w", err)
	}

	sess := &types.Session{SessionID: sid, StartedAt: st, Kind: types.SessionKind(kind)}
	if endedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse session ended_at: %w", err)
		}
		sess.EndedAt = &t
	}
	return sess, nil
}
