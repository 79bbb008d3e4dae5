package store

// SQL schema constants for every table the record store owns.

const schemaCaptures = `
CREATE TABLE IF NOT EXISTS captures (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    captured_at TEXT NOT NULL,
    source_app TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    embedding_ref INTEGER,
    tier TEXT NOT NULL DEFAULT 'hot',
    pii_flags INTEGER NOT NULL DEFAULT 0,
    length_chars INTEGER NOT NULL DEFAULT 0,
    origin_metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at);
CREATE INDEX IF NOT EXISTS idx_captures_text_hash ON captures(text_hash);
CREATE INDEX IF NOT EXISTS idx_captures_tier ON captures(tier);
`

// captures_fts is a standalone FTS5 table (not content-linked, since
// captures.id is a TEXT UUID rather than an integer rowid) kept in sync
// with captures by the same statements that write the captures row.
const schemaCapturesFTS = `
CREATE VIRTUAL TABLE IF NOT EXISTS captures_fts USING fts5(
    id UNINDEXED,
    text
);
`

// intents holds Step A/B write-ahead rows for the dual-write commit
// protocol (spec §4.5): a capture has exactly one row in either intents or
// vectors_metadata, never both, while it has an embedding in flight or
// confirmed.
const schemaIntents = `
CREATE TABLE IF NOT EXISTS intents (
    vid INTEGER PRIMARY KEY AUTOINCREMENT,
    capture_id TEXT NOT NULL UNIQUE,
    dim INTEGER NOT NULL,
    model_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

const schemaVectorsMetadata = `
CREATE TABLE IF NOT EXISTS vectors_metadata (
    vid INTEGER PRIMARY KEY,
    capture_id TEXT NOT NULL UNIQUE,
    dim INTEGER NOT NULL,
    model_id TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

const schemaSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    kind TEXT NOT NULL
);
`

// ext_rows holds the opaque, downstream-owned row kinds (tasks, intents in
// the action-engine sense, summaries, entities) that the core persists
// without interpreting.
const schemaExtRows = `
CREATE TABLE IF NOT EXISTS ext_rows (
    table_name TEXT NOT NULL,
    id TEXT NOT NULL,
    created_at TEXT NOT NULL,
    payload BLOB NOT NULL,
    PRIMARY KEY (table_name, id)
);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form the
// initial (version-1) database layout.
var allSchemas = []string{
	schemaCaptures,
	schemaCapturesFTS,
	schemaIntents,
	schemaVectorsMetadata,
	schemaSessions,
	schemaExtRows,
	schemaMigrations,
}
