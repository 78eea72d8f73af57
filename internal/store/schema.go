package store

// Schema v1 - Initial database schema
//
// Syncable tables (tunes, playlists, playlist_tunes, practice_records) carry
// three bookkeeping columns:
//
//	sync_version     - per-row monotonic logical clock, bumped on every local write
//	last_modified_at - unix milliseconds, tie-breaker during conflict resolution
//	deleted          - soft-delete flag; rows are never hard-deleted client-side
//
// staged_evaluations and practice_queue are device-local and never synced.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Stable identity of this device, generated once on first open
CREATE TABLE IF NOT EXISTS device_identity (
  id TEXT PRIMARY KEY
);

-- Tune catalog
CREATE TABLE IF NOT EXISTS tunes (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  tune_type TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL DEFAULT '',
  structure TEXT NOT NULL DEFAULT '',
  incipit TEXT NOT NULL DEFAULT '',
  composer TEXT NOT NULL DEFAULT '',
  genre TEXT NOT NULL DEFAULT '',
  deleted INTEGER NOT NULL DEFAULT 0,
  sync_version INTEGER NOT NULL DEFAULT 1,
  last_modified_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tunes_deleted ON tunes(deleted);
CREATE INDEX IF NOT EXISTS idx_tunes_title ON tunes(title);

-- Named repertoire collections owned by a user
CREATE TABLE IF NOT EXISTS playlists (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  name TEXT NOT NULL,
  instrument TEXT NOT NULL DEFAULT '',
  genre_default TEXT NOT NULL DEFAULT '',
  deleted INTEGER NOT NULL DEFAULT 0,
  sync_version INTEGER NOT NULL DEFAULT 1,
  last_modified_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists(user_id, deleted);

-- Membership link with per-item practice fields
CREATE TABLE IF NOT EXISTS playlist_tunes (
  playlist_id TEXT NOT NULL,
  tune_id TEXT NOT NULL,
  current INTEGER NOT NULL DEFAULT 0,
  learned INTEGER,
  scheduled INTEGER,
  goal TEXT NOT NULL DEFAULT '',
  deleted INTEGER NOT NULL DEFAULT 0,
  sync_version INTEGER NOT NULL DEFAULT 1,
  last_modified_at INTEGER NOT NULL,
  PRIMARY KEY (playlist_id, tune_id)
);

CREATE INDEX IF NOT EXISTS idx_playlist_tunes_scheduled ON playlist_tunes(playlist_id, scheduled);

-- Committed review history; latest row per (user, playlist, tune) is the
-- authoritative scheduling state
CREATE TABLE IF NOT EXISTS practice_records (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  playlist_id TEXT NOT NULL,
  tune_id TEXT NOT NULL,
  technique TEXT NOT NULL,
  quality INTEGER NOT NULL,
  easiness REAL NOT NULL DEFAULT 0,
  difficulty REAL NOT NULL DEFAULT 0,
  stability REAL NOT NULL DEFAULT 0,
  interval_days INTEGER NOT NULL DEFAULT 0,
  repetitions INTEGER NOT NULL DEFAULT 0,
  due INTEGER NOT NULL,
  practiced INTEGER NOT NULL,
  deleted INTEGER NOT NULL DEFAULT 0,
  sync_version INTEGER NOT NULL DEFAULT 1,
  last_modified_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_practice_records_latest
    ON practice_records(user_id, playlist_id, tune_id, practiced);
CREATE INDEX IF NOT EXISTS idx_practice_records_due ON practice_records(due);

-- Not-yet-committed evaluations, one per (user, playlist, tune).
-- A present row with recall_eval = '' means "explicitly cleared";
-- an absent row means "never rated". Device-local, never synced.
CREATE TABLE IF NOT EXISTS staged_evaluations (
  user_id TEXT NOT NULL,
  playlist_id TEXT NOT NULL,
  tune_id TEXT NOT NULL,
  recall_eval TEXT NOT NULL DEFAULT '',
  goal TEXT NOT NULL DEFAULT '',
  technique TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, playlist_id, tune_id)
);

-- Frozen per-day review queue. Rows are only ever mutated to set
-- completed_at; regeneration for the same day is a no-op unless forced.
-- Device-local, never synced.
CREATE TABLE IF NOT EXISTS practice_queue (
  user_id TEXT NOT NULL,
  playlist_id TEXT NOT NULL,
  queue_date TEXT NOT NULL,
  tz_offset_min INTEGER NOT NULL DEFAULT 0,
  tune_id TEXT NOT NULL,
  bucket INTEGER NOT NULL,
  order_index INTEGER NOT NULL,
  completed_at INTEGER,
  generated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, playlist_id, queue_date, tune_id)
);

CREATE INDEX IF NOT EXISTS idx_practice_queue_order
    ON practice_queue(user_id, playlist_id, queue_date, order_index);

-- Durable log of local writes awaiting delivery to the remote store.
-- Append-only until acknowledged; drained in insertion order (FIFO).
CREATE TABLE IF NOT EXISTS change_outbox (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  table_name TEXT NOT NULL,
  row_key TEXT NOT NULL,
  op TEXT NOT NULL CHECK (op IN ('insert','update','delete')),
  payload TEXT NOT NULL,
  sync_version INTEGER NOT NULL,
  last_modified_at INTEGER NOT NULL,
  device_id TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

-- Watermark of the last successfully applied remote change
CREATE TABLE IF NOT EXISTS sync_cursor (
  user_id TEXT NOT NULL,
  device_id TEXT NOT NULL,
  last_remote_seq INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (user_id, device_id)
);
`
