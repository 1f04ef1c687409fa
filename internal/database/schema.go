package database

// Timestamps are kept as RFC3339 text so the driver hands them back verbatim.
const schema = `
CREATE TABLE anime_cache (
	anime_key TEXT PRIMARY KEY,
	added_at TEXT NOT NULL
);

CREATE TABLE cache_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	last_synced_at TEXT
);

CREATE TABLE action_queue (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	anime_key TEXT NOT NULL,
	day TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX idx_action_queue_key ON action_queue(anime_key);
`

// migrations contains incremental schema changes, applied in order based on
// the current user_version. migrations[0] is empty because version 0 uses
// the base schema.
var migrations = []string{
	"",
}
