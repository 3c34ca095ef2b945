package cache

// SchemaVersion is bumped whenever the table layout changes; a cache with a
// different version is discarded.
const SchemaVersion = "1"

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per indexed file: its metadata plus the extracted record as JSON.
CREATE TABLE IF NOT EXISTS files (
    path TEXT PRIMARY KEY,
    hash TEXT NOT NULL,
    language TEXT,
    mod_time INTEGER NOT NULL,
    size INTEGER NOT NULL,
    record BLOB NOT NULL
) WITHOUT ROWID;
`
