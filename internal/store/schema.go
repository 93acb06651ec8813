package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generation_events (
    id                   TEXT PRIMARY KEY,
    kind                 TEXT NOT NULL,
    timestamp            TEXT NOT NULL,
    timestamp_ns         INTEGER NOT NULL,
    successful           INTEGER NOT NULL,
    provider             TEXT NOT NULL,
    model                TEXT NOT NULL,
    tokens_used          INTEGER NOT NULL DEFAULT 0,
    cost                 REAL NOT NULL DEFAULT 0,
    response_time_ms     INTEGER NOT NULL DEFAULT 0,
    time_saved_minutes   REAL NOT NULL DEFAULT 0,
    error_message        TEXT,
    payload              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS usage_logs (
    id                   TEXT PRIMARY KEY,
    timestamp            TEXT NOT NULL,
    timestamp_ns         INTEGER NOT NULL,
    provider             TEXT NOT NULL,
    model                TEXT NOT NULL,
    operation            TEXT NOT NULL,
    tokens_used          INTEGER NOT NULL DEFAULT 0,
    response_time_ms     INTEGER NOT NULL DEFAULT 0,
    successful           INTEGER NOT NULL,
    error_message        TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON generation_events(timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_events_kind_ts ON generation_events(kind, timestamp_ns);
CREATE INDEX IF NOT EXISTS idx_events_provider ON generation_events(provider);
CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_logs(timestamp_ns);
`
