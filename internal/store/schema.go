package store

// migrations are applied in order, each exactly once, tracked through
// PRAGMA user_version. Append new steps; never edit a released one.
var migrations = []string{
	// 1: session records
	`CREATE TABLE IF NOT EXISTS tracking (
    id                   INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time           TEXT NOT NULL,
    duration_seconds     INTEGER NOT NULL DEFAULT 0 CHECK (duration_seconds >= 0),
    keystrokes           INTEGER NOT NULL DEFAULT 0 CHECK (keystrokes >= 0),
    mouse_moves          INTEGER NOT NULL DEFAULT 0 CHECK (mouse_moves >= 0),
    mouse_clicks         INTEGER NOT NULL DEFAULT 0 CHECK (mouse_clicks >= 0),
    screenshot_refs      TEXT NOT NULL DEFAULT '',
    project_id           TEXT,
    project_name         TEXT,
    user_id              TEXT,
    sync_status          INTEGER NOT NULL DEFAULT 0
);`,

	// 2: when a record was acknowledged by the remote
	`ALTER TABLE tracking ADD COLUMN synced_at TEXT;`,

	// 3: projects, at most one selected
	`CREATE TABLE IF NOT EXISTS projects (
    id                   TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    selected             INTEGER NOT NULL DEFAULT 0,
    created_at           TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_selected ON projects(selected) WHERE selected = 1;`,

	// 4: lookup indexes
	`CREATE INDEX IF NOT EXISTS idx_tracking_start ON tracking(start_time);
CREATE INDEX IF NOT EXISTS idx_tracking_sync ON tracking(sync_status);`,
}
