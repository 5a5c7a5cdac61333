package ledger

// schema is applied on every Open. Timestamps are unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	channel      TEXT NOT NULL,
	archive_path TEXT NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL,
	seen         INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	appended     INTEGER NOT NULL DEFAULT 0,
	dry_run      INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

CREATE TABLE IF NOT EXISTS run_failures (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	video_id TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	kind     TEXT NOT NULL,
	reason   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);

CREATE TABLE IF NOT EXISTS id_cache (
	archive_path TEXT PRIMARY KEY,
	size         INTEGER NOT NULL,
	mod_time     INTEGER NOT NULL,
	ids          TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
);
`
