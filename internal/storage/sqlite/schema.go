package sqlite

// schema is applied on open. Statements are idempotent; the pipeline never
// migrates destructively.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS captures (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL REFERENCES users(id),
	type        TEXT NOT NULL,
	content     TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}',
	status      TEXT NOT NULL DEFAULT 'pending',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_captures_user_status ON captures(user_id, status);

CREATE TABLE IF NOT EXISTS capture_tags (
	capture_id  TEXT NOT NULL REFERENCES captures(id),
	tag         TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (capture_id, tag)
);

CREATE TABLE IF NOT EXISTS capture_collections (
	user_id     TEXT NOT NULL,
	capture_id  TEXT NOT NULL REFERENCES captures(id),
	collection  TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (capture_id, collection)
);
CREATE INDEX IF NOT EXISTS idx_collections_user ON capture_collections(user_id, collection);

CREATE TABLE IF NOT EXISTS reminders (
	id           TEXT PRIMARY KEY,
	capture_id   TEXT NOT NULL REFERENCES captures(id),
	user_id      TEXT NOT NULL,
	message      TEXT NOT NULL,
	scheduled_at TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	UNIQUE (capture_id, message)
);

CREATE TABLE IF NOT EXISTS capture_summaries (
	capture_id  TEXT PRIMARY KEY REFERENCES captures(id),
	summary     TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS capture_entities (
	capture_id  TEXT NOT NULL REFERENCES captures(id),
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	PRIMARY KEY (capture_id, name, kind)
);

CREATE TABLE IF NOT EXISTS calendar_events (
	capture_id  TEXT NOT NULL REFERENCES captures(id),
	title       TEXT NOT NULL,
	starts_at   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (capture_id, title)
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	type        TEXT NOT NULL,
	title       TEXT NOT NULL,
	body        TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	is_read     INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, is_read);

CREATE TABLE IF NOT EXISTS push_registrations (
	user_id     TEXT NOT NULL,
	token       TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (user_id, token)
);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	payload      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL DEFAULT 3,
	run_after    TEXT NOT NULL,
	last_error   TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_claim ON jobs(status, run_after);
`
