package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT 'info',
	priority    TEXT NOT NULL DEFAULT 'normal'
		CHECK(priority IN ('low', 'normal', 'high', 'urgent')),
	is_read     INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	read_at     DATETIME,
	created_at  DATETIME NOT NULL,
	action_url  TEXT NOT NULL DEFAULT '',
	action_text TEXT NOT NULL DEFAULT '',
	expires_at  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user_read
	ON notifications(user_id, is_read);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_notifications_expires_at
	ON notifications(expires_at);

CREATE INDEX IF NOT EXISTS idx_notifications_user_type
	ON notifications(user_id, type);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
