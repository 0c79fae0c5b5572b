package store

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create call reports",
		SQL: `
			CREATE TABLE call_reports (
				call_id          TEXT PRIMARY KEY,
				application      TEXT NOT NULL,
				ended_reason     TEXT NOT NULL DEFAULT '',
				cost             REAL NOT NULL DEFAULT 0,
				duration_seconds REAL NOT NULL DEFAULT 0,
				summary          TEXT NOT NULL DEFAULT '',
				started_at       TEXT NOT NULL DEFAULT '',
				ended_at         TEXT NOT NULL DEFAULT '',
				received_at      TEXT NOT NULL
			);

			CREATE INDEX idx_call_reports_received ON call_reports (received_at);
			CREATE INDEX idx_call_reports_app ON call_reports (application);
		`,
	},
	{
		Version: 2,
		Name:    "keep raw report payload",
		SQL: `
			ALTER TABLE call_reports ADD COLUMN payload TEXT;
		`,
	},
}
