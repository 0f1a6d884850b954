package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT    PRIMARY KEY,
  name          TEXT    NOT NULL DEFAULT '',
  email         TEXT    NOT NULL UNIQUE,
  password_hash TEXT    NOT NULL DEFAULT '',
  created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sites (
  id              TEXT    PRIMARY KEY,
  user_id         TEXT    NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  slug            TEXT    NOT NULL UNIQUE,
  url             TEXT    NOT NULL,
  monitoring_code TEXT    NOT NULL UNIQUE,
  status          TEXT    NOT NULL DEFAULT 'warning',
  last_update     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sites_user ON sites(user_id);

CREATE TABLE IF NOT EXISTS performance_metrics (
  id         INTEGER PRIMARY KEY,
  site_id    TEXT    NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  time       INTEGER NOT NULL,
  load_time  REAL    NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_perf_site ON performance_metrics(site_id, time);

CREATE TABLE IF NOT EXISTS errors (
  id          INTEGER PRIMARY KEY,
  site_id     TEXT    NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  type        TEXT    NOT NULL,
  message     TEXT    NOT NULL,
  filename    TEXT    NOT NULL DEFAULT '',
  line_number INTEGER NOT NULL DEFAULT 0,
  timestamp   INTEGER NOT NULL,
  created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_errors_site ON errors(site_id, timestamp);

CREATE TABLE IF NOT EXISTS console_entries (
  id         INTEGER PRIMARY KEY,
  site_id    TEXT    NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  type       TEXT    NOT NULL CHECK (type IN ('log','info','warn','error')),
  message    TEXT    NOT NULL,
  timestamp  INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_console_site ON console_entries(site_id, timestamp);

CREATE TABLE IF NOT EXISTS image_issues (
  id            INTEGER PRIMARY KEY,
  site_id       TEXT    NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  url           TEXT    NOT NULL,
  original_size TEXT    NOT NULL CHECK (json_valid(original_size)),
  display_size  TEXT    NOT NULL CHECK (json_valid(display_size)),
  created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_site ON image_issues(site_id, created_at);

CREATE TABLE IF NOT EXISTS resources (
  id         INTEGER PRIMARY KEY,
  site_id    TEXT    NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
  name       TEXT    NOT NULL,
  type       TEXT    NOT NULL DEFAULT '',
  duration   REAL    NOT NULL DEFAULT 0,
  size       INTEGER NOT NULL DEFAULT 0,
  timestamp  INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resources_site ON resources(site_id, timestamp);
`

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*sql.DB, error) {
	// WAL + busy timeout to avoid "database is locked"
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create database tables: %w", err)
	}
	return db, nil
}

// Times are stored as UTC unix milliseconds.
func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
