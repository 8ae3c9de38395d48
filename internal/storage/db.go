package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("not found")

// timeLayout keeps a fixed-width fraction so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var schema = []struct {
	name string
	stmt string
}{
	{"apis", `
	CREATE TABLE IF NOT EXISTS apis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT NOT NULL,
		created_at TEXT NOT NULL
	);`},
	{"endpoints", `
	CREATE TABLE IF NOT EXISTS endpoints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		api_id INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		method TEXT NOT NULL,
		expected_status INTEGER NOT NULL,
		expected_fields TEXT NOT NULL DEFAULT '[]',
		param_keys TEXT NOT NULL DEFAULT '[]',
		UNIQUE(api_id, path, method)
	);`},
	{"probes", `
	CREATE TABLE IF NOT EXISTS probes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		api_id INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
		endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
		run_id TEXT NOT NULL DEFAULT '',
		passed INTEGER NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		latency TEXT NOT NULL,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);`},
	{"probes index", `
	CREATE INDEX IF NOT EXISTS idx_probes_endpoint ON probes(api_id, endpoint_id, created_at DESC);`},
	{"baselines", `
	CREATE TABLE IF NOT EXISTS baselines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		api_id INTEGER NOT NULL REFERENCES apis(id) ON DELETE CASCADE,
		endpoint_id INTEGER NOT NULL REFERENCES endpoints(id) ON DELETE CASCADE,
		probe_id INTEGER NOT NULL REFERENCES probes(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL
	);`},
	{"baselines index", `
	CREATE INDEX IF NOT EXISTS idx_baselines_endpoint ON baselines(api_id, endpoint_id, created_at DESC);`},
}

// InitDB opens the SQLite database at path and creates the schema.
// Foreign keys are enabled so deleting an API cascades to its rows.
func InitDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error open db: %w", err)
	}
	// A single connection serializes writes and keeps in-memory databases alive.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error ping db: %w", err)
	}

	for _, t := range schema {
		if _, err := db.Exec(t.stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating %s: %w", t.name, err)
		}
	}

	return db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
