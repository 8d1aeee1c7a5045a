package repository

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		stop_id INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		alert_type TEXT NOT NULL DEFAULT '',
		direction TEXT,
		heading TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		route TEXT,
		date_text TEXT NOT NULL DEFAULT '{}',
		active_period TEXT NOT NULL DEFAULT '[]',
		feed_created_at TEXT,
		feed_updated_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (stop_id) REFERENCES stops(id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_stop_id ON alerts(stop_id)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_route ON alerts(route)`,
}

// NewSQLiteDB opens a SQLite database on a single connection. Writers are
// serialized and readers wait for an open write transaction to finish, so a
// reader never sees a half-applied cycle. The single connection also keeps
// ":memory:" databases alive across calls.
func NewSQLiteDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			slog.Warn("failed to set pragma", "pragma", pragma, "error", err)
		}
	}

	s := &DB{
		db:      db,
		dialect: dialectSQLite,
	}
	if err := s.migrate(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}
