package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stops (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		stop_id BIGINT NOT NULL REFERENCES stops(id),
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
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_stop_id ON alerts(stop_id)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_route ON alerts(route)`,
}

func NewPostgresDB(url string) (*DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &DB{
		db:      db,
		dialect: dialectPostgres,
	}
	if err := s.migrate(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}
