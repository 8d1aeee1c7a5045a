package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (d dialect) rebind(query string) string {
	if d != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// readTxOptions returns the options for multi-statement reads. PostgreSQL
// defaults to READ COMMITTED, which lets a cycle commit between the stop and
// alert queries; REPEATABLE READ pins both to one snapshot. SQLite runs on a
// single serialized connection and rejects non-default isolation levels.
func (d dialect) readTxOptions() *sql.TxOptions {
	if d != dialectPostgres {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

// DB is the relational alert store shared by the ingestion pipeline and the
// API.
type DB struct {
	db      *sql.DB
	dialect dialect
	writeMu sync.Mutex // one write transaction at a time
}

// Open picks the driver from the connection string: postgres:// and
// postgresql:// URLs use pgx, anything else is a SQLite path.
func Open(dsn string) (*DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return NewPostgresDB(dsn)
	}
	return NewSQLiteDB(strings.TrimPrefix(dsn, "sqlite://"))
}

func (s *DB) migrate(statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, fmt.Errorf("error parsing time %q: %w", ns.String, err)
	}
	return &t, nil
}
