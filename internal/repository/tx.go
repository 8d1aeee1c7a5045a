package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

// WithTx runs fn inside one database transaction. The transaction is
// released on every path: committed when fn succeeds, rolled back when fn
// or the commit fails.
func (s *DB) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *txStore) FindStop(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(`SELECT id FROM stops WHERE name = ?`), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to find stop %q: %w", name, err)
	}
	return id, true, nil
}

// UpsertStop relies on the unique name constraint, so a concurrent insert of
// the same name resolves to the same row instead of a duplicate.
func (t *txStore) UpsertStop(ctx context.Context, name string) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.dialect.rebind(`
		INSERT INTO stops (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id
	`), name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert stop %q: %w", name, err)
	}
	return id, nil
}

func (t *txStore) DeleteAlertsByStop(ctx context.Context, stopID int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.rebind(`DELETE FROM alerts WHERE stop_id = ?`), stopID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete alerts for stop %d: %w", stopID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted alerts for stop %d: %w", stopID, err)
	}
	return n, nil
}

func (t *txStore) InsertAlert(ctx context.Context, a *models.Alert) error {
	if a.StopID == 0 {
		return fmt.Errorf("alert %s has no stop", a.ID)
	}

	_, err := t.tx.ExecContext(ctx, t.dialect.rebind(`
		INSERT INTO alerts (
			id, stop_id, position, alert_type, direction, heading, description,
			route, date_text, active_period, feed_created_at, feed_updated_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		a.ID, a.StopID, a.Position, a.AlertType, a.Direction, a.Heading, a.Description,
		a.Route, jsonText(a.DateText, "{}"), jsonText(a.ActivePeriod, "[]"),
		formatTimePtr(a.FeedCreatedAt), formatTimePtr(a.FeedUpdatedAt),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
	}
	return nil
}

func jsonText(raw []byte, fallback string) string {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return fallback
	}
	return s
}
