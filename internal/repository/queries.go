package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const alertColumns = `
	a.id, a.stop_id, s.name, a.position, a.alert_type, a.direction, a.heading,
	a.description, a.route, a.date_text, a.active_period, a.feed_created_at,
	a.feed_updated_at, a.created_at, a.updated_at`

// ListStops returns every stop with its alerts. Both reads share one
// transaction so the result reflects a single committed cycle.
func (s *DB) ListStops(ctx context.Context) ([]models.Stop, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.readTxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM stops ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	var stops []models.Stop
	index := make(map[int64]int)
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan stop row: %w", err)
		}
		index[st.ID] = len(stops)
		stops = append(stops, st)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating stop rows: %w", err)
	}
	rows.Close()

	alerts, err := s.listAlerts(ctx, tx, Filter{})
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		if i, ok := index[a.StopID]; ok {
			stops[i].Alerts = append(stops[i].Alerts, a)
		}
	}

	return stops, nil
}

func (s *DB) GetStop(ctx context.Context, name string) (*models.Stop, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.readTxOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin read: %w", err)
	}
	defer tx.Rollback()

	st := &models.Stop{}
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`SELECT id, name FROM stops WHERE name = ?`), name).Scan(&st.ID, &st.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stop %q: %w", name, err)
	}

	st.Alerts, err = s.listAlerts(ctx, tx, Filter{StopName: name})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *DB) ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error) {
	return s.listAlerts(ctx, s.db, opts)
}

func (s *DB) StopNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM stops ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stop names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan stop name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop names: %w", err)
	}
	return names, nil
}

func (s *DB) listAlerts(ctx context.Context, q queryer, opts Filter) ([]models.Alert, error) {
	var (
		where []string
		args  []any
	)
	if opts.StopName != "" {
		where = append(where, "s.name = ?")
		args = append(args, opts.StopName)
	}
	if opts.Route != "" {
		// LIKE is case-insensitive in SQLite but not in PostgreSQL.
		where = append(where, "LOWER(',' || a.route || ',') LIKE ?")
		args = append(args, "%,"+strings.ToLower(opts.Route)+",%")
	}
	if opts.Direction != "" {
		where = append(where, "LOWER(a.direction) = LOWER(?)")
		args = append(args, opts.Direction)
	}
	if opts.AlertType != "" {
		where = append(where, "a.alert_type = ?")
		args = append(args, opts.AlertType)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts a JOIN stops s ON s.id = a.stop_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.name, a.position"

	rows, err := q.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert rows: %w", err)
	}
	return alerts, nil
}

func scanAlert(rows *sql.Rows) (models.Alert, error) {
	var (
		a                        models.Alert
		direction, route         sql.NullString
		dateText, activePeriod   string
		feedCreated, feedUpdated sql.NullString
		createdAt, updatedAt     string
	)
	err := rows.Scan(
		&a.ID, &a.StopID, &a.StopName, &a.Position, &a.AlertType, &direction, &a.Heading,
		&a.Description, &route, &dateText, &activePeriod, &feedCreated,
		&feedUpdated, &createdAt, &updatedAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan alert row: %w", err)
	}

	if direction.Valid {
		a.Direction = &direction.String
	}
	if route.Valid {
		a.Route = &route.String
	}
	a.DateText = json.RawMessage(dateText)
	a.ActivePeriod = json.RawMessage(activePeriod)

	if a.FeedCreatedAt, err = parseNullTime(feedCreated); err != nil {
		return a, err
	}
	if a.FeedUpdatedAt, err = parseNullTime(feedUpdated); err != nil {
		return a, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, fmt.Errorf("error parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return a, fmt.Errorf("error parsing updated_at: %w", err)
	}
	return a, nil
}
