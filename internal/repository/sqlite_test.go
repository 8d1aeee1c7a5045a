package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func testAlert(id string, stopID int64, position int) *models.Alert {
	now := time.Now().UTC()
	return &models.Alert{
		ID:           id,
		StopID:       stopID,
		Position:     position,
		AlertType:    "Delays",
		Direction:    strPtr("downtown"),
		Heading:      "Downtown 1 trains are delayed",
		Route:        strPtr("1,2"),
		DateText:     json.RawMessage(`"Jun 10 - 12"`),
		ActivePeriod: json.RawMessage(`[{"start":1718000000}]`),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestDB_UpsertStopReusesID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	var first, second int64
	err := db.WithTx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.UpsertStop(ctx, "Times Sq-42 St")
		if err != nil {
			return err
		}
		second, err = tx.UpsertStop(ctx, "Times Sq-42 St")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
	if first == 0 || first != second {
		t.Errorf("expected the same non-zero id, got %d and %d", first, second)
	}

	names, err := db.StopNames(ctx)
	if err != nil {
		t.Fatalf("StopNames failed: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("expected 1 stop, got %d", len(names))
	}
}

func TestDB_FindStop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx Tx) error {
		if _, found, err := tx.FindStop(ctx, "Times Sq-42 St"); err != nil || found {
			t.Errorf("expected not found, got found=%v err=%v", found, err)
		}
		id, err := tx.UpsertStop(ctx, "Times Sq-42 St")
		if err != nil {
			return err
		}
		got, found, err := tx.FindStop(ctx, "Times Sq-42 St")
		if err != nil || !found || got != id {
			t.Errorf("expected found id %d, got %d found=%v err=%v", id, got, found, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
}

func TestDB_InsertAndGetStop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx Tx) error {
		id, err := tx.UpsertStop(ctx, "Times Sq-42 St")
		if err != nil {
			return err
		}
		if err := tx.InsertAlert(ctx, testAlert("b", id, 1)); err != nil {
			return err
		}
		return tx.InsertAlert(ctx, testAlert("a", id, 0))
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	stop, err := db.GetStop(ctx, "Times Sq-42 St")
	if err != nil {
		t.Fatalf("GetStop failed: %v", err)
	}
	if len(stop.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(stop.Alerts))
	}
	if stop.Alerts[0].ID != "a" {
		t.Errorf("expected alerts ordered by position, got %s first", stop.Alerts[0].ID)
	}

	got := stop.Alerts[0]
	if got.Direction == nil || *got.Direction != "downtown" {
		t.Errorf("direction not round-tripped: %v", got.Direction)
	}
	if string(got.DateText) != `"Jun 10 - 12"` {
		t.Errorf("date text not round-tripped: %s", got.DateText)
	}
	if got.StopName != "Times Sq-42 St" {
		t.Errorf("expected stop name on alert, got %q", got.StopName)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not round-tripped")
	}

	if _, err := db.GetStop(ctx, "Nowhere"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDB_WithTxRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx Tx) error {
		id, err := tx.UpsertStop(ctx, "Times Sq-42 St")
		if err != nil {
			return err
		}
		if err := tx.InsertAlert(ctx, testAlert("x", id, 0)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stops, err := db.ListStops(ctx)
	if err != nil {
		t.Fatalf("ListStops failed: %v", err)
	}
	if len(stops) != 0 {
		t.Errorf("expected rollback to leave no stops, got %d", len(stops))
	}
}

func TestDB_ForeignKeyEnforced(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx Tx) error {
		return tx.InsertAlert(ctx, testAlert("orphan", 4242, 0))
	})
	if err == nil {
		t.Error("expected foreign key violation for unknown stop")
	}
}

func TestDB_DeleteAlertsByStop(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx Tx) error {
		times, _ := tx.UpsertStop(ctx, "Times Sq-42 St")
		grand, _ := tx.UpsertStop(ctx, "Grand Central-42 St")
		tx.InsertAlert(ctx, testAlert("t1", times, 0))
		tx.InsertAlert(ctx, testAlert("t2", times, 1))
		tx.InsertAlert(ctx, testAlert("g1", grand, 0))

		n, err := tx.DeleteAlertsByStop(ctx, times)
		if err != nil {
			return err
		}
		if n != 2 {
			t.Errorf("expected 2 deleted, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	alerts, err := db.ListAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != "g1" {
		t.Errorf("expected only g1 left, got %v", alerts)
	}
}

func TestDB_ListAlerts_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.WithTx(ctx, func(tx Tx) error {
		id, _ := tx.UpsertStop(ctx, "Times Sq-42 St")

		a := testAlert("multi", id, 0) // routes 1,2, downtown, Delays
		b := testAlert("seven", id, 1)
		b.Route = strPtr("7")
		b.Direction = strPtr("Queens-bound")
		b.AlertType = "Station Notice"
		c := testAlert("none", id, 2)
		c.Route = nil
		c.Direction = nil
		d := testAlert("lettered", id, 3)
		d.Route = strPtr("A,C")
		d.Direction = strPtr("uptown")

		for _, al := range []*models.Alert{a, b, c, d} {
			if err := tx.InsertAlert(ctx, al); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"route inside list", Filter{Route: "2"}, 1},
		{"route no partial match", Filter{Route: "12"}, 0},
		{"route lower-case letter", Filter{Route: "a"}, 1},
		{"route upper-case letter", Filter{Route: "C"}, 1},
		{"direction case-insensitive", Filter{Direction: "DOWNTOWN"}, 1},
		{"alert type", Filter{AlertType: "Station Notice"}, 1},
		{"stop name", Filter{StopName: "Times Sq-42 St"}, 4},
		{"combined", Filter{Route: "7", AlertType: "Delays"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListAlerts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAlerts failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("expected %d alerts, got %d", tt.want, len(got))
			}
		})
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT * FROM alerts WHERE stop_id = ? AND route LIKE ?`

	if got := dialectSQLite.rebind(q); got != q {
		t.Errorf("sqlite query should be unchanged, got %s", got)
	}
	want := `SELECT * FROM alerts WHERE stop_id = $1 AND route LIKE $2`
	if got := dialectPostgres.rebind(q); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestDialect_ReadTxOptions(t *testing.T) {
	if opts := dialectSQLite.readTxOptions(); opts != nil {
		t.Errorf("sqlite reads should use the default options, got %+v", opts)
	}

	opts := dialectPostgres.readTxOptions()
	if opts == nil || opts.Isolation != sql.LevelRepeatableRead || !opts.ReadOnly {
		t.Errorf("postgres reads should use a read-only repeatable read snapshot, got %+v", opts)
	}
}
