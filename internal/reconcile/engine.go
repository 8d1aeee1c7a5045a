// Package reconcile writes one cycle of normalized alerts to the store in a
// single transaction.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
	"github.com/mr1hm/mta-alert-tracker/internal/repository"
)

// Error reports which stop and step failed. The whole batch was rolled back.
// Stop is empty when the transaction itself could not begin or commit.
type Error struct {
	Stop string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Stop == "" {
		return fmt.Sprintf("reconcile %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("reconcile %s for stop %q: %v", e.Op, e.Stop, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result counts the effect of one committed batch.
type Result struct {
	StopsSeen      int
	StopsCreated   int
	AlertsDeleted  int64
	AlertsInserted int
}

type Engine struct {
	store repository.AlertStore
	now   func() time.Time
	newID func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(store repository.AlertStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile replaces the alerts of every stop in groups. Missing stops are
// created. Nothing is committed unless every stop succeeds.
func (e *Engine) Reconcile(ctx context.Context, groups models.StopAlerts) (Result, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var res Result
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		res = Result{}
		stamp := e.now().UTC()

		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return &Error{Stop: name, Op: "cancelled", Err: err}
			}

			stopID, found, err := tx.FindStop(ctx, name)
			if err != nil {
				return &Error{Stop: name, Op: "find stop", Err: err}
			}
			if !found {
				stopID, err = tx.UpsertStop(ctx, name)
				if err != nil {
					return &Error{Stop: name, Op: "create stop", Err: err}
				}
				res.StopsCreated++
			}

			deleted, err := tx.DeleteAlertsByStop(ctx, stopID)
			if err != nil {
				return &Error{Stop: name, Op: "delete alerts", Err: err}
			}
			res.AlertsDeleted += deleted

			for i, na := range groups[name] {
				a := toAlert(na, stopID, name, i, stamp)
				a.ID = e.newID()
				if err := tx.InsertAlert(ctx, a); err != nil {
					return &Error{Stop: name, Op: "insert alert", Err: err}
				}
				res.AlertsInserted++
			}
			res.StopsSeen++
		}
		return nil
	})
	if err != nil {
		var rerr *Error
		if errors.As(err, &rerr) {
			return Result{}, err
		}
		return Result{}, &Error{Op: "transaction", Err: err}
	}

	slog.Debug("reconciled batch",
		"stops", res.StopsSeen,
		"created", res.StopsCreated,
		"deleted", res.AlertsDeleted,
		"inserted", res.AlertsInserted,
	)
	return res, nil
}

func toAlert(na models.NormalizedAlert, stopID int64, stopName string, position int, stamp time.Time) *models.Alert {
	a := &models.Alert{
		StopID:        stopID,
		StopName:      stopName,
		Position:      position,
		AlertType:     na.AlertType,
		Direction:     na.Direction,
		Heading:       na.Heading,
		Description:   na.Description,
		DateText:      na.DateText,
		ActivePeriod:  na.ActivePeriod,
		FeedCreatedAt: na.FeedCreatedAt,
		FeedUpdatedAt: na.FeedUpdatedAt,
		CreatedAt:     stamp,
		UpdatedAt:     stamp,
	}
	if len(na.Routes) > 0 {
		route := strings.Join(na.Routes, ",")
		a.Route = &route
	}
	return a
}
