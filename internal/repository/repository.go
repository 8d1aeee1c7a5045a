package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

var ErrNotFound = errors.New("not found")

type Filter struct {
	StopName  string
	Route     string // matches one id of a multi-route alert
	Direction string
	AlertType string
}

// Tx is the write surface available inside a single transaction.
type Tx interface {
	// FindStop looks a stop up by exact name.
	FindStop(ctx context.Context, name string) (id int64, found bool, err error)
	// UpsertStop inserts the stop or returns the id of the existing row.
	UpsertStop(ctx context.Context, name string) (int64, error)
	DeleteAlertsByStop(ctx context.Context, stopID int64) (int64, error)
	InsertAlert(ctx context.Context, a *models.Alert) error
}

// AlertStore runs fn in one transaction: committed when fn returns nil,
// rolled back otherwise.
type AlertStore interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

type AlertReader interface {
	ListStops(ctx context.Context) ([]models.Stop, error)
	GetStop(ctx context.Context, name string) (*models.Stop, error)
	ListAlerts(ctx context.Context, opts Filter) ([]models.Alert, error)
	StopNames(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}
