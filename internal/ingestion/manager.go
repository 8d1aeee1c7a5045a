// Package ingestion runs reconciliation cycles: fetch the alert feed,
// normalize it against the stop directory, and reconcile it into the store.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/mta-alert-tracker/internal/alerts"
	"github.com/mr1hm/mta-alert-tracker/internal/config"
	"github.com/mr1hm/mta-alert-tracker/internal/feed"
	"github.com/mr1hm/mta-alert-tracker/internal/models"
	"github.com/mr1hm/mta-alert-tracker/internal/notify"
	"github.com/mr1hm/mta-alert-tracker/internal/reconcile"
	"github.com/mr1hm/mta-alert-tracker/internal/worker"
)

var ErrCycleInProgress = errors.New("ingestion cycle already in progress")

type Fetcher interface {
	Fetch(ctx context.Context) (*feed.RawFeed, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, groups models.StopAlerts) (reconcile.Result, error)
}

// StopNamer lists the stops already persisted, so stops that dropped out of
// the feed get their alerts cleared.
type StopNamer interface {
	StopNames(ctx context.Context) ([]string, error)
}

type Manager struct {
	cfg         config.IngestConfig
	fetcher     Fetcher
	directory   alerts.StopLookup
	reconciler  Reconciler
	stops       StopNamer
	broadcaster *notify.Broadcaster
	pool        *worker.Pool[string]
	running     sync.Mutex
	wg          sync.WaitGroup

	lastMu sync.RWMutex
	last   *models.CycleResult
}

func NewManager(cfg config.IngestConfig, fetcher Fetcher, directory alerts.StopLookup, reconciler Reconciler, stops StopNamer, broadcaster *notify.Broadcaster) *Manager {
	m := &Manager{
		cfg:         cfg,
		fetcher:     fetcher,
		directory:   directory,
		reconciler:  reconciler,
		stops:       stops,
		broadcaster: broadcaster,
	}
	// One worker and a queue of one: cycles run one at a time and triggers
	// that arrive while one is pending coalesce into it.
	m.pool = worker.NewPool("ingestion", 1, 1, func(ctx context.Context, reason string) error {
		_, err := m.RunOnce(ctx, reason)
		return err
	})
	return m
}

func (m *Manager) Start(ctx context.Context) {
	m.pool.Start(ctx)

	if !m.cfg.Enabled {
		slog.Info("scheduled ingestion disabled")
		return
	}

	m.wg.Add(1)
	go m.runPoller(ctx)
}

func (m *Manager) runPoller(ctx context.Context) {
	defer m.wg.Done()
	slog.Info("starting poller", "interval", m.cfg.PollInterval)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.Trigger("startup")

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down")
			return
		case <-ticker.C:
			m.Trigger("tick")
		}
	}
}

// Trigger queues a cycle and reports false when one is already pending.
func (m *Manager) Trigger(reason string) bool {
	queued := m.pool.TrySubmit(reason)
	if !queued {
		slog.Debug("cycle already pending", "reason", reason)
	}
	return queued
}

// RunOnce runs one cycle synchronously. A fetch failure aborts the cycle
// before the store is touched.
func (m *Manager) RunOnce(ctx context.Context, reason string) (models.CycleResult, error) {
	if !m.running.TryLock() {
		return models.CycleResult{}, ErrCycleInProgress
	}
	defer m.running.Unlock()

	result := models.CycleResult{
		ID:        uuid.NewString(),
		Reason:    reason,
		StartedAt: time.Now().UTC(),
	}
	logger := slog.With("cycle_id", result.ID, "reason", reason)
	logger.Debug("cycle started")

	raw, err := m.fetcher.Fetch(ctx)
	if err != nil {
		return result, fmt.Errorf("cycle %s: %w", result.ID, err)
	}

	groups, stats := alerts.NormalizeWithStats(raw, m.directory)
	result.Entities = stats.Entities
	result.Skipped = stats.Skipped

	known, err := m.stops.StopNames(ctx)
	if err != nil {
		return result, fmt.Errorf("cycle %s: %w", result.ID, err)
	}
	groups = alerts.WithEmptyGroups(groups, known)

	res, err := m.reconciler.Reconcile(ctx, groups)
	if err != nil {
		return result, fmt.Errorf("cycle %s: %w", result.ID, err)
	}

	result.StopsSeen = res.StopsSeen
	result.StopsCreated = res.StopsCreated
	result.AlertsDeleted = res.AlertsDeleted
	result.AlertsInserted = res.AlertsInserted
	result.FinishedAt = time.Now().UTC()

	m.lastMu.Lock()
	m.last = &result
	m.lastMu.Unlock()

	if m.broadcaster != nil {
		if missed := m.broadcaster.Broadcast(result); missed > 0 {
			logger.Warn("subscribers missed cycle", "missed", missed)
		}
	}

	logger.Info("cycle complete",
		"entities", stats.Entities,
		"malformed", stats.Malformed,
		"dropped", stats.Dropped,
		"skipped", stats.Skipped,
		"stops", result.StopsSeen,
		"stops_created", result.StopsCreated,
		"alerts_deleted", result.AlertsDeleted,
		"alerts_inserted", result.AlertsInserted,
		"duration", result.Duration(),
	)
	return result, nil
}

// LastResult returns the most recent successful cycle.
func (m *Manager) LastResult() (models.CycleResult, bool) {
	m.lastMu.RLock()
	defer m.lastMu.RUnlock()
	if m.last == nil {
		return models.CycleResult{}, false
	}
	return *m.last, true
}

func (m *Manager) Stop() {
	m.wg.Wait()
	m.pool.Stop()
	slog.Info("ingestion manager stopped")
}
