// Command ingest-once runs a single reconciliation cycle and exits, for use
// from cron or another external scheduler.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mr1hm/mta-alert-tracker/internal/config"
	"github.com/mr1hm/mta-alert-tracker/internal/feed"
	"github.com/mr1hm/mta-alert-tracker/internal/ingestion"
	"github.com/mr1hm/mta-alert-tracker/internal/logging"
	"github.com/mr1hm/mta-alert-tracker/internal/reconcile"
	"github.com/mr1hm/mta-alert-tracker/internal/repository"
	"github.com/mr1hm/mta-alert-tracker/internal/stops"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level)

	var directory *stops.Directory
	if cfg.Stops.Path != "" {
		directory, err = stops.LoadFile(cfg.Stops.Path)
	} else {
		directory, err = stops.Default()
	}
	if err != nil {
		logging.Fatalf("Failed to load stop table: %v", err)
	}

	db, err := repository.Open(cfg.DB.URL)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	client := feed.NewClient(cfg.Feed.URL, cfg.Feed.APIKey, cfg.Feed.Timeout)
	mgr := ingestion.NewManager(cfg.Ingest, client, directory, reconcile.NewEngine(db), db, nil)

	result, err := mgr.RunOnce(ctx, "once")
	stop()
	db.Close()
	if err != nil {
		slog.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	slog.Info("cycle finished", "cycle_id", result.ID, "duration", result.Duration())
}
