package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/mta-alert-tracker/internal/api"
	"github.com/mr1hm/mta-alert-tracker/internal/config"
	"github.com/mr1hm/mta-alert-tracker/internal/feed"
	"github.com/mr1hm/mta-alert-tracker/internal/ingestion"
	"github.com/mr1hm/mta-alert-tracker/internal/logging"
	"github.com/mr1hm/mta-alert-tracker/internal/notify"
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

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	db, err := repository.Open(cfg.DB.URL)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	directory, err := loadDirectory(cfg.Stops.Path)
	if err != nil {
		logging.Fatalf("Failed to load stop table: %v", err)
	}
	slog.Info("stop table loaded", "stops", directory.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcaster := notify.NewBroadcaster()

	client := feed.NewClient(cfg.Feed.URL, cfg.Feed.APIKey, cfg.Feed.Timeout)
	mgr := ingestion.NewManager(cfg.Ingest, client, directory, reconcile.NewEngine(db), db, broadcaster)
	mgr.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.API.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(api.RateLimitMiddleware(cfg.API.RateLimitRPS))

	handler := api.NewHandler(db, mgr, broadcaster, cfg.API.CacheTTL)
	handler.RegisterRoutes(router)
	go handler.WatchCycles(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mgr.Stop()
	broadcaster.Close() // ends open event streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func loadDirectory(path string) (*stops.Directory, error) {
	if path == "" {
		return stops.Default()
	}
	return stops.LoadFile(path)
}
