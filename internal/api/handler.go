package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
	"github.com/mr1hm/mta-alert-tracker/internal/notify"
	"github.com/mr1hm/mta-alert-tracker/internal/repository"
)

// Ingestor is the part of the ingestion manager the API drives.
type Ingestor interface {
	Trigger(reason string) bool
	LastResult() (models.CycleResult, bool)
}

type Handler struct {
	repo        repository.AlertReader
	ingest      Ingestor
	broadcaster *notify.Broadcaster
	cache       *responseCache
}

func NewHandler(repo repository.AlertReader, ingest Ingestor, broadcaster *notify.Broadcaster, cacheTTL time.Duration) *Handler {
	return &Handler{
		repo:        repo,
		ingest:      ingest,
		broadcaster: broadcaster,
		cache:       newResponseCache(cacheTTL),
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Stop names such as "Lexington Av/59 St" arrive with the slash escaped
	// as %2F, so routing has to run on the escaped path.
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.GET("/health", h.health)

	api := r.Group("/api")
	api.GET("/stops", h.getStops)
	api.GET("/stops/:name", h.getStop)
	api.GET("/alerts", h.getAlerts)
	api.POST("/refresh", h.refresh)
	api.GET("/stream", h.stream)
}

// WatchCycles drops cached responses after each committed cycle. It blocks
// until ctx is done or the broadcaster closes.
func (h *Handler) WatchCycles(ctx context.Context) {
	if h.broadcaster == nil {
		return
	}
	h.cache.watch(ctx, h.broadcaster)
}

type alertQuery struct {
	Route     string `form:"route" binding:"omitempty,alphanum,max=8"`
	Direction string `form:"direction" binding:"omitempty,max=64"`
	Type      string `form:"type" binding:"omitempty,max=64"`
}

func (h *Handler) getStops(c *gin.Context) {
	// Loads are shared between callers, so one caller hanging up must not
	// cancel them.
	ctx := context.WithoutCancel(c.Request.Context())
	v, err := h.cache.get("stops", func() (any, error) {
		stops, err := h.repo.ListStops(ctx)
		if err != nil {
			return nil, err
		}
		return toStopViews(stops), nil
	})
	if err != nil {
		slog.Error("error listing stops", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch stops",
		})
		return
	}

	stops := v.([]StopView)
	c.JSON(http.StatusOK, gin.H{
		"count": len(stops),
		"stops": stops,
	})
}

func (h *Handler) getStop(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))

	ctx := context.WithoutCancel(c.Request.Context())
	v, err := h.cache.get("stop:"+name, func() (any, error) {
		stop, err := h.repo.GetStop(ctx, name)
		if err != nil {
			return nil, err
		}
		return toStopView(*stop), nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "stop not found",
		})
		return
	}
	if err != nil {
		slog.Error("error fetching stop", "stop", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch stop",
		})
		return
	}

	c.JSON(http.StatusOK, v.(StopView))
}

func (h *Handler) getAlerts(c *gin.Context) {
	var q alertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid query: " + err.Error(),
		})
		return
	}

	filter := repository.Filter{
		Route:     q.Route,
		Direction: strings.ToLower(strings.TrimSpace(q.Direction)),
		AlertType: strings.TrimSpace(q.Type),
	}
	key := "alerts:" + filter.Route + "|" + filter.Direction + "|" + filter.AlertType

	ctx := context.WithoutCancel(c.Request.Context())
	v, err := h.cache.get(key, func() (any, error) {
		alerts, err := h.repo.ListAlerts(ctx, filter)
		if err != nil {
			return nil, err
		}
		return toAlertViews(alerts), nil
	})
	if err != nil {
		slog.Error("error listing alerts", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}

	alerts := v.([]AlertView)
	c.JSON(http.StatusOK, gin.H{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	queued := h.ingest.Trigger("api")
	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}

	resp := gin.H{"status": "ok"}
	if last, ok := h.ingest.LastResult(); ok {
		resp["last_cycle"] = toCycleView(last)
	}
	c.JSON(http.StatusOK, resp)
}

// stream sends one server-sent "cycle" event per completed cycle.
func (h *Handler) stream(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming disabled"})
		return
	}

	id, ch := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case r, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent("cycle", toCycleView(r))
			c.Writer.Flush()
		}
	}
}
