// Package api exposes the daemon's command surface over HTTP: listing the
// timeline, re-resolving recordings, rebuilding from history, deleting
// items and injecting mock items, plus the Prometheus metrics endpoint.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jefvlamings/reolink-feed/internal/conf"
	"github.com/jefvlamings/reolink-feed/internal/errors"
	"github.com/jefvlamings/reolink-feed/internal/feed"
	"github.com/jefvlamings/reolink-feed/internal/history"
)

// Controller registers and serves the v1 API routes.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	manager    *feed.Manager
	reconciler *history.Reconciler
	settings   *conf.Settings
	logger     *slog.Logger
}

// ErrorResponse is the JSON error envelope of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// New creates the API controller and mounts its routes on e.
func New(e *echo.Echo, manager *feed.Manager, reconciler *history.Reconciler,
	settings *conf.Settings, registry *prometheus.Registry, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		Echo:       e,
		Group:      e.Group("/api/v1"),
		manager:    manager,
		reconciler: reconciler,
		settings:   settings,
		logger:     logger,
	}
	c.initRoutes(registry)
	return c
}

func (c *Controller) initRoutes(registry *prometheus.Registry) {
	c.Group.GET("/feed", c.ListFeed)
	c.Group.POST("/feed/rebuild", c.RebuildFeed)
	c.Group.POST("/feed/mock", c.CreateMock)
	c.Group.POST("/feed/:id/resolve", c.ResolveItem)
	c.Group.DELETE("/feed/:id", c.DeleteItem)

	if registry != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
}

// HandleError writes the JSON error envelope with a fresh correlation id
// and logs the failure with it, so a reported id finds the log line.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := uuid.New().String()[:8]

	if errors.IsNotFound(err) && code == http.StatusInternalServerError {
		code = http.StatusNotFound
	}

	c.logger.Error("request failed",
		"correlation_id", correlationID,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"code", code,
		"message", message,
		"error", err)

	return ctx.JSON(code, ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	})
}

// feedResponse is the list endpoint payload.
type feedResponse struct {
	Items          any      `json:"items"`
	EnabledLabels  []string `json:"enabled_labels"`
	RetentionHours int      `json:"retention_hours"`
	GeneratedAt    string   `json:"generated_at"`
}

// ListFeed returns timeline items, newest first.
// Query: labels (comma separated), since_hours, limit.
func (c *Controller) ListFeed(ctx echo.Context) error {
	q := feed.ListQuery{}

	if raw := ctx.QueryParam("labels"); raw != "" {
		q.Labels = splitNonEmpty(raw)
	}
	if raw := ctx.QueryParam("since_hours"); raw != "" {
		hours, err := parsePositiveInt(raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid since_hours parameter", http.StatusBadRequest)
		}
		since := time.Now().Add(-time.Duration(hours) * time.Hour)
		q.Since = &since
	}
	if raw := ctx.QueryParam("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid limit parameter", http.StatusBadRequest)
		}
		q.Limit = limit
	}

	items := c.manager.List(q)
	return ctx.JSON(http.StatusOK, feedResponse{
		Items:          items,
		EnabledLabels:  c.settings.Feed.EnabledLabels,
		RetentionHours: c.settings.Feed.RetentionHours,
		GeneratedAt:    time.Now().Format(time.RFC3339),
	})
}

// resolveRequest is the body of the manual resolve operation.
type resolveRequest struct {
	FinalAttempt bool `json:"final_attempt"`
}

// ResolveItem forces one resolution attempt for an item.
func (c *Controller) ResolveItem(ctx echo.Context) error {
	id := ctx.Param("id")
	var req resolveRequest
	if err := ctx.Bind(&req); err != nil && ctx.Request().ContentLength > 0 {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	item, err := c.manager.ResolveRecording(ctx.Request().Context(), id, req.FinalAttempt)
	if err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Item not found", http.StatusNotFound)
		}
		if errors.IsCategory(err, errors.CategoryState) {
			return c.HandleError(ctx, err, "Item is still open", http.StatusConflict)
		}
		return c.HandleError(ctx, err, "Failed to resolve recording", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, item)
}

// RebuildFeed reconciles the timeline against the hub's recorded history.
func (c *Controller) RebuildFeed(ctx echo.Context) error {
	summary, err := c.reconciler.Rebuild(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "History rebuild failed", http.StatusBadGateway)
	}
	return ctx.JSON(http.StatusOK, summary)
}

// DeleteItem removes an item with its assets.
func (c *Controller) DeleteItem(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.manager.Delete(id); err != nil {
		if errors.IsNotFound(err) {
			return c.HandleError(ctx, err, "Item not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to delete item", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// mockRequest is the body of the mock item operation.
type mockRequest struct {
	EntityID   string `json:"entity_id"`
	CameraName string `json:"camera_name"`
	Label      string `json:"label"`
	DurationS  int    `json:"duration_s"`
	NoSnapshot bool   `json:"no_snapshot"`
}

// CreateMock injects a synthetic closed item for pipeline testing.
func (c *Controller) CreateMock(ctx echo.Context) error {
	var req mockRequest
	if err := ctx.Bind(&req); err != nil && ctx.Request().ContentLength > 0 {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}

	item, err := c.manager.CreateMockItem(feed.MockParams{
		EntityID:   req.EntityID,
		CameraName: req.CameraName,
		Label:      req.Label,
		DurationS:  req.DurationS,
		NoSnapshot: req.NoSnapshot,
	})
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create mock item", http.StatusBadRequest)
	}
	return ctx.JSON(http.StatusCreated, item)
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range splitComma(raw) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
