// Package httpapi exposes the run service over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/primary"
	"github.com/example/ocswarm/internal/version"
)

// Handler handles HTTP requests.
type Handler struct {
	service primary.RunService

	// start launches run execution. Overridable so tests can run the
	// engine synchronously.
	start func(runID string)
}

// NewHandler creates a handler over the run service. Started runs execute
// in the background, detached from the request context.
func NewHandler(service primary.RunService) *Handler {
	h := &Handler{service: service}
	h.start = func(runID string) {
		go func() {
			// The request that started the run is long gone by the time
			// the run finishes.
			_ = service.ExecuteRun(context.Background(), runID)
		}()
	}
	return h
}

// RegisterRoutes registers all routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/runs", h.CreateRun)
	e.POST("/v1/runs/:run_id/start", h.StartRun)
	e.POST("/v1/runs/:run_id/cancel", h.CancelRun)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/events/stream", h.StreamRunEvents)
	e.GET("/v1/runs/:run_id/tasks", h.GetRunTasks)
	e.GET("/v1/runs/:run_id/results", h.GetRunResults)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.String(),
	})
}

// CreateRun persists a queued run from an orchestration package document.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var pack models.OrchestrationPackage
	if err := c.Bind(&pack); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	run, err := h.service.CreateRun(c.Request().Context(), &pack)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, run)
}

// StartRun kicks off background execution of a queued run.
// POST /v1/runs/:run_id/start
func (h *Handler) StartRun(c echo.Context) error {
	runID := c.Param("run_id")

	view, err := h.service.GetRun(c.Request().Context(), runID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	if view.Run.Status != models.RunQueued {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "run is " + string(view.Run.Status) + ", not queued",
		})
	}

	h.start(runID)
	return c.JSON(http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(models.RunRunning),
	})
}

// CancelRun requests cooperative cancellation.
// POST /v1/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	runID := c.Param("run_id")
	if err := h.service.CancelRun(c.Request().Context(), runID); err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
}

// GetRun returns the run with its ledger counters.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	view, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusOK, view)
}

// GetRunEvents replays the run's event log from a cursor.
// GET /v1/runs/:run_id/events?after=N&limit=M
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")

	after := int64(0)
	if a := c.QueryParam("after"); a != "" {
		val, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "after must be an integer"})
		}
		after = val
	}
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be an integer"})
		}
		limit = val
	}

	events, err := h.service.ListEvents(c.Request().Context(), runID, after, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

// GetRunTasks returns the run's task snapshots.
// GET /v1/runs/:run_id/tasks
func (h *Handler) GetRunTasks(c echo.Context) error {
	tasks, err := h.service.ListTasks(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

// GetRunResults returns the run's stage results.
// GET /v1/runs/:run_id/results
func (h *Handler) GetRunResults(c echo.Context) error {
	results, err := h.service.ListResults(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"results": results})
}
