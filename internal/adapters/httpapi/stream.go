package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/example/ocswarm/internal/models"
)

// streamPollInterval is how often the stream re-reads the ledger while
// waiting for new events.
const streamPollInterval = 500 * time.Millisecond

// StreamRunEvents replays the run's event log as server-sent events and
// follows it until the run reaches a terminal state or the client
// disconnects. The `after` query parameter resumes from a cursor.
// GET /v1/runs/:run_id/events/stream?after=N
func (h *Handler) StreamRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	if _, err := h.service.GetRun(ctx, runID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	var cursor int64
	if a := c.QueryParam("after"); a != "" {
		fmt.Sscanf(a, "%d", &cursor)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	for {
		events, err := h.service.ListEvents(ctx, runID, cursor, 0)
		if err != nil {
			return nil
		}
		for _, ev := range events {
			if err := writeSSE(res, ev); err != nil {
				return nil
			}
			cursor = ev.EventID
		}
		res.Flush()

		if len(events) == 0 {
			// Only stop on an idle ledger: a terminal run may still have
			// unread events behind the cursor.
			view, err := h.service.GetRun(ctx, runID)
			if err != nil || view.Run.Status.Terminal() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(streamPollInterval):
		}
	}
}

func writeSSE(res *echo.Response, ev *models.RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(res, "id: %d\nevent: %s\ndata: %s\n\n", ev.EventID, ev.Type, data)
	return err
}
