package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/models"
	"github.com/example/ocswarm/internal/ports/primary"
	"github.com/example/ocswarm/internal/ports/secondary"
)

// stubService is a hand mock of the run service holding runs and events
// in memory.
type stubService struct {
	runs     map[string]*models.RunRecord
	events   map[string][]*models.RunEvent
	executed []string
	canceled []string
}

func newStubService() *stubService {
	return &stubService{
		runs:   make(map[string]*models.RunRecord),
		events: make(map[string][]*models.RunEvent),
	}
}

func (s *stubService) CreateRun(ctx context.Context, pack *models.OrchestrationPackage) (*models.RunRecord, error) {
	if pack.Objective.Title == "" {
		return nil, fmt.Errorf("objective title is required")
	}
	run := &models.RunRecord{
		ID:        fmt.Sprintf("run_%04d", len(s.runs)+1),
		Status:    models.RunQueued,
		Pack:      pack,
		CreatedAt: time.Now(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *stubService) ExecuteRun(ctx context.Context, runID string) error {
	s.executed = append(s.executed, runID)
	s.runs[runID].Status = models.RunSucceeded
	return nil
}

func (s *stubService) CancelRun(ctx context.Context, runID string) error {
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("run %s is already %s", runID, run.Status)
	}
	s.canceled = append(s.canceled, runID)
	return nil
}

func (s *stubService) GetRun(ctx context.Context, runID string) (*primary.RunView, error) {
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return &primary.RunView{Run: run, Counters: &secondary.RunCounters{Events: len(s.events[runID])}}, nil
}

func (s *stubService) ListEvents(ctx context.Context, runID string, afterEventID int64, limit int) ([]*models.RunEvent, error) {
	var out []*models.RunEvent
	for _, ev := range s.events[runID] {
		if ev.EventID > afterEventID {
			out = append(out, ev)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubService) ListTasks(ctx context.Context, runID string) ([]*models.TaskSnapshot, error) {
	return nil, nil
}

func (s *stubService) ListResults(ctx context.Context, runID string) ([]*models.AgentResult, error) {
	return nil, nil
}

var _ primary.RunService = (*stubService)(nil)

func seedRun(s *stubService, status models.RunStatus) *models.RunRecord {
	run, _ := s.CreateRun(context.Background(), &models.OrchestrationPackage{
		Objective: models.Objective{Title: "test objective"},
	})
	run.Status = status
	return run
}

func seedEvents(s *stubService, runID string, types ...string) {
	for i, eventType := range types {
		s.events[runID] = append(s.events[runID], &models.RunEvent{
			RunID:     runID,
			EventID:   int64(i + 1),
			Type:      eventType,
			CreatedAt: time.Now(),
		})
	}
}

func doRequest(t *testing.T, h *Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRun(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	body := `{"objective":{"title":"ship it"},"policy":{"max_orchestrator_iterations":2}}`
	rec := doRequest(t, h, http.MethodPost, "/v1/runs", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	var run models.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, models.RunQueued, run.Status)
}

func TestCreateRunRejectsInvalidPackage(t *testing.T) {
	h := NewHandler(newStubService())

	rec := doRequest(t, h, http.MethodPost, "/v1/runs", `{"objective":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/v1/runs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRun(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)
	// Execute synchronously so the assertion below is deterministic.
	h.start = func(runID string) { _ = svc.ExecuteRun(context.Background(), runID) }

	run := seedRun(svc, models.RunQueued)
	rec := doRequest(t, h, http.MethodPost, "/v1/runs/"+run.ID+"/start", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{run.ID}, svc.executed)
}

func TestStartRunConflictsWhenNotQueued(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunRunning)
	rec := doRequest(t, h, http.MethodPost, "/v1/runs/"+run.ID+"/start", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, svc.executed)
}

func TestStartRunNotFound(t *testing.T) {
	h := NewHandler(newStubService())
	rec := doRequest(t, h, http.MethodPost, "/v1/runs/run_missing/start", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelRun(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunRunning)
	rec := doRequest(t, h, http.MethodPost, "/v1/runs/"+run.ID+"/cancel", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{run.ID}, svc.canceled)
}

func TestCancelTerminalRunConflicts(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunSucceeded)
	rec := doRequest(t, h, http.MethodPost, "/v1/runs/"+run.ID+"/cancel", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRun(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunRunning)
	seedEvents(svc, run.ID, "run.started")

	rec := doRequest(t, h, http.MethodGet, "/v1/runs/"+run.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view primary.RunView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, run.ID, view.Run.ID)
	assert.Equal(t, 1, view.Counters.Events)
}

func TestGetRunEventsCursor(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunRunning)
	seedEvents(svc, run.ID, "run.started", "session.started", "run.completed")

	rec := doRequest(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/events?after=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Events []*models.RunEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 2)
	assert.Equal(t, int64(2), body.Events[0].EventID)
	assert.Equal(t, int64(3), body.Events[1].EventID)
}

func TestGetRunEventsRejectsBadCursor(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)
	run := seedRun(svc, models.RunRunning)

	rec := doRequest(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/events?after=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamRunEventsReplaysUntilTerminal(t *testing.T) {
	svc := newStubService()
	h := NewHandler(svc)

	run := seedRun(svc, models.RunSucceeded)
	seedEvents(svc, run.ID, "run.started", "run.completed")

	rec := doRequest(t, h, http.MethodGet, "/v1/runs/"+run.ID+"/events/stream", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))

	body := rec.Body.String()
	assert.Contains(t, body, "event: run.started")
	assert.Contains(t, body, "event: run.completed")
	assert.Contains(t, body, "id: 2")
}

func TestHealth(t *testing.T) {
	h := NewHandler(newStubService())
	rec := doRequest(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
