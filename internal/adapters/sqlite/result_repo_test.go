package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/models"
)

func sampleResult(runID string) *models.AgentResult {
	return &models.AgentResult{
		ID:        models.NewResultID(),
		TaskID:    "task_1",
		RunID:     runID,
		Role:      models.RoleWorker,
		Iteration: 1,
		Attempt:   1,
		Stage:     models.StageReport,
		Status:    models.ResultSucceeded,
		Summary:   "implemented and verified",
		Evidence: []models.EvidenceItem{
			{ID: "ev_1", Type: "log", URI: "file:///tmp/run.log", Hash: "0123456789abcdef"},
			{ID: "ev_2", Type: "screenshot", URI: "file:///tmp/shot.png", Hash: "fedcba9876543210",
				Metadata: map[string]string{"viewport": "1280x720"}},
		},
		Artifacts: []models.Artifact{
			{ID: "art_1", Type: "patch", Path: "changes.diff"},
		},
		Metrics: models.Metrics{DurationMS: 1200, Tokens: 450, Cost: 0.02},
	}
}

func TestSaveFansOutEvidenceAndArtifacts(t *testing.T) {
	conn := newTestDB(t)
	repo := NewResultRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	res := sampleResult(runID)
	require.NoError(t, repo.Save(ctx, res))

	results, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, res.ID, results[0].ID)
	assert.Equal(t, res.Summary, results[0].Summary)
	assert.Equal(t, res.Metrics, results[0].Metrics)

	evidence, err := repo.ListEvidence(ctx, runID)
	require.NoError(t, err)
	require.Len(t, evidence, 2)
	byID := map[string]models.EvidenceItem{}
	for _, item := range evidence {
		byID[item.ID] = item
	}
	assert.Equal(t, "file:///tmp/run.log", byID["ev_1"].URI)
	assert.Equal(t, map[string]string{"viewport": "1280x720"}, byID["ev_2"].Metadata)
	assert.True(t, byID["ev_1"].Intact())

	artifacts, err := repo.ListArtifacts(ctx, runID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "changes.diff", artifacts[0].Path)
}

func TestSaveReplacesByResultID(t *testing.T) {
	conn := newTestDB(t)
	repo := NewResultRepository(conn)
	ctx := context.Background()
	runID := seedRun(t, conn)

	res := sampleResult(runID)
	require.NoError(t, repo.Save(ctx, res))

	res.Status = models.ResultNeedsFix
	res.Summary = "second pass"
	res.Evidence = res.Evidence[:1]
	res.Artifacts = nil
	require.NoError(t, repo.Save(ctx, res))

	results, err := repo.ListByRun(ctx, runID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.ResultNeedsFix, results[0].Status)
	assert.Equal(t, "second pass", results[0].Summary)

	evidence, err := repo.ListEvidence(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, evidence, 1)

	artifacts, err := repo.ListArtifacts(ctx, runID)
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestCountersAggregateTheLedger(t *testing.T) {
	conn := newTestDB(t)
	ctx := context.Background()
	runID := seedRun(t, conn)

	results := NewResultRepository(conn)
	require.NoError(t, results.Save(ctx, sampleResult(runID)))

	events := NewEventRepository(conn)
	_, err := events.Append(ctx, runID, "run.started", nil)
	require.NoError(t, err)
	_, err = events.Append(ctx, runID, "run.completed", nil)
	require.NoError(t, err)

	tasks := NewTaskRepository(conn)
	task := &models.AgentTask{
		ID:        "task_1",
		RunID:     runID,
		AgentID:   "agent-a",
		Iteration: 1,
		Objective: "do the thing",
		Loop:      models.TaskLoop{MaxIterations: 1},
	}
	require.NoError(t, tasks.Upsert(ctx, task, models.TaskSucceeded, 0))

	counters, err := NewCounterReader(conn).Counters(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, counters.Events)
	assert.Equal(t, 1, counters.Results)
	assert.Equal(t, 2, counters.Evidence)
	assert.Equal(t, 1, counters.Artifacts)
	assert.Equal(t, map[string]int{"succeeded": 1}, counters.TasksByStatus)
}
