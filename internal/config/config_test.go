package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ocswarm/internal/models"
)

func TestLoadPackageAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	doc := `{
		"objective": {"title": "ship the thing"},
		"policy": {"max_workers": 2, "budget_tokens": 1000}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	pack, err := LoadPackage(path)
	require.NoError(t, err)

	assert.Equal(t, "ship the thing", pack.Objective.Title)
	assert.Equal(t, 2, pack.Policy.MaxWorkers)
	assert.Equal(t, int64(1000), pack.Policy.BudgetTokens)
	assert.Equal(t, DefaultMaxOrchestratorIterations, pack.Policy.MaxOrchestratorIterations)
	assert.Equal(t, DefaultMaxWorkerTaskRetries, pack.Policy.MaxWorkerTaskRetries)
	assert.Equal(t, DefaultMaxMalformedOutputRetries, pack.Policy.MaxMalformedOutputRetries)
	assert.Equal(t, "orchestrator", pack.Agents.Orchestrator.Name)
	assert.Equal(t, "worker", pack.Agents.Worker.Name)

	// Unset budgets stay unbounded.
	assert.Zero(t, pack.Policy.WallClockSeconds)
	assert.Zero(t, pack.Policy.BudgetCost)
}

func TestLoadPackageErrors(t *testing.T) {
	_, err := LoadPackage(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err = LoadPackage(path)
	assert.Error(t, err)
}

func TestSavePackageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "package.json")
	pack := &models.OrchestrationPackage{
		Objective: models.Objective{Title: "demo"},
		Policy:    models.RunPolicy{MaxWorkers: 3},
	}
	require.NoError(t, SavePackage(path, pack))

	loaded, err := LoadPackage(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", loaded.Objective.Title)
	assert.Equal(t, 3, loaded.Policy.MaxWorkers)
}
