// Package config loads orchestration package documents from disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/example/ocswarm/internal/models"
)

// Default policy limits applied when the package leaves them unset.
const (
	DefaultMaxOrchestratorIterations = 5
	DefaultMaxWorkerTaskRetries      = 1
	DefaultMaxMalformedOutputRetries = 2
	DefaultMaxWorkers                = 4
)

// LoadPackage reads an orchestration package JSON document and applies
// defaults. Returns error if the file is unreadable or not valid JSON;
// semantic validation happens at run creation.
func LoadPackage(path string) (*models.OrchestrationPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read package: %w", err)
	}

	var pack models.OrchestrationPackage
	if err := json.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("failed to parse package: %w", err)
	}

	ApplyDefaults(&pack)
	return &pack, nil
}

// ApplyDefaults fills unset policy limits. Zero means "unset" for the
// loop limits; wall clock and budgets stay zero, meaning unbounded.
func ApplyDefaults(pack *models.OrchestrationPackage) {
	pol := &pack.Policy
	if pol.MaxOrchestratorIterations == 0 {
		pol.MaxOrchestratorIterations = DefaultMaxOrchestratorIterations
	}
	if pol.MaxWorkerTaskRetries == 0 {
		pol.MaxWorkerTaskRetries = DefaultMaxWorkerTaskRetries
	}
	if pol.MaxMalformedOutputRetries == 0 {
		pol.MaxMalformedOutputRetries = DefaultMaxMalformedOutputRetries
	}
	if pol.MaxWorkers == 0 {
		pol.MaxWorkers = DefaultMaxWorkers
	}
	if pack.Agents.Orchestrator.Name == "" {
		pack.Agents.Orchestrator.Name = "orchestrator"
	}
	if pack.Agents.Worker.Name == "" {
		pack.Agents.Worker.Name = "worker"
	}
}

// SavePackage writes a package document. Used by `ocswarm run init`.
func SavePackage(path string, pack *models.OrchestrationPackage) error {
	data, err := json.MarshalIndent(pack, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal package: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write package: %w", err)
	}
	return nil
}
