package models

import "github.com/google/uuid"

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return "run_" + shortUUID()
}

// NewTaskID returns a fresh task identifier.
func NewTaskID() string {
	return "task_" + shortUUID()
}

// NewResultID returns a fresh result identifier.
func NewResultID() string {
	return "res_" + shortUUID()
}

// NewEvidenceID returns a fresh evidence identifier.
func NewEvidenceID() string {
	return "ev_" + shortUUID()
}

func shortUUID() string {
	return uuid.New().String()[:8]
}
