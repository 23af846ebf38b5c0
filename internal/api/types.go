package api

import (
	"github.com/mattjoyce/relaycmd/internal/registry"
	"github.com/mattjoyce/relaycmd/internal/state"
)

// ExecuteResponse is returned by POST /commands/{name}/execute.
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
	Command     string `json:"command"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Execution statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CommandListResponse is returned by GET /commands.
type CommandListResponse struct {
	Commands []registry.View `json:"commands"`
}

// HistoryResponse is returned by GET /commands/{name}/history.
type HistoryResponse struct {
	Command    string         `json:"command"`
	Executions []state.Record `json:"executions"`
}

// ProgressResponse is returned by GET /progress.
type ProgressResponse struct {
	Active   bool                    `json:"active"`
	Progress []registry.ProgressView `json:"progress"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Commands       int    `json:"commands"`
	ActiveProgress int    `json:"active_progress"`
}
