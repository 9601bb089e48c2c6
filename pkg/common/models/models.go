package models

import (
	"time"
)

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // run-started, table-normalized, table-loaded, validation-verdict, run-finished
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// TableReport summarizes one derived table within a run.
type TableReport struct {
	Name     string `json:"name"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Written  bool   `json:"written"`
	Loaded   bool   `json:"loaded"`
	Verdict  string `json:"verdict,omitempty"` // PASSED / FAILED, validated tables only
	FatalIss int    `json:"fatal_issues,omitempty"`
	AdvisIss int    `json:"advisory_issues,omitempty"`
}

// RunSummary is the pipeline's user-visible result. Status is "succeeded"
// when every validated table passed, "failed" otherwise.
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Status      string        `json:"status"`
	Tables      []TableReport `json:"tables"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

func (s RunSummary) Succeeded() bool {
	return s.Status == RunSucceeded
}

const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)
