package domain

import (
	"encoding/json"
	"maps"
)

// Job run statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// IngestReport is the JSON body returned by an ingestion or alert job.
// Details carries source-specific fields and is flattened into the top level.
type IngestReport struct {
	Status          string         `json:"status"`
	RecordsInserted int            `json:"records_inserted"`
	DurationMS      int64          `json:"duration_ms"`
	RunID           string         `json:"run_id"`
	Message         string         `json:"message,omitempty"`
	FailedTargets   []string       `json:"failed_targets,omitempty"`
	Details         map[string]any `json:"-"`
}

// Set records a source-specific field.
func (r *IngestReport) Set(key string, value any) {
	if r.Details == nil {
		r.Details = make(map[string]any)
	}
	r.Details[key] = value
}

// StatusFor returns partial_success when any target failed.
func StatusFor(failed int) string {
	if failed > 0 {
		return StatusPartialSuccess
	}
	return StatusSuccess
}

func (r IngestReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Details)+6)
	maps.Copy(out, r.Details)
	out["status"] = r.Status
	out["records_inserted"] = r.RecordsInserted
	out["duration_ms"] = r.DurationMS
	out["run_id"] = r.RunID
	if r.Message != "" {
		out["message"] = r.Message
	}
	if len(r.FailedTargets) > 0 {
		out["failed_targets"] = r.FailedTargets
	}
	return json.Marshal(out)
}

// CheckResult is the outcome of one data-quality check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// JobResult is one orchestrator step outcome. It is never persisted.
type JobResult struct {
	Step            string        `json:"step"`
	Status          string        `json:"status"`
	Message         string        `json:"message,omitempty"`
	DurationMS      int64         `json:"duration_ms"`
	RecordsAffected *int64        `json:"records_affected,omitempty"`
	Checks          []CheckResult `json:"checks,omitempty"`
}

// OrchestratorReport is the ETL orchestrator response body.
type OrchestratorReport struct {
	Status          string      `json:"status"`
	Message         string      `json:"message,omitempty"`
	TotalDurationMS int64       `json:"total_duration_ms"`
	StepsCompleted  int         `json:"steps_completed"`
	StepsSucceeded  int         `json:"steps_succeeded"`
	StepsFailed     int         `json:"steps_failed"`
	Results         []JobResult `json:"results"`
}

// ParseStats counts what a parser kept and skipped from one payload.
type ParseStats struct {
	Entries int
	Skipped int
}

// Add accumulates o into s.
func (s *ParseStats) Add(o ParseStats) {
	s.Entries += o.Entries
	s.Skipped += o.Skipped
}

// Outcome returns the run status.
func (r IngestReport) Outcome() string { return r.Status }

// Outcome returns the run status.
func (r OrchestratorReport) Outcome() string { return r.Status }
