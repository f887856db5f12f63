package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued        RunStatus = "queued"
	RunStatusExtracting    RunStatus = "extracting"
	RunStatusClassifying   RunStatus = "classifying"
	RunStatusBenchmarking  RunStatus = "benchmarking"
	RunStatusDetectingRisk RunStatus = "detecting_risk"
	RunStatusScoring       RunStatus = "scoring"
	RunStatusComplete      RunStatus = "complete"
	RunStatusFailed        RunStatus = "failed"
)

// AnalysisRun is one invocation of the pipeline for a company's document batch.
type AnalysisRun struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Status      RunStatus `json:"status"`
	MemoID      string    `json:"memo_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StageStatus represents the state of one pipeline stage.
type StageStatus string

const (
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusSkipped  StageStatus = "skipped"
)

// StageResult records the outcome of a single pipeline stage. Failed stages
// are recorded, not fatal, unless the failure is an input error.
type StageResult struct {
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
