package store

import (
	"context"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status      model.RunStatus `json:"status,omitempty"`
	CompanyName string          `json:"company_name,omitempty"`
	Limit       int             `json:"limit,omitempty"`
	Offset      int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs and memos.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, companyName string) (*model.AnalysisRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	AttachMemo(ctx context.Context, runID, memoID string) error
	GetRun(ctx context.Context, runID string) (*model.AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.AnalysisRun, error)

	// Stages
	CreateStage(ctx context.Context, runID, name string) (string, error)
	CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error

	// Memos. SaveMemo assigns the next version for the company; published
	// versions are never overwritten.
	SaveMemo(ctx context.Context, memo *model.DealMemo) error
	GetMemo(ctx context.Context, memoID string) (*model.DealMemo, error)
	ListMemoVersions(ctx context.Context, companyName string) ([]model.DealMemo, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
