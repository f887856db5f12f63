package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "dealmemo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleMemo(company string) *model.DealMemo {
	arrScore := 72.5
	return &model.DealMemo{
		Summary: model.MemoSummary{
			CompanyName:     company,
			Sector:          "saas",
			SignalScore:     arrScore,
			Recommendation:  model.RecBuy,
			ConfidenceLevel: 0.85,
		},
		Score: model.ScoreBreakdown{
			Raw:      map[string]float64{"traction": 90.25},
			Weighted: map[string]float64{"traction": 18.05},
			Total:    arrScore,
		},
		Weightings: model.DefaultWeightings(),
		CreatedAt:  time.Now().UTC(),
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "acme")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusScoring))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.CompanyName)
	assert.Equal(t, model.RunStatusScoring, got.Status)
}

func TestSQLite_UpdateUnknownRun(t *testing.T) {
	st := newTestStore(t)
	err := st.UpdateRunStatus(context.Background(), "no-such-run", model.RunStatusComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRunsFiltered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "acme")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "globex")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, a.ID, model.RunStatusComplete))

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	require.Len(t, complete, 1)
	assert.Equal(t, "acme", complete[0].CompanyName)

	byCompany, err := st.ListRuns(ctx, RunFilter{CompanyName: "globex"})
	require.NoError(t, err)
	require.Len(t, byCompany, 1)
	assert.Equal(t, model.RunStatusQueued, byCompany[0].Status)

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLite_Stages(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "acme")
	require.NoError(t, err)

	stageID, err := st.CreateStage(ctx, run.ID, "extract")
	require.NoError(t, err)
	require.NotEmpty(t, stageID)

	result := &model.StageResult{
		Name:     "extract",
		Status:   model.StageStatusComplete,
		Duration: 120,
		Metadata: map[string]any{"entities": 14},
	}
	require.NoError(t, st.CompleteStage(ctx, stageID, result))

	err = st.CompleteStage(ctx, "no-such-stage", result)
	assert.Error(t, err)
}

func TestSQLite_MemoRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	memo := sampleMemo("acme")
	require.NoError(t, st.SaveMemo(ctx, memo))
	require.NotEmpty(t, memo.ID)
	assert.Equal(t, 1, memo.Version)

	got, err := st.GetMemo(ctx, memo.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Summary.CompanyName)
	assert.Equal(t, model.RecBuy, got.Summary.Recommendation)
	assert.InDelta(t, 90.25, got.Score.Raw["traction"], 0.0001)
	assert.InDelta(t, 72.5, got.Score.Total, 0.0001)
	assert.InDelta(t, 25, got.Weightings.MarketOpportunity, 0.0001)
}

func TestSQLite_MemoVersionsIncrement(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := sampleMemo("acme")
	require.NoError(t, st.SaveMemo(ctx, first))
	second := sampleMemo("acme")
	require.NoError(t, st.SaveMemo(ctx, second))
	other := sampleMemo("globex")
	require.NoError(t, st.SaveMemo(ctx, other))

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 1, other.Version)

	versions, err := st.ListMemoVersions(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
}

func TestSQLite_AttachMemo(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "acme")
	require.NoError(t, err)
	memo := sampleMemo("acme")
	require.NoError(t, st.SaveMemo(ctx, memo))

	require.NoError(t, st.AttachMemo(ctx, run.ID, memo.ID))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, memo.ID, got.MemoID)
}

func TestSQLite_GetMemoNotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetMemo(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
