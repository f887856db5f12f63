package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-vc/dealmemo-cli/internal/benchmark"
	"github.com/aegis-vc/dealmemo-cli/internal/config"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
	"github.com/aegis-vc/dealmemo-cli/internal/store"
)

// memStore is an in-memory Store for orchestration tests.
type memStore struct {
	runs       map[string]*model.AnalysisRun
	memos      map[string]*model.DealMemo
	statuses   []model.RunStatus
	stages     []string
	failCreate bool
	failSave   bool
}

func newMemStore() *memStore {
	return &memStore{
		runs:  map[string]*model.AnalysisRun{},
		memos: map[string]*model.DealMemo{},
	}
}

func (s *memStore) CreateRun(_ context.Context, companyName string) (*model.AnalysisRun, error) {
	if s.failCreate {
		return nil, errors.New("store offline")
	}
	run := &model.AnalysisRun{
		ID:          uuid.New().String(),
		CompanyName: companyName,
		Status:      model.RunStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	s.runs[run.ID] = run
	return run, nil
}

func (s *memStore) UpdateRunStatus(_ context.Context, runID string, status model.RunStatus) error {
	s.statuses = append(s.statuses, status)
	if run, ok := s.runs[runID]; ok {
		run.Status = status
	}
	return nil
}

func (s *memStore) AttachMemo(_ context.Context, runID, memoID string) error {
	if run, ok := s.runs[runID]; ok {
		run.MemoID = memoID
	}
	return nil
}

func (s *memStore) GetRun(_ context.Context, runID string) (*model.AnalysisRun, error) {
	return s.runs[runID], nil
}

func (s *memStore) ListRuns(_ context.Context, _ store.RunFilter) ([]model.AnalysisRun, error) {
	return nil, nil
}

func (s *memStore) CreateStage(_ context.Context, _, name string) (string, error) {
	s.stages = append(s.stages, name)
	return uuid.New().String(), nil
}

func (s *memStore) CompleteStage(_ context.Context, _ string, _ *model.StageResult) error {
	return nil
}

func (s *memStore) SaveMemo(_ context.Context, memo *model.DealMemo) error {
	if s.failSave {
		return errors.New("disk full")
	}
	if memo.ID == "" {
		memo.ID = uuid.New().String()
	}
	memo.Version = 1
	s.memos[memo.ID] = memo
	return nil
}

func (s *memStore) GetMemo(_ context.Context, memoID string) (*model.DealMemo, error) {
	return s.memos[memoID], nil
}

func (s *memStore) ListMemoVersions(_ context.Context, _ string) ([]model.DealMemo, error) {
	return nil, nil
}

func (s *memStore) Migrate(_ context.Context) error { return nil }
func (s *memStore) Close() error                    { return nil }

// stubBench is a canned benchmark source.
type stubBench struct {
	data        *model.BenchmarkData
	tam         float64
	competitors []string
	err         error

	queries     []benchmark.Query
	sawDeadline bool
}

func (b *stubBench) FetchBenchmarks(ctx context.Context, q benchmark.Query) (*model.BenchmarkData, error) {
	b.queries = append(b.queries, q)
	_, b.sawDeadline = ctx.Deadline()
	if b.err != nil {
		return nil, b.err
	}
	if b.data != nil {
		return b.data, nil
	}
	return &model.BenchmarkData{Sector: q.Sector, Metrics: map[string]model.MetricDistribution{}}, nil
}

func (b *stubBench) ReferenceTAM(_ context.Context, _ string) (float64, error) {
	if b.err != nil {
		return 0, b.err
	}
	return b.tam, nil
}

func (b *stubBench) ReferenceCompetitors(_ context.Context, _ string) ([]string, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.competitors, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Extraction: config.ExtractionConfig{MinEntityConfidence: 0.6},
	}
}

func analysisDocs() []model.Document {
	return []model.Document{
		{
			ID:       "deck",
			Filename: "acme_deck.md",
			Text: "Acme has $2.4M ARR, growing 180% year over year with 1,200 paying customers " +
				"and 4% churn. Founded in 2021 by 2 co-founders. TAM of $5 billion.",
		},
		{
			ID:       "memo",
			Filename: "acme_memo.md",
			Text:     "Revenue: $2.4M ARR. The team of 18 is raising at a $40M valuation.",
		},
	}
}

func TestAnalyze_EndToEnd(t *testing.T) {
	st := newMemStore()
	bench := &stubBench{
		data: &model.BenchmarkData{
			Sector: "saas",
			Metrics: map[string]model.MetricDistribution{
				"arr": {Min: 100e3, P25: 500e3, Median: 1e6, P75: 3e6, P90: 8e6, Max: 50e6, SampleSize: 40},
			},
		},
		tam: 5e9,
	}
	p := New(testConfig(), st, bench, nil, nil)

	memo, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)
	require.NotNil(t, memo)

	assert.NotEmpty(t, memo.ID)
	assert.Equal(t, 1, memo.Version)
	assert.Greater(t, memo.Score.Total, 0.0)
	assert.NotEmpty(t, memo.Summary.Recommendation)
	assert.Len(t, memo.KeyBenchmarks, 1)
	assert.Equal(t, "dealmemo-cli", memo.Metadata.GeneratedBy)
	assert.Len(t, memo.Metadata.SourceDocuments, 2)

	// The run reaches every status in order and ends complete.
	require.NotEmpty(t, st.statuses)
	assert.Equal(t, model.RunStatusComplete, st.statuses[len(st.statuses)-1])
	assert.Contains(t, st.stages, "extract")
	assert.Contains(t, st.stages, "score")
	assert.Contains(t, st.stages, "recommend")

	// The memo is attached to its run.
	for _, run := range st.runs {
		assert.Equal(t, memo.ID, run.MemoID)
	}
}

func TestAnalyze_DefaultSectorBackstopsClassification(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.DefaultSector = "saas"
	bench := &stubBench{}
	p := New(cfg, newMemStore(), bench, nil, nil)

	docs := []model.Document{{ID: "deck", Filename: "deck.md", Text: "We closed a strong quarter."}}
	_, err := p.Analyze(context.Background(), docs, model.DefaultWeightings())
	require.NoError(t, err)

	// Nothing classifiable in the text, so benchmarks run against the
	// configured default instead of the catch-all sector.
	require.NotEmpty(t, bench.queries)
	assert.Equal(t, "saas", bench.queries[0].Sector)
}

func TestAnalyze_AnalystNameInMetadata(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.AnalystName = "J. Rivera"
	p := New(cfg, newMemStore(), nil, nil, nil)

	memo, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)
	assert.Equal(t, "J. Rivera", memo.Metadata.Analyst)
}

func TestAnalyze_StageTimeoutBoundsStages(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.StageTimeoutMS = 30_000
	bench := &stubBench{}
	p := New(cfg, newMemStore(), bench, nil, nil)

	_, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)
	assert.True(t, bench.sawDeadline, "benchmark stage should run under a deadline")
}

func TestAnalyze_ConfiguredReferenceTAMWithoutWarehouse(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.ReferenceTAM = 2e9
	p := New(cfg, newMemStore(), nil, nil, nil)

	// The deck claims a $5B TAM against a $2B configured reference, a 150%
	// overshoot that must surface as a market-sizing failure.
	memo, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)

	found := false
	for _, f := range memo.RiskAssessment.HighPriority {
		if f.Title == "market sizing fails validation" {
			found = true
		}
	}
	assert.True(t, found, "expected reference TAM mismatch flag, got %+v", memo.RiskAssessment.HighPriority)
}

func TestAnalyze_NoDocuments(t *testing.T) {
	p := New(testConfig(), newMemStore(), nil, nil, nil)
	_, err := p.Analyze(context.Background(), nil, model.DefaultWeightings())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no documents")
}

func TestAnalyze_InvalidWeightings(t *testing.T) {
	p := New(testConfig(), newMemStore(), nil, nil, nil)
	_, err := p.Analyze(context.Background(), analysisDocs(), model.Weightings{Team: 100, Traction: 50})
	assert.Error(t, err)
}

func TestAnalyze_BenchmarkFailureDegrades(t *testing.T) {
	st := newMemStore()
	bench := &stubBench{err: errors.New("warehouse timeout")}
	p := New(testConfig(), st, bench, nil, nil)

	memo, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)
	assert.Empty(t, memo.KeyBenchmarks)

	found := false
	for _, w := range memo.Metadata.Warnings {
		if w == "benchmark: warehouse timeout" {
			found = true
		}
	}
	assert.True(t, found, "expected benchmark failure in warnings, got %v", memo.Metadata.Warnings)
	assert.Equal(t, model.RunStatusComplete, st.statuses[len(st.statuses)-1])
}

func TestAnalyze_NilBenchSkipsStage(t *testing.T) {
	p := New(testConfig(), newMemStore(), nil, nil, nil)
	memo, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.NoError(t, err)
	assert.Empty(t, memo.KeyBenchmarks)
	assert.Empty(t, memo.Metadata.Warnings)
}

func TestAnalyze_StoreCreateFailureIsFatal(t *testing.T) {
	st := newMemStore()
	st.failCreate = true
	p := New(testConfig(), st, nil, nil, nil)

	_, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	assert.Error(t, err)
}

func TestAnalyze_SaveFailureIsFatal(t *testing.T) {
	st := newMemStore()
	st.failSave = true
	p := New(testConfig(), st, nil, nil, nil)

	_, err := p.Analyze(context.Background(), analysisDocs(), model.DefaultWeightings())
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, st.statuses[len(st.statuses)-1])
}

func TestAnalyze_DetectsCrossDocumentRisks(t *testing.T) {
	docs := []model.Document{
		{ID: "deck", Filename: "acme_deck.md", Text: "ARR of $2M with 3 co-founders."},
		{ID: "memo", Filename: "acme_memo.md", Text: "ARR of $3M with 2 co-founders."},
	}
	p := New(testConfig(), newMemStore(), nil, nil, nil)

	memo, err := p.Analyze(context.Background(), docs, model.DefaultWeightings())
	require.NoError(t, err)

	require.NotEmpty(t, memo.RiskAssessment.HighPriority)
	var metrics []string
	for _, f := range memo.RiskAssessment.HighPriority {
		metrics = append(metrics, f.AffectedMetrics...)
	}
	assert.Contains(t, metrics, "arr")
	assert.Contains(t, metrics, "founders")
	assert.NotEmpty(t, memo.Recommendation.DiligenceQuestions)
}
