package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-vc/dealmemo-cli/internal/benchmark"
	"github.com/aegis-vc/dealmemo-cli/internal/config"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
	"github.com/aegis-vc/dealmemo-cli/internal/store"
	"github.com/aegis-vc/dealmemo-cli/pkg/anthropic"
)

const analysisVersion = "1.0"

// Pipeline orchestrates the deal-memo analysis stages.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	bench     benchmark.Source
	lookup    SectorLookup
	anthropic anthropic.Client
}

// New creates a Pipeline with all dependencies. bench, lookup, and aiClient
// may be nil; the corresponding stages degrade instead of failing.
func New(
	cfg *config.Config,
	st store.Store,
	bench benchmark.Source,
	lookup SectorLookup,
	aiClient anthropic.Client,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		bench:     bench,
		lookup:    lookup,
		anthropic: aiClient,
	}
}

// Analyze runs the full pipeline over a document batch and returns the
// persisted memo. Only input errors fail the run; stage failures degrade the
// memo and are recorded as warnings in its metadata.
func (p *Pipeline) Analyze(ctx context.Context, docs []model.Document, weightings model.Weightings) (*model.DealMemo, error) {
	if len(docs) == 0 {
		return nil, eris.New("pipeline: no documents provided")
	}
	if err := weightings.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: weightings")
	}

	started := time.Now()
	log := zap.L().With(zap.Int("documents", len(docs)))
	log.Info("pipeline: starting analysis")

	run, err := p.store.CreateRun(ctx, guessCompanyName(docs))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	// Stage tracking helper with mutex for concurrent access.
	var stagesMu sync.Mutex
	var stages []model.StageResult
	var warnings []string
	stageTimeout := time.Duration(p.cfg.Analysis.StageTimeoutMS) * time.Millisecond
	trackStage := func(name string, fn func(ctx context.Context) (map[string]any, error)) {
		stageID, stageErr := p.store.CreateStage(ctx, run.ID, name)
		if stageErr != nil {
			log.Warn("pipeline: failed to create stage", zap.String("stage", name), zap.Error(stageErr))
		}

		sctx := ctx
		cancel := func() {}
		if stageTimeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, stageTimeout)
		}
		start := time.Now()
		metadata, fnErr := fn(sctx)
		cancel()
		duration := time.Since(start).Milliseconds()

		result := model.StageResult{
			Name:     name,
			Status:   model.StageStatusComplete,
			Duration: duration,
			Metadata: metadata,
		}
		if fnErr != nil {
			result.Status = model.StageStatusFailed
			result.Error = fnErr.Error()
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if stageID != "" {
			_ = p.store.CompleteStage(ctx, stageID, &result)
		}
		stagesMu.Lock()
		stages = append(stages, result)
		if fnErr != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, fnErr.Error()))
		}
		stagesMu.Unlock()
	}

	// ===== Stage 1: Extraction =====
	setStatus(model.RunStatusExtracting)

	var extraction *model.EntityExtractionResult
	perDoc := make([]*model.EntityExtractionResult, 0, len(docs))

	trackStage("extract", func(ctx context.Context) (map[string]any, error) {
		extraction = ExtractPhase(ctx, docs, ExtractionHints{}, p.anthropic, p.cfg.Anthropic, p.cfg.Extraction)
		for _, doc := range docs {
			r := ExtractDocument(doc, p.cfg.Extraction)
			perDoc = append(perDoc, &r)
		}
		return map[string]any{
			"entities":   len(extraction.Entities),
			"confidence": extraction.Confidence,
		}, nil
	})
	warnings = append(warnings, extraction.Warnings...)

	// ===== Stage 2: Classification =====
	setStatus(model.RunStatusClassifying)

	var classification model.SectorClassification
	var profile model.CompanyProfile
	trackStage("classify", func(ctx context.Context) (map[string]any, error) {
		if extraction.CompanyProfile != nil {
			profile = *extraction.CompanyProfile
		}
		classification = ClassifyPhase(ctx, profile, p.lookup)
		return map[string]any{
			"sector":     classification.PrimarySector,
			"confidence": classification.Confidence,
		}, nil
	})

	// The configured default sector stands in when classification lands on
	// the catch-all.
	sector := classification.PrimarySector
	if (sector == "" || sector == fallbackSector) && p.cfg.Analysis.DefaultSector != "" {
		sector = p.cfg.Analysis.DefaultSector
	}

	// ===== Stage 3: Benchmarks =====
	setStatus(model.RunStatusBenchmarking)

	var comparisons []model.BenchmarkComparison
	var referenceCompetitors []string
	// The configured reference TAM is the fallback when the warehouse has
	// no estimate or is unreachable.
	referenceTAM := p.cfg.Analysis.ReferenceTAM
	trackStage("benchmark", func(ctx context.Context) (map[string]any, error) {
		if p.bench == nil {
			return map[string]any{"skipped": true}, nil
		}
		data, benchErr := p.bench.FetchBenchmarks(ctx, benchmark.Query{
			Sector:      sector,
			Stage:       stageOf(extraction),
			Geography:   profile.Location,
			CompanyText: strings.TrimSpace(strings.Join([]string{profile.Name, profile.OneLiner, profile.Description}, " ")),
		})
		if benchErr != nil {
			return nil, benchErr
		}
		if extraction.Metrics != nil {
			comparisons = ComparePhase(*extraction.Metrics, *data)
		}
		if tam, tamErr := p.bench.ReferenceTAM(ctx, sector); tamErr == nil {
			if tam > 0 {
				referenceTAM = tam
			}
		} else {
			log.Warn("pipeline: reference TAM lookup failed", zap.Error(tamErr))
		}
		if competitors, compErr := p.bench.ReferenceCompetitors(ctx, sector); compErr == nil {
			referenceCompetitors = competitors
		} else {
			log.Warn("pipeline: reference competitor lookup failed", zap.Error(compErr))
		}
		return map[string]any{"comparisons": len(comparisons)}, nil
	})

	// ===== Stage 4: Risk detection (detectors fan out) =====
	setStatus(model.RunStatusDetectingRisk)

	var inconsistencies, marketFlags, anomalyFlags []model.RiskFlag
	var validation MarketValidation
	var health FinancialHealthReport

	var g errgroup.Group

	g.Go(func() error {
		trackStage("detect_inconsistency", func(context.Context) (map[string]any, error) {
			inconsistencies = DetectInconsistencies(perDoc)
			return map[string]any{"flags": len(inconsistencies)}, nil
		})
		return nil
	})
	g.Go(func() error {
		trackStage("detect_market_size", func(context.Context) (map[string]any, error) {
			validation = ValidateMarketClaims(extraction.MarketClaims, referenceTAM)
			marketFlags = GenerateMarketSizeRiskFlags(extraction.MarketClaims, validation, sourceDocIDs(docs))
			return map[string]any{
				"flags": len(marketFlags),
				"valid": validation.Valid,
			}, nil
		})
		return nil
	})
	g.Go(func() error {
		trackStage("detect_financial_anomaly", func(context.Context) (map[string]any, error) {
			anomalyFlags, health = DetectFinancialAnomalies(extraction.Metrics, sector, sourceDocIDs(docs))
			return map[string]any{
				"flags":  len(anomalyFlags),
				"checks": health.ChecksRun,
			}, nil
		})
		return nil
	})
	_ = g.Wait()

	allFlags := model.SortFlags(concatFlags(inconsistencies, marketFlags, anomalyFlags))

	// ===== Stage 5: Scoring =====
	setStatus(model.RunStatusScoring)

	input := ScoreInput{
		Metrics:              extraction.Metrics,
		TeamProfile:          extraction.TeamProfile,
		MarketClaims:         extraction.MarketClaims,
		Validation:           validation,
		Classification:       classification,
		Extraction:           extraction,
		ReferenceCompetitors: referenceCompetitors,
	}

	var breakdown model.ScoreBreakdown
	var scoreErr error
	trackStage("score", func(context.Context) (map[string]any, error) {
		breakdown, scoreErr = ScorePhase(input, weightings)
		if scoreErr != nil {
			return nil, scoreErr
		}
		return map[string]any{"total": breakdown.Total}, nil
	})
	if scoreErr != nil {
		setStatus(model.RunStatusFailed)
		return nil, scoreErr
	}

	// ===== Stage 6: Memo synthesis =====
	var memo *model.DealMemo
	trackStage("recommend", func(context.Context) (map[string]any, error) {
		assessment := BuildRiskAssessment(allFlags)
		memo = &model.DealMemo{
			Summary:         buildSummary(extraction, classification, breakdown),
			KeyBenchmarks:   comparisons,
			GrowthPotential: BuildGrowthPotential(input),
			RiskAssessment:  assessment,
			Recommendation:  BuildRecommendation(breakdown, assessment, input),
			Score:           breakdown,
			Weightings:      weightings,
			CreatedAt:       time.Now().UTC(),
		}
		return map[string]any{"recommendation": string(memo.Summary.Recommendation)}, nil
	})

	memo.Metadata = model.MemoMetadata{
		GeneratedBy:     "dealmemo-cli",
		Analyst:         p.cfg.Analysis.AnalystName,
		AnalysisVersion: analysisVersion,
		SourceDocuments: sourceDocIDs(docs),
		ProcessingTime:  time.Since(started).Milliseconds(),
		DataQuality:     extraction.Confidence,
		Warnings:        warnings,
	}

	if saveErr := p.store.SaveMemo(ctx, memo); saveErr != nil {
		setStatus(model.RunStatusFailed)
		return nil, eris.Wrap(saveErr, "pipeline: save memo")
	}
	if attachErr := p.store.AttachMemo(ctx, run.ID, memo.ID); attachErr != nil {
		log.Warn("pipeline: failed to attach memo to run", zap.Error(attachErr))
	}
	setStatus(model.RunStatusComplete)

	log.Info("pipeline: analysis complete",
		zap.String("run_id", run.ID),
		zap.String("memo_id", memo.ID),
		zap.Int("memo_version", memo.Version),
		zap.Float64("score", breakdown.Total),
		zap.String("recommendation", string(memo.Summary.Recommendation)),
		zap.Int("risk_flags", len(allFlags)),
	)

	return memo, nil
}

func buildSummary(extraction *model.EntityExtractionResult, classification model.SectorClassification, breakdown model.ScoreBreakdown) model.MemoSummary {
	summary := model.MemoSummary{
		Sector:          classification.PrimarySector,
		SignalScore:     breakdown.Total,
		Recommendation:  RecommendationFor(breakdown.Total),
		ConfidenceLevel: breakdown.Confidence,
	}
	if extraction.CompanyProfile != nil {
		summary.CompanyName = extraction.CompanyProfile.Name
		summary.OneLiner = extraction.CompanyProfile.OneLiner
		summary.Stage = extraction.CompanyProfile.Stage
	}
	if summary.CompanyName == "" {
		summary.CompanyName = "unknown"
	}
	return summary
}

func stageOf(extraction *model.EntityExtractionResult) model.FundingStage {
	if extraction.Metrics != nil && extraction.Metrics.Funding.Stage != nil {
		return *extraction.Metrics.Funding.Stage
	}
	if extraction.CompanyProfile != nil {
		return extraction.CompanyProfile.Stage
	}
	return ""
}

func sourceDocIDs(docs []model.Document) []string {
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids
}

func concatFlags(groups ...[]model.RiskFlag) []model.RiskFlag {
	var out []model.RiskFlag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// guessCompanyName derives a provisional run label from the first document's
// filename; the memo itself carries the extracted company name.
func guessCompanyName(docs []model.Document) string {
	base := filepath.Base(docs[0].Filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if name == "" {
		return "unknown"
	}
	return name
}
