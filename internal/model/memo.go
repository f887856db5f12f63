package model

import (
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// WeightingTolerance is how far the weighting sum may drift from 100.
const WeightingTolerance = 1.0

// Weightings distributes 100 points across the five scoring dimensions.
type Weightings struct {
	MarketOpportunity   float64 `json:"market_opportunity" yaml:"market_opportunity" mapstructure:"market_opportunity"`
	Team                float64 `json:"team" yaml:"team" mapstructure:"team"`
	Traction            float64 `json:"traction" yaml:"traction" mapstructure:"traction"`
	Product             float64 `json:"product" yaml:"product" mapstructure:"product"`
	CompetitivePosition float64 `json:"competitive_position" yaml:"competitive_position" mapstructure:"competitive_position"`
}

// DefaultWeightings returns the standard dimension split.
func DefaultWeightings() Weightings {
	return Weightings{
		MarketOpportunity:   25,
		Team:                25,
		Traction:            20,
		Product:             15,
		CompetitivePosition: 15,
	}
}

// Sum returns the total of all dimension weights.
func (w Weightings) Sum() float64 {
	return w.MarketOpportunity + w.Team + w.Traction + w.Product + w.CompetitivePosition
}

// Validate rejects weightings with negative components or a sum outside
// 100±WeightingTolerance. Invalid weightings are never silently corrected.
func (w Weightings) Validate() error {
	var errs []string
	for name, v := range map[string]float64{
		"market_opportunity":   w.MarketOpportunity,
		"team":                 w.Team,
		"traction":             w.Traction,
		"product":              w.Product,
		"competitive_position": w.CompetitivePosition,
	} {
		if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if sum := w.Sum(); math.Abs(sum-100) > WeightingTolerance {
		errs = append(errs, eris.Errorf("weightings must sum to 100, got %.1f", sum).Error())
	}
	if len(errs) > 0 {
		return eris.Errorf("weightings: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ScoreBreakdown holds the per-dimension and total signal scores.
type ScoreBreakdown struct {
	Raw         map[string]float64 `json:"raw"`      // dimension → 0..100
	Weighted    map[string]float64 `json:"weighted"` // dimension → weighted points
	Total       float64            `json:"total"`    // 0..100
	Confidence  float64            `json:"confidence"`
	Methodology string             `json:"methodology,omitempty"`
}

// RecommendationType is the categorical investment recommendation.
type RecommendationType string

const (
	RecStrongBuy  RecommendationType = "strong-buy"
	RecBuy        RecommendationType = "buy"
	RecHold       RecommendationType = "hold"
	RecPass       RecommendationType = "pass"
	RecStrongPass RecommendationType = "strong-pass"
)

// MemoSummary is the headline section of a deal memo.
type MemoSummary struct {
	CompanyName     string             `json:"company_name"`
	OneLiner        string             `json:"one_liner,omitempty"`
	Sector          string             `json:"sector"`
	Stage           FundingStage       `json:"stage,omitempty"`
	SignalScore     float64            `json:"signal_score"`
	Recommendation  RecommendationType `json:"recommendation"`
	ConfidenceLevel float64            `json:"confidence_level"`
}

// RevenueProjection is a simple 1/3/5-year ARR outlook.
type RevenueProjection struct {
	Year1 float64 `json:"year1"`
	Year3 float64 `json:"year3"`
	Year5 float64 `json:"year5"`
}

// GrowthPotential summarizes the upside case.
type GrowthPotential struct {
	UpsideSummary      string            `json:"upside_summary"`
	KeyDrivers         []string          `json:"key_drivers"`
	ScalabilityFactors []string          `json:"scalability_factors,omitempty"`
	RevenueProjection  RevenueProjection `json:"revenue_projection"`
}

// RiskAssessment buckets all flags by severity.
type RiskAssessment struct {
	OverallRiskScore float64    `json:"overall_risk_score"` // 0..100, higher = riskier
	HighPriority     []RiskFlag `json:"high_priority_risks"`
	MediumPriority   []RiskFlag `json:"medium_priority_risks"`
	LowPriority      []RiskFlag `json:"low_priority_risks"`
	MitigationPlan   []string   `json:"risk_mitigation_plan,omitempty"`
}

// Recommendation is the narrative conclusion of the memo.
type Recommendation struct {
	Narrative          string             `json:"narrative"`
	Thesis             string             `json:"investment_thesis,omitempty"`
	Category           RecommendationType `json:"category"`
	IdealCheckSize     string             `json:"ideal_check_size,omitempty"`
	IdealValuationCap  string             `json:"ideal_valuation_cap,omitempty"`
	DiligenceQuestions []string           `json:"key_diligence_questions"`
	FollowUpActions    []string           `json:"follow_up_actions,omitempty"`
}

// MemoMetadata records how the memo was produced, including warnings from
// recovered stage failures so a reviewer knows confidence is reduced.
type MemoMetadata struct {
	GeneratedBy     string   `json:"generated_by"`
	Analyst         string   `json:"analyst,omitempty"`
	AnalysisVersion string   `json:"analysis_version"`
	SourceDocuments []string `json:"source_documents"`
	ProcessingTime  int64    `json:"processing_time_ms"`
	DataQuality     float64  `json:"data_quality"`
	Warnings        []string `json:"warnings,omitempty"`
}

// DealMemo is the terminal artifact of one analysis run. Published memos are
// never mutated in place; new versions are appended.
type DealMemo struct {
	ID              string                `json:"id"`
	Version         int                   `json:"version"`
	Summary         MemoSummary           `json:"summary"`
	KeyBenchmarks   []BenchmarkComparison `json:"key_benchmarks,omitempty"`
	GrowthPotential GrowthPotential       `json:"growth_potential"`
	RiskAssessment  RiskAssessment        `json:"risk_assessment"`
	Recommendation  Recommendation        `json:"investment_recommendation"`
	Score           ScoreBreakdown        `json:"score_breakdown"`
	Weightings      Weightings            `json:"analysis_weightings"`
	Metadata        MemoMetadata          `json:"metadata"`
	CreatedAt       time.Time             `json:"created_at"`
}
