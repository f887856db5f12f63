package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

func strongTractionMetrics() *model.InvestmentMetrics {
	m := &model.InvestmentMetrics{}
	arr := 10e6
	growth := 300.0
	ratio := 8.0
	m.Revenue.ARR = &arr
	m.Revenue.GrowthRate = &growth
	m.Traction.LTVCACRatio = &ratio
	return m
}

func weakTractionMetrics() *model.InvestmentMetrics {
	m := &model.InvestmentMetrics{}
	arr := 10e3
	growth := 10.0
	churn := 15.0
	m.Revenue.ARR = &arr
	m.Revenue.GrowthRate = &growth
	m.Traction.ChurnRate = &churn
	return m
}

func TestScoreTraction_StrongCompany(t *testing.T) {
	score := scoreTraction(strongTractionMetrics())
	assert.Greater(t, score, 80.0)
}

func TestScoreTraction_WeakCompany(t *testing.T) {
	score := scoreTraction(weakTractionMetrics())
	assert.Less(t, score, 40.0)
}

func TestScoreTraction_NilIsNeutral(t *testing.T) {
	assert.InDelta(t, neutralScore, scoreTraction(nil), 0.001)
}

func TestScoreMarket(t *testing.T) {
	claims := &model.MarketClaims{
		TAM:        f64(5e9),
		SAM:        f64(500e6),
		GrowthRate: f64(0.25),
		Trends:     []string{"consolidation"},
	}
	validation := ValidateMarketClaims(claims, 0)

	score := scoreMarket(claims, validation)
	// 40 + 15 (TAM >= $1B) + 10 (valid funnel) + 10 (healthy growth) + 5 (trends)
	assert.InDelta(t, 80, score, 0.001)

	assert.InDelta(t, neutralScore, scoreMarket(nil, MarketValidation{Valid: true}), 0.001)
}

func TestScoreMarket_PenalizesInvalidSizing(t *testing.T) {
	claims := &model.MarketClaims{TAM: f64(10e9), SAM: f64(6e9)}
	validation := ValidateMarketClaims(claims, 0)
	require.False(t, validation.Valid)

	score := scoreMarket(claims, validation)
	// 40 + 15 (TAM) - 10 (validation errors)
	assert.InDelta(t, 45, score, 0.001)
}

func TestScoreTeam(t *testing.T) {
	exits := 1
	exp := 12.0
	profile := &model.TeamProfile{
		Founders:           []model.TeamMember{{IsFounder: true}, {IsFounder: true}},
		PriorExits:         &exits,
		AvgYearsExperience: &exp,
		DomainExpertise:    []string{"payments"},
	}

	// 40 + 10 (2 founders) + 10 (exit) + 10 (experience) + 5 (expertise)
	assert.InDelta(t, 75, scoreTeam(nil, profile), 0.001)

	assert.InDelta(t, neutralScore, scoreTeam(nil, nil), 0.001)
}

func TestScoreProduct(t *testing.T) {
	m := &model.InvestmentMetrics{}
	nps := 60.0
	gm := 75.0
	m.Traction.NPS = &nps
	m.Revenue.GrossMargin = &gm

	// 40 + 15 (NPS) + 10 (margin)
	assert.InDelta(t, 65, scoreProduct(m, nil), 0.001)
	assert.InDelta(t, neutralScore, scoreProduct(nil, nil), 0.001)
}

func TestScoreCompetitive(t *testing.T) {
	assert.InDelta(t, neutralScore, scoreCompetitive(nil, nil), 0.001)

	full := &model.MarketClaims{
		Competitors:   []string{"a", "b", "c"},
		Barriers:      []string{"regulatory"},
		Trends:        []string{"consolidation"},
		Opportunities: []string{"expansion"},
	}
	assert.InDelta(t, 80, scoreCompetitive(full, nil), 0.001)

	// Omitting two known competitors drops the completeness to 0.8.
	assert.InDelta(t, 70, scoreCompetitive(full, []string{"Adyen", "Square"}), 0.001)

	empty := &model.MarketClaims{}
	assert.InDelta(t, 30, scoreCompetitive(empty, nil), 0.001)
}

func TestScorePhase_RejectsInvalidWeightings(t *testing.T) {
	_, err := ScorePhase(ScoreInput{}, model.Weightings{MarketOpportunity: 50, Team: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weightings")
}

func TestScorePhase_WeightedTotal(t *testing.T) {
	input := ScoreInput{Metrics: strongTractionMetrics()}

	breakdown, err := ScorePhase(input, model.DefaultWeightings())
	require.NoError(t, err)

	assert.Len(t, breakdown.Raw, 5)
	assert.Len(t, breakdown.Weighted, 5)

	var sum float64
	for dim, raw := range breakdown.Raw {
		assert.GreaterOrEqual(t, raw, 0.0)
		assert.LessOrEqual(t, raw, 100.0)
		sum += breakdown.Weighted[dim]
	}
	assert.InDelta(t, sum, breakdown.Total, 0.001)
	assert.NotEmpty(t, breakdown.Methodology)
}

func TestScorePhase_AllNeutralInputLandsMidBand(t *testing.T) {
	breakdown, err := ScorePhase(ScoreInput{}, model.DefaultWeightings())
	require.NoError(t, err)
	assert.InDelta(t, neutralScore, breakdown.Total, 0.001)
}

func TestScoreConfidence_CompleteGroupsRaise(t *testing.T) {
	m := strongTractionMetrics()
	founders := 2
	m.Team.FoundersCount = &founders
	experience := 12.0

	input := ScoreInput{
		Metrics:      m,
		TeamProfile:  &model.TeamProfile{AvgYearsExperience: &experience},
		MarketClaims: &model.MarketClaims{TAM: f64(5e9), GrowthRate: f64(0.25)},
	}

	// 0.7 base + 0.1 per complete group, nothing missing.
	assert.InDelta(t, 1.0, scoreConfidence(input), 0.001)
}

func TestScoreConfidence_PenalizesGaps(t *testing.T) {
	// No metrics at all: 0.7 - 0.15 (no ARR) - 0.1 (no founders).
	assert.InDelta(t, 0.45, scoreConfidence(ScoreInput{}), 0.001)
}

func TestScoreConfidence_TractionCountsAloneDoNotRaise(t *testing.T) {
	m := &model.InvestmentMetrics{}
	customers := 1200
	churn := 3.0
	m.Traction.Customers = &customers
	m.Traction.ChurnRate = &churn

	// Customer and churn counts complete no group; with ARR and founders
	// missing the confidence stays at 0.7 - 0.15 - 0.1.
	assert.InDelta(t, 0.45, scoreConfidence(ScoreInput{Metrics: m}), 0.001)
}

func TestScoreConfidence_AveragesWithExtraction(t *testing.T) {
	input := ScoreInput{
		Extraction: &model.EntityExtractionResult{Confidence: 0.9},
	}
	// (0.45 + 0.9) / 2
	assert.InDelta(t, 0.675, scoreConfidence(input), 0.001)
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-5))
	assert.Equal(t, 100.0, clampScore(140))
	assert.Equal(t, 55.0, clampScore(55))
}
