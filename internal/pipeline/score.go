package pipeline

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// Scoring dimension names, used as keys in the breakdown maps.
const (
	DimMarket      = "market_opportunity"
	DimTeam        = "team"
	DimTraction    = "traction"
	DimProduct     = "product"
	DimCompetitive = "competitive_position"
)

// neutralScore is assigned to a dimension with no usable signal, so missing
// data pulls toward the middle instead of punishing or rewarding.
const neutralScore = 40.0

// ScoreInput bundles everything the scorer reads.
type ScoreInput struct {
	Metrics        *model.InvestmentMetrics
	TeamProfile    *model.TeamProfile
	MarketClaims   *model.MarketClaims
	Validation     MarketValidation
	Classification model.SectorClassification
	Extraction     *model.EntityExtractionResult

	// ReferenceCompetitors are sector competitors known from the warehouse,
	// used to penalize landscapes that omit major players.
	ReferenceCompetitors []string
}

// ScorePhase computes the five dimension scores, applies the weightings,
// and derives an overall confidence. Invalid weightings are an error, never
// silently renormalized.
func ScorePhase(input ScoreInput, weights model.Weightings) (model.ScoreBreakdown, error) {
	if err := weights.Validate(); err != nil {
		return model.ScoreBreakdown{}, eris.Wrap(err, "score: invalid weightings")
	}

	raw := map[string]float64{
		DimMarket:      scoreMarket(input.MarketClaims, input.Validation),
		DimTeam:        scoreTeam(input.Metrics, input.TeamProfile),
		DimTraction:    scoreTraction(input.Metrics),
		DimProduct:     scoreProduct(input.Metrics, input.Extraction),
		DimCompetitive: scoreCompetitive(input.MarketClaims, input.ReferenceCompetitors),
	}

	weightOf := map[string]float64{
		DimMarket:      weights.MarketOpportunity,
		DimTeam:        weights.Team,
		DimTraction:    weights.Traction,
		DimProduct:     weights.Product,
		DimCompetitive: weights.CompetitivePosition,
	}

	weighted := make(map[string]float64, len(raw))
	total := 0.0
	for dim, score := range raw {
		w := score * weightOf[dim] / 100
		weighted[dim] = w
		total += w
	}

	breakdown := model.ScoreBreakdown{
		Raw:        raw,
		Weighted:   weighted,
		Total:      total,
		Confidence: scoreConfidence(input),
		Methodology: fmt.Sprintf(
			"weighted rubric: market %.0f%%, team %.0f%%, traction %.0f%%, product %.0f%%, competitive %.0f%%",
			weights.MarketOpportunity, weights.Team, weights.Traction,
			weights.Product, weights.CompetitivePosition),
	}

	zap.L().Info("score: computed",
		zap.Float64("total", breakdown.Total),
		zap.Float64("confidence", breakdown.Confidence),
	)
	return breakdown, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func scoreTraction(m *model.InvestmentMetrics) float64 {
	if m == nil {
		return neutralScore
	}
	score := neutralScore

	if arr := m.Revenue.ARR; arr != nil {
		switch {
		case *arr >= 10e6:
			score += 20
		case *arr >= 1e6:
			score += 12
		case *arr >= 100e3:
			score += 6
		default:
			score -= 5
		}
	}

	if g := m.Revenue.GrowthRate; g != nil {
		switch {
		case *g >= 200:
			score += 20
		case *g >= 100:
			score += 15
		case *g >= 50:
			score += 10
		case *g >= 20:
			score += 5
		default:
			score -= 5
		}
	}

	if ratio := m.Traction.LTVCACRatio; ratio != nil {
		switch {
		case *ratio >= ltvCACIdeal:
			score += 10
		case *ratio >= ltvCACWeak:
			score += 5
		case *ratio < ltvCACCritical:
			score -= 10
		}
	}

	if churn := m.Traction.ChurnRate; churn != nil {
		switch {
		case *churn <= 5:
			score += 5
		case *churn > 10:
			score -= 15
		}
	}

	if c := m.Traction.Customers; c != nil && *c >= 1000 {
		score += 5
	}

	return clampScore(score)
}

func scoreMarket(claims *model.MarketClaims, validation MarketValidation) float64 {
	if claims == nil {
		return neutralScore
	}
	score := neutralScore

	if tam := claims.TAM; tam != nil {
		switch {
		case *tam > tamCeiling:
			score -= 10
		case *tam >= 1e9:
			score += 15
		case *tam >= 100e6:
			score += 5
		default:
			score -= 10
		}
	}

	if validation.Valid && validation.TAMSAMRatio != nil {
		score += 10
	}
	if len(validation.Errors) > 0 {
		score -= 10
	}

	if g := claims.GrowthRate; g != nil {
		switch {
		case *g < 0:
			score -= 10
		case *g >= 0.20 && *g <= 0.50:
			score += 10
		case *g > 0.50:
			score += 5
		}
	}

	if len(claims.Trends) > 0 {
		score += 5
	}

	return clampScore(score)
}

func scoreTeam(m *model.InvestmentMetrics, profile *model.TeamProfile) float64 {
	score := neutralScore
	scored := false

	var founders int
	if profile != nil && len(profile.Founders) > 0 {
		founders = len(profile.Founders)
	} else if m != nil && m.Team.FoundersCount != nil {
		founders = *m.Team.FoundersCount
	}
	if founders > 0 {
		scored = true
		switch {
		case founders >= 2 && founders <= 3:
			score += 10
		case founders > 4:
			score -= 5
		}
	}

	if profile != nil {
		if profile.PriorExits != nil && *profile.PriorExits > 0 {
			score += 10
			scored = true
		}
		if profile.AvgYearsExperience != nil && *profile.AvgYearsExperience >= 10 {
			score += 10
			scored = true
		}
		if len(profile.DomainExpertise) > 0 {
			score += 5
			scored = true
		}
	}

	if m != nil && m.Team.Size != nil && *m.Team.Size >= 10 {
		score += 5
		scored = true
	}

	if !scored {
		return neutralScore
	}
	return clampScore(score)
}

func scoreProduct(m *model.InvestmentMetrics, extraction *model.EntityExtractionResult) float64 {
	score := neutralScore
	scored := false

	if m != nil {
		if nps := m.Traction.NPS; nps != nil {
			scored = true
			switch {
			case *nps >= 50:
				score += 15
			case *nps >= 30:
				score += 10
			case *nps < 0:
				score -= 10
			}
		}
		if gm := m.Revenue.GrossMargin; gm != nil {
			scored = true
			switch {
			case *gm >= 70:
				score += 10
			case *gm >= 50:
				score += 5
			}
		}
		if nrr := m.Revenue.NetRevenueRetention; nrr != nil && *nrr >= 110 {
			score += 10
			scored = true
		}
	}

	if extraction != nil && extraction.CompanyProfile != nil && extraction.CompanyProfile.Description != "" {
		score += 5
		scored = true
	}

	if !scored {
		return neutralScore
	}
	return clampScore(score)
}

func scoreCompetitive(claims *model.MarketClaims, reference []string) float64 {
	if claims == nil {
		return neutralScore
	}
	// Completeness of the landscape maps onto a band around neutral.
	return clampScore(30 + CompetitiveCompleteness(claims, reference)*50)
}

// keyMetricGroup names the metric clusters whose presence raises scoring
// confidence.
type keyMetricGroup struct {
	name     string
	complete func(ScoreInput) bool
}

var keyGroups = []keyMetricGroup{
	{"revenue and growth", func(in ScoreInput) bool {
		return in.Metrics != nil && in.Metrics.Revenue.ARR != nil && in.Metrics.Revenue.GrowthRate != nil
	}},
	{"team and experience", func(in ScoreInput) bool {
		if in.TeamProfile == nil || in.TeamProfile.AvgYearsExperience == nil {
			return false
		}
		if len(in.TeamProfile.Founders) > 0 {
			return true
		}
		return in.Metrics != nil && in.Metrics.Team.FoundersCount != nil
	}},
	{"market size and growth", func(in ScoreInput) bool {
		return in.MarketClaims != nil && in.MarketClaims.TAM != nil && in.MarketClaims.GrowthRate != nil
	}},
}

// scoreConfidence starts from a 0.7 base, rewards complete metric groups,
// penalizes critical gaps, and averages with the extraction confidence.
func scoreConfidence(input ScoreInput) float64 {
	conf := 0.7
	for _, g := range keyGroups {
		if g.complete(input) {
			conf += 0.1
		}
	}
	if input.Metrics == nil || input.Metrics.Revenue.ARR == nil {
		conf -= 0.15
	}
	missingFounders := true
	if input.TeamProfile != nil && len(input.TeamProfile.Founders) > 0 {
		missingFounders = false
	}
	if input.Metrics != nil && input.Metrics.Team.FoundersCount != nil {
		missingFounders = false
	}
	if missingFounders {
		conf -= 0.1
	}

	if input.Extraction != nil {
		conf = (conf + input.Extraction.Confidence) / 2
	}

	if conf < 0.1 {
		conf = 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
