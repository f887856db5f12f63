package pipeline

import (
	"fmt"
	"strings"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// Recommendation score thresholds. Bands are checked top down, so the
// mapping is monotonic in the total score.
const (
	strongBuyThreshold = 80.0
	buyThreshold       = 65.0
	holdThreshold      = 45.0
	passThreshold      = 30.0
)

// RecommendationFor maps a total signal score onto a categorical
// recommendation.
func RecommendationFor(total float64) model.RecommendationType {
	switch {
	case total >= strongBuyThreshold:
		return model.RecStrongBuy
	case total >= buyThreshold:
		return model.RecBuy
	case total >= holdThreshold:
		return model.RecHold
	case total >= passThreshold:
		return model.RecPass
	default:
		return model.RecStrongPass
	}
}

// BuildRiskAssessment buckets flags by severity and derives an overall risk
// score in [0,100], higher meaning riskier.
func BuildRiskAssessment(flags []model.RiskFlag) model.RiskAssessment {
	assessment := model.RiskAssessment{}
	for _, f := range flags {
		switch f.Severity {
		case model.SeverityHigh:
			assessment.HighPriority = append(assessment.HighPriority, f)
		case model.SeverityMedium:
			assessment.MediumPriority = append(assessment.MediumPriority, f)
		default:
			assessment.LowPriority = append(assessment.LowPriority, f)
		}
	}

	score := float64(len(assessment.HighPriority))*20 +
		float64(len(assessment.MediumPriority))*10 +
		float64(len(assessment.LowPriority))*4
	if score > 100 {
		score = 100
	}
	assessment.OverallRiskScore = score

	for _, f := range assessment.HighPriority {
		if f.SuggestedMitigation != "" {
			assessment.MitigationPlan = append(assessment.MitigationPlan, f.SuggestedMitigation)
		}
	}
	return assessment
}

// BuildRecommendation synthesizes the narrative conclusion. Every HIGH
// severity flag yields at least one diligence question so nothing urgent is
// buried.
func BuildRecommendation(score model.ScoreBreakdown, assessment model.RiskAssessment, input ScoreInput) model.Recommendation {
	category := RecommendationFor(score.Total)

	rec := model.Recommendation{
		Category:  category,
		Narrative: recommendationNarrative(category, score, assessment, input),
		Thesis:    investmentThesis(input),
	}

	for _, f := range assessment.HighPriority {
		rec.DiligenceQuestions = append(rec.DiligenceQuestions, diligenceQuestion(f))
	}
	rec.DiligenceQuestions = append(rec.DiligenceQuestions, standingQuestions(input)...)

	switch category {
	case model.RecStrongBuy, model.RecBuy:
		rec.FollowUpActions = []string{
			"schedule a partner meeting with the founders",
			"request a data room with raw financials",
		}
		if ask := currentAsk(input); ask != "" {
			rec.IdealCheckSize = ask
		}
	case model.RecHold:
		rec.FollowUpActions = []string{
			"revisit after the next quarterly metrics update",
		}
	}

	return rec
}

func diligenceQuestion(f model.RiskFlag) string {
	if f.SuggestedMitigation != "" {
		return fmt.Sprintf("[%s] %s", f.Title, f.SuggestedMitigation)
	}
	return fmt.Sprintf("[%s] how does the company explain this: %s", f.Title, f.Description)
}

func standingQuestions(input ScoreInput) []string {
	var qs []string
	if input.Metrics == nil || input.Metrics.Revenue.ARR == nil {
		qs = append(qs, "what is current ARR, and how is it recognized?")
	}
	if input.TeamProfile == nil || len(input.TeamProfile.Founders) == 0 {
		qs = append(qs, "who are the founders and what is their relevant background?")
	}
	return qs
}

func currentAsk(input ScoreInput) string {
	if input.Metrics == nil || input.Metrics.Funding.CurrentAsk == nil {
		return ""
	}
	return "$" + formatValue(*input.Metrics.Funding.CurrentAsk)
}

func recommendationNarrative(category model.RecommendationType, score model.ScoreBreakdown, assessment model.RiskAssessment, input ScoreInput) string {
	var b strings.Builder

	company := "the company"
	if input.Extraction != nil && input.Extraction.CompanyProfile != nil && input.Extraction.CompanyProfile.Name != "" {
		company = input.Extraction.CompanyProfile.Name
	}

	fmt.Fprintf(&b, "%s scores %.0f/100 (%s, confidence %.0f%%). ",
		company, score.Total, category, score.Confidence*100)

	if dim, v := strongestDimension(score.Raw); dim != "" {
		fmt.Fprintf(&b, "Strongest dimension is %s at %.0f. ", strings.ReplaceAll(dim, "_", " "), v)
	}
	if dim, v := weakestDimension(score.Raw); dim != "" {
		fmt.Fprintf(&b, "Weakest dimension is %s at %.0f. ", strings.ReplaceAll(dim, "_", " "), v)
	}

	switch {
	case len(assessment.HighPriority) > 0:
		fmt.Fprintf(&b, "%d high-severity risk(s) require resolution before any commitment.",
			len(assessment.HighPriority))
	case len(assessment.MediumPriority) > 0:
		fmt.Fprintf(&b, "%d medium-severity risk(s) should be covered in diligence.",
			len(assessment.MediumPriority))
	default:
		b.WriteString("No significant risks were detected in the provided documents.")
	}

	return b.String()
}

func investmentThesis(input ScoreInput) string {
	if input.Extraction == nil || input.Extraction.CompanyProfile == nil {
		return ""
	}
	p := input.Extraction.CompanyProfile
	sector := input.Classification.PrimarySector
	if p.OneLiner != "" {
		return fmt.Sprintf("%s (%s): %s", p.Name, sector, p.OneLiner)
	}
	return fmt.Sprintf("%s operating in %s", p.Name, sector)
}

func strongestDimension(raw map[string]float64) (string, float64) {
	return extremeDimension(raw, func(a, b float64) bool { return a > b })
}

func weakestDimension(raw map[string]float64) (string, float64) {
	return extremeDimension(raw, func(a, b float64) bool { return a < b })
}

func extremeDimension(raw map[string]float64, better func(a, b float64) bool) (string, float64) {
	best := ""
	var bestV float64
	for _, dim := range []string{DimMarket, DimTeam, DimTraction, DimProduct, DimCompetitive} {
		v, ok := raw[dim]
		if !ok {
			continue
		}
		if best == "" || better(v, bestV) {
			best, bestV = dim, v
		}
	}
	return best, bestV
}

// BuildGrowthPotential projects a simple compounding ARR outlook with decaying
// growth and names the drivers behind it.
func BuildGrowthPotential(input ScoreInput) model.GrowthPotential {
	gp := model.GrowthPotential{}

	var arr, growth float64
	if input.Metrics != nil {
		if input.Metrics.Revenue.ARR != nil {
			arr = *input.Metrics.Revenue.ARR
		}
		if input.Metrics.Revenue.GrowthRate != nil {
			growth = *input.Metrics.Revenue.GrowthRate / 100
		}
	}

	if arr > 0 && growth > 0 {
		gp.RevenueProjection = projectRevenue(arr, growth)
		gp.UpsideSummary = fmt.Sprintf(
			"at a decaying growth rate starting from %.0f%%, ARR reaches %s in five years",
			growth*100, formatValue(gp.RevenueProjection.Year5))
	} else if arr > 0 {
		gp.RevenueProjection = model.RevenueProjection{Year1: arr, Year3: arr, Year5: arr}
		gp.UpsideSummary = "growth rate unknown; projection held flat at current ARR"
	} else {
		gp.UpsideSummary = "insufficient revenue data for a projection"
	}

	if input.MarketClaims != nil {
		if input.MarketClaims.GrowthRate != nil && *input.MarketClaims.GrowthRate > 0 {
			gp.KeyDrivers = append(gp.KeyDrivers,
				fmt.Sprintf("market growing %.0f%% per year", *input.MarketClaims.GrowthRate*100))
		}
		gp.KeyDrivers = append(gp.KeyDrivers, input.MarketClaims.Opportunities...)
		gp.ScalabilityFactors = append(gp.ScalabilityFactors, input.MarketClaims.Trends...)
	}
	if len(gp.KeyDrivers) == 0 {
		gp.KeyDrivers = []string{"no explicit growth drivers stated in the documents"}
	}

	return gp
}

// projectRevenue compounds ARR forward with the growth rate halving each
// year, a standard conservative decay.
func projectRevenue(arr, growth float64) model.RevenueProjection {
	years := make([]float64, 6)
	years[0] = arr
	g := growth
	for y := 1; y <= 5; y++ {
		years[y] = years[y-1] * (1 + g)
		g /= 2
	}
	return model.RevenueProjection{Year1: years[1], Year3: years[3], Year5: years[5]}
}
