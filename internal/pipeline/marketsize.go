package pipeline

import (
	"fmt"
	"strings"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// Market-sizing plausibility bounds. Ratios below the minimum are logical
// errors; ratios above the maximum are suspicious but not impossible.
const (
	minTAMSAMRatio = 2.0
	maxTAMSAMRatio = 100.0
	minSAMSOMRatio = 2.0
	maxSAMSOMRatio = 50.0

	minMarketGrowth = -0.05
	maxMarketGrowth = 1.00

	// tamCeiling is the TAM above which a claim is flagged outright.
	tamCeiling = 1e12

	// Plausible bounds on the number of competitors a deck names or counts.
	minCompetitorCount = 2
	maxCompetitorCount = 50

	// referenceOmissionPenalty is deducted per known competitor the
	// documents fail to mention.
	referenceOmissionPenalty = 0.1
)

// MarketValidation is the outcome of checking the company's market-size
// claims for internal consistency.
type MarketValidation struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	TAMSAMRatio    *float64 `json:"tam_sam_ratio,omitempty"`
	SAMSOMRatio    *float64 `json:"sam_som_ratio,omitempty"`
	ReferenceDelta *float64 `json:"reference_delta,omitempty"`
}

// ValidateMarketClaims checks TAM/SAM/SOM ordering and ratios, and the
// claimed market growth rate. A nil claims struct validates trivially.
// referenceTAM, when positive, is an independent estimate used to sanity
// check the claimed TAM.
func ValidateMarketClaims(claims *model.MarketClaims, referenceTAM float64) MarketValidation {
	v := MarketValidation{Valid: true}
	if claims == nil {
		return v
	}

	if claims.TAM != nil && claims.SAM != nil {
		if *claims.SAM <= 0 {
			v.Errors = append(v.Errors, "SAM must be positive")
		} else {
			ratio := *claims.TAM / *claims.SAM
			v.TAMSAMRatio = &ratio
			switch {
			case ratio < minTAMSAMRatio:
				v.Errors = append(v.Errors, fmt.Sprintf(
					"TAM/SAM ratio %.1fx is below %.0fx; SAM approaches or exceeds TAM", ratio, minTAMSAMRatio))
			case ratio > maxTAMSAMRatio:
				v.Warnings = append(v.Warnings, fmt.Sprintf(
					"TAM/SAM ratio %.0fx exceeds %.0fx; SAM may be understated or TAM inflated", ratio, maxTAMSAMRatio))
			}
		}
	}

	if claims.SAM != nil && claims.SOM != nil {
		if *claims.SOM <= 0 {
			v.Errors = append(v.Errors, "SOM must be positive")
		} else {
			ratio := *claims.SAM / *claims.SOM
			v.SAMSOMRatio = &ratio
			switch {
			case ratio < minSAMSOMRatio:
				v.Errors = append(v.Errors, fmt.Sprintf(
					"SAM/SOM ratio %.1fx is below %.0fx; SOM nearly equals SAM", ratio, minSAMSOMRatio))
			case ratio > maxSAMSOMRatio:
				v.Warnings = append(v.Warnings, fmt.Sprintf(
					"SAM/SOM ratio %.0fx exceeds %.0fx; obtainable share looks token", ratio, maxSAMSOMRatio))
			}
		}
	}

	if claims.GrowthRate != nil {
		g := *claims.GrowthRate
		switch {
		case g > maxMarketGrowth:
			v.Errors = append(v.Errors, fmt.Sprintf(
				"claimed market growth %.0f%% exceeds the plausible %.0f%% ceiling",
				g*100, maxMarketGrowth*100))
		case g < minMarketGrowth:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"claimed market growth %.0f%% implies a shrinking market", g*100))
		}
	}

	if claims.TAM != nil && referenceTAM > 0 {
		delta := (*claims.TAM - referenceTAM) / referenceTAM
		v.ReferenceDelta = &delta
		switch {
		case delta > 0.5:
			v.Errors = append(v.Errors, fmt.Sprintf(
				"claimed TAM %s is more than 1.5x the independent estimate %s",
				formatValue(*claims.TAM), formatValue(referenceTAM)))
		case delta > 0.2:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"claimed TAM %s is %.0f%% above the independent estimate %s",
				formatValue(*claims.TAM), delta*100, formatValue(referenceTAM)))
		}
	}

	if claims.CompetitorCount != nil {
		c := *claims.CompetitorCount
		if c < minCompetitorCount || c > maxCompetitorCount {
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"competitor count of %d is outside the plausible %d..%d range",
				c, minCompetitorCount, maxCompetitorCount))
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// GenerateMarketSizeRiskFlags turns validation findings plus absolute-size
// checks into risk flags for the memo.
func GenerateMarketSizeRiskFlags(claims *model.MarketClaims, validation MarketValidation, sourceDocs []string) []model.RiskFlag {
	if claims == nil {
		return nil
	}
	if len(sourceDocs) == 0 {
		sourceDocs = []string{"unknown"}
	}

	var flags []model.RiskFlag
	add := func(severity model.RiskSeverity, title, description string, metrics ...string) {
		f := model.NewRiskFlag(model.RiskMarketSize, severity, title)
		f.Description = description
		f.AffectedMetrics = metrics
		f.SourceDocuments = sourceDocs
		f.Confidence = 0.8
		f.Category = "market"
		flags = append(flags, f)
	}

	if claims.TAM != nil && *claims.TAM > tamCeiling {
		add(model.SeverityHigh, "implausibly large TAM",
			fmt.Sprintf("claimed TAM %s exceeds $1T; almost certainly top-down and unsubstantiated",
				formatValue(*claims.TAM)), "tam")
	}
	if validation.TAMSAMRatio != nil && *validation.TAMSAMRatio > maxTAMSAMRatio {
		add(model.SeverityMedium, "TAM dwarfs serviceable market",
			fmt.Sprintf("TAM is %.0fx SAM; the serviceable market may be far smaller than pitched",
				*validation.TAMSAMRatio), "tam", "sam")
	}
	if claims.GrowthRate != nil && *claims.GrowthRate > 0.50 {
		add(model.SeverityMedium, "aggressive market growth claim",
			fmt.Sprintf("claimed market growth of %.0f%% per year is rarely sustained", *claims.GrowthRate*100),
			"market_growth")
	}
	if len(claims.Competitors) == 0 {
		add(model.SeverityMedium, "no competitive landscape",
			"documents name no competitors; either the market is untested or the analysis is incomplete",
			"competitors")
	}
	if len(claims.Barriers) == 0 {
		add(model.SeverityLow, "no stated barriers to entry",
			"documents describe no moat or entry barriers", "barriers")
	}
	for _, e := range validation.Errors {
		add(model.SeverityHigh, "market sizing fails validation", e, "tam", "sam", "som")
	}

	return model.SortFlags(flags)
}

// CompetitiveCompleteness scores how thoroughly the documents cover the
// competitive landscape, in [0,1]. reference lists competitors known from
// the warehouse for the sector; each one the documents omit costs a
// penalty, since a deck that skips a major player is hiding something.
func CompetitiveCompleteness(claims *model.MarketClaims, reference []string) float64 {
	if claims == nil {
		return 0
	}
	score := 0.0
	if len(claims.Competitors) > 0 {
		score += 0.35
		if len(claims.Competitors) >= 3 {
			score += 0.05
		}
	}
	if count := competitorCount(claims); count >= minCompetitorCount && count <= maxCompetitorCount {
		score += 0.15
	}
	if len(claims.Barriers) > 0 {
		score += 0.2
	}
	if len(claims.Trends) > 0 {
		score += 0.15
	}
	if len(claims.Opportunities) > 0 {
		score += 0.1
	}
	for _, ref := range reference {
		if !mentionsCompetitor(claims.Competitors, ref) {
			score -= referenceOmissionPenalty
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// competitorCount prefers the stated count, falling back to the named list.
func competitorCount(claims *model.MarketClaims) int {
	if claims.CompetitorCount != nil {
		return *claims.CompetitorCount
	}
	return len(claims.Competitors)
}

func mentionsCompetitor(named []string, ref string) bool {
	for _, n := range named {
		if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(ref)) {
			return true
		}
	}
	return false
}

// summarizeMarket renders a one-line market description for the memo.
func summarizeMarket(claims *model.MarketClaims, validation MarketValidation) string {
	if claims == nil || claims.TAM == nil {
		return "market size not stated"
	}
	parts := []string{fmt.Sprintf("TAM %s", formatValue(*claims.TAM))}
	if claims.SAM != nil {
		parts = append(parts, fmt.Sprintf("SAM %s", formatValue(*claims.SAM)))
	}
	if claims.SOM != nil {
		parts = append(parts, fmt.Sprintf("SOM %s", formatValue(*claims.SOM)))
	}
	line := strings.Join(parts, " / ")
	if !validation.Valid {
		line += " (sizing fails validation)"
	}
	return line
}
