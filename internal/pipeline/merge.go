package pipeline

import (
	"strings"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// MergeEntities groups entities by (type, name) and resolves each group to a
// single retained entity: highest confidence wins, with AI extraction
// preferred on a confidence tie. The context fields of all contributing
// members are concatenated (deduplicated) into the winner for audit.
// Merging is idempotent.
func MergeEntities(entities []model.ExtractedEntity) []model.ExtractedEntity {
	type groupKey struct {
		entityType model.EntityType
		name       string
	}

	groups := make(map[groupKey][]model.ExtractedEntity)
	var order []groupKey
	for _, e := range entities {
		k := groupKey{e.Type, e.Name}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], e)
	}

	merged := make([]model.ExtractedEntity, 0, len(order))
	for _, k := range order {
		group := groups[k]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}

		winner := group[0]
		for _, e := range group[1:] {
			if e.Confidence > winner.Confidence {
				winner = e
				continue
			}
			if e.Confidence == winner.Confidence &&
				e.ExtractionMethod == model.MethodAI &&
				winner.ExtractionMethod != model.MethodAI {
				winner = e
			}
		}

		winner.SourceContext = joinContexts(group)
		merged = append(merged, winner)
	}
	return merged
}

// joinContexts concatenates the distinct source contexts of a group.
func joinContexts(group []model.ExtractedEntity) string {
	seen := make(map[string]bool)
	var parts []string
	for _, e := range group {
		ctx := strings.TrimSpace(e.SourceContext)
		if ctx == "" || seen[ctx] {
			continue
		}
		seen[ctx] = true
		parts = append(parts, ctx)
	}
	return strings.Join(parts, " | ")
}

// ValidateEntities drops entities below the confidence threshold and
// entities whose numeric values violate sanity bounds. Violations are
// dropped silently, never surfaced as pipeline errors.
func ValidateEntities(entities []model.ExtractedEntity, minConfidence float64) []model.ExtractedEntity {
	valid := make([]model.ExtractedEntity, 0, len(entities))
	for _, e := range entities {
		if e.Confidence < minConfidence {
			continue
		}
		if !passesSanityBounds(e) {
			continue
		}
		valid = append(valid, e)
	}
	return valid
}

// passesSanityBounds enforces the numeric bounds for known metric names.
func passesSanityBounds(e model.ExtractedEntity) bool {
	v, ok := toFloat(e.Value)
	if !ok {
		return true // non-numeric entities carry no bounds
	}

	switch e.Name {
	case "churn":
		return v >= 0 && v <= 100
	case "nps":
		return v >= -100 && v <= 100
	case "growth_rate", "market_growth":
		return v >= -100 && v <= 10000
	default:
		return v >= 0
	}
}

// OverallConfidence is the arithmetic mean of the surviving entities'
// confidences; zero when nothing survives validation.
func OverallConfidence(entities []model.ExtractedEntity) float64 {
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entities {
		sum += e.Confidence
	}
	return sum / float64(len(entities))
}

// toFloat converts numeric entity values. Entities carry float64 from both
// strategies, but AI JSON decoding may produce other numeric widths.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// entityValue returns the numeric value of the named metric among entities,
// or nil when absent.
func entityValue(entities []model.ExtractedEntity, name string) *float64 {
	for _, e := range entities {
		if e.Name != name {
			continue
		}
		if v, ok := toFloat(e.Value); ok {
			return &v
		}
	}
	return nil
}

// BuildMetrics assembles the normalized InvestmentMetrics aggregate from the
// retained entity set. Absent metrics stay nil, never zero.
func BuildMetrics(entities []model.ExtractedEntity, sourceDocs []string) *model.InvestmentMetrics {
	m := &model.InvestmentMetrics{
		SourceDocuments: sourceDocs,
	}

	m.Revenue.ARR = entityValue(entities, "arr")
	m.Revenue.MRR = entityValue(entities, "mrr")
	m.Revenue.GrowthRate = entityValue(entities, "growth_rate")
	m.Revenue.GrossMargin = entityValue(entities, "gross_margin")

	if v := entityValue(entities, "customers"); v != nil {
		n := int(*v)
		m.Traction.Customers = &n
	}
	m.Traction.ChurnRate = entityValue(entities, "churn")
	m.Traction.NPS = entityValue(entities, "nps")
	m.Traction.LTV = entityValue(entities, "ltv")
	m.Traction.CAC = entityValue(entities, "cac")
	if m.Traction.LTV != nil && m.Traction.CAC != nil && *m.Traction.CAC > 0 {
		ratio := *m.Traction.LTV / *m.Traction.CAC
		m.Traction.LTVCACRatio = &ratio
	}

	if v := entityValue(entities, "team_size"); v != nil {
		n := int(*v)
		m.Team.Size = &n
	}
	if v := entityValue(entities, "founders"); v != nil {
		n := int(*v)
		m.Team.FoundersCount = &n
	}
	m.Team.BurnRate = entityValue(entities, "burn_rate")

	m.Funding.TotalRaised = entityValue(entities, "raised")
	m.Funding.Valuation = entityValue(entities, "valuation")

	return m
}

// BuildMarketClaims assembles market-size claims from the retained entities.
// Market growth arrives as a percentage and is normalized to a fraction.
func BuildMarketClaims(entities []model.ExtractedEntity) *model.MarketClaims {
	claims := &model.MarketClaims{
		TAM: entityValue(entities, "tam"),
		SAM: entityValue(entities, "sam"),
		SOM: entityValue(entities, "som"),
	}
	if v := entityValue(entities, "market_growth"); v != nil {
		fraction := *v / 100
		claims.GrowthRate = &fraction
	}
	if claims.TAM == nil && claims.SAM == nil && claims.SOM == nil && claims.GrowthRate == nil {
		return nil
	}
	return claims
}

// BuildTeamProfile assembles team signals from the retained entities.
func BuildTeamProfile(entities []model.ExtractedEntity) *model.TeamProfile {
	profile := &model.TeamProfile{}
	populated := false

	if v := entityValue(entities, "team_size"); v != nil {
		n := int(*v)
		profile.Size = &n
		populated = true
	}
	if v := entityValue(entities, "founders"); v != nil {
		n := int(*v)
		for i := 0; i < n; i++ {
			profile.Founders = append(profile.Founders, model.TeamMember{IsFounder: true})
		}
		populated = true
	}

	if !populated {
		return nil
	}
	return profile
}
