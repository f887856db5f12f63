package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// patternConfidence is assigned to every regex-matched entity. Pattern
// matches are deterministic but lack the semantic context an AI extraction
// carries, hence slightly higher than the AI's 0.7.
const patternConfidence = 0.8

// contextWindow is the number of characters captured around a match for
// audit purposes.
const contextWindow = 50

// metricPattern binds a compiled regex family to the entity it produces.
// The first non-empty capture group must be the numeric value (with
// optional K/M/B suffix); percent metrics capture the bare number.
type metricPattern struct {
	entityType model.EntityType
	name       string
	re         *regexp.Regexp
}

// amount matches figures like "$1.2M", "450K", "2,500,000", "$3 billion".
const amount = `\$?\s*([0-9][0-9,.]*\s*(?:[KMBkmb]|thousand|million|billion)?)`

// percentNum matches "12%", "12.5 %", "-40%".
const percentNum = `(-?[0-9]+(?:\.[0-9]+)?)\s*%`

var metricPatterns = []metricPattern{
	{model.EntityTypeFinancial, "arr", regexp.MustCompile(`(?i)(?:ARR|annual recurring revenue)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "mrr", regexp.MustCompile(`(?i)(?:MRR|monthly recurring revenue)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "revenue", regexp.MustCompile(`(?i)revenue(?:s)?[^$0-9%]{0,20}` + amount)},
	{model.EntityTypeFinancial, "growth_rate", regexp.MustCompile(`(?i)(?:growing|grew|growth(?:\s+rate)?)[^0-9%-]{0,20}` + percentNum)},
	{model.EntityTypeFinancial, "gross_margin", regexp.MustCompile(`(?i)gross margin(?:s)?[^0-9%-]{0,20}` + percentNum)},
	{model.EntityTypeFinancial, "burn_rate", regexp.MustCompile(`(?i)(?:burn(?:\s+rate)?|burning)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "raised", regexp.MustCompile(`(?i)(?:raised|raising|total funding of)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "valuation", regexp.MustCompile(`(?i)valuation[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "ltv", regexp.MustCompile(`(?i)(?:LTV|lifetime value)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeFinancial, "cac", regexp.MustCompile(`(?i)(?:CAC|customer acquisition cost)[^$0-9]{0,20}` + amount)},
	{model.EntityTypeTeam, "team_size", regexp.MustCompile(`(?i)(?:team of\s+([0-9]{1,5})|([0-9]{1,5})\s+(?:full[- ]time\s+)?employees)`)},
	{model.EntityTypeTeam, "founders", regexp.MustCompile(`(?i)([0-9]{1,2})\s+(?:co[- ]?)?founders`)},
	{model.EntityTypeMarket, "tam", regexp.MustCompile(`(?i)(?:TAM|total addressable market)[^$0-9]{0,25}` + amount)},
	{model.EntityTypeMarket, "sam", regexp.MustCompile(`(?i)(?:SAM|serviceable addressable market)[^$0-9]{0,25}` + amount)},
	{model.EntityTypeMarket, "som", regexp.MustCompile(`(?i)(?:SOM|serviceable obtainable market)[^$0-9]{0,25}` + amount)},
	{model.EntityTypeMarket, "market_growth", regexp.MustCompile(`(?i)market\s+(?:is\s+)?grow(?:ing|s|th)[^0-9%-]{0,20}` + percentNum)},
	{model.EntityTypeProduct, "customers", regexp.MustCompile(`(?i)([0-9][0-9,]*\+?)\s+(?:paying\s+)?customers`)},
	{model.EntityTypeProduct, "churn", regexp.MustCompile(`(?i)churn(?:\s+rate)?[^0-9%-]{0,20}` + percentNum)},
	{model.EntityTypeProduct, "nps", regexp.MustCompile(`(?i)NPS[^0-9-]{0,15}(-?[0-9]{1,3})`)},
	{model.EntityTypeCompany, "founding_year", regexp.MustCompile(`(?i)founded\s+(?:in\s+)?((?:19|20)[0-9]{2})`)},
}

// suffixMultipliers maps magnitude suffixes to multipliers, applied after
// stripping thousands separators.
var suffixMultipliers = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "million": 1e6,
	"b": 1e9, "billion": 1e9,
}

// parseAmount parses a captured numeric string like "1.2M", "2,500,000" or
// "3 billion" into a float. Thousands separators are stripped before the
// suffix multiplier is applied.
func parseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "$"))
	s = strings.TrimSuffix(s, "+")
	if s == "" {
		return 0, false
	}

	mult := 1.0
	lower := strings.ToLower(s)
	for suffix, m := range suffixMultipliers {
		if strings.HasSuffix(lower, suffix) {
			mult = m
			s = strings.TrimSpace(s[:len(s)-len(suffix)])
			break
		}
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n * mult, true
}

// extractByPatterns runs every regex family over the document text and
// returns one entity per match, each with a ±contextWindow character
// context slice for auditability.
func extractByPatterns(doc model.Document) []model.ExtractedEntity {
	var entities []model.ExtractedEntity

	for _, p := range metricPatterns {
		matches := p.re.FindAllStringSubmatchIndex(doc.Text, -1)
		for _, loc := range matches {
			raw := firstGroup(doc.Text, loc)
			if raw == "" {
				continue
			}
			value, ok := parseAmount(raw)
			if !ok {
				continue
			}

			start := loc[0] - contextWindow
			if start < 0 {
				start = 0
			}
			end := loc[1] + contextWindow
			if end > len(doc.Text) {
				end = len(doc.Text)
			}

			entities = append(entities, model.ExtractedEntity{
				Type:             p.entityType,
				Name:             p.name,
				Value:            value,
				Confidence:       patternConfidence,
				SourceDocument:   doc.ID,
				SourceContext:    strings.TrimSpace(doc.Text[start:end]),
				ExtractionMethod: model.MethodPattern,
			})
		}
	}
	return entities
}

// firstGroup returns the first non-empty capture group of a submatch index
// slice. Some patterns carry alternate groups for word-order variants.
func firstGroup(text string, loc []int) string {
	for i := 2; i+1 < len(loc); i += 2 {
		if loc[i] >= 0 && loc[i+1] >= 0 {
			s := strings.TrimSpace(text[loc[i]:loc[i+1]])
			if s != "" {
				return s
			}
		}
	}
	return ""
}
