package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected float64
	}{
		{"plain number", "2500", 2500},
		{"thousands separators", "2,500,000", 2_500_000},
		{"dollar prefix", "$450", 450},
		{"K suffix", "450K", 450_000},
		{"lowercase k", "450k", 450_000},
		{"M suffix with decimal", "1.2M", 1_200_000},
		{"B suffix", "3B", 3e9},
		{"word million", "3 million", 3e6},
		{"word billion", "2.5 billion", 2.5e9},
		{"trailing plus", "1,000+", 1000},
		{"negative percent value", "-40", -40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := parseAmount(tt.raw)
			require.True(t, ok)
			assert.InDelta(t, tt.expected, v, 0.001)
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, raw := range []string{"", "$", "abc", "1.2.3"} {
		_, ok := parseAmount(raw)
		assert.False(t, ok, "expected %q to fail", raw)
	}
}

func TestExtractByPatterns_Financials(t *testing.T) {
	doc := model.Document{
		ID:   "memo-1",
		Text: "Acme reached $2.4M ARR this quarter, growing 180% year over year. Gross margin is 72%.",
	}

	entities := extractByPatterns(doc)

	arr := findEntity(entities, "arr")
	require.NotNil(t, arr)
	assert.InDelta(t, 2_400_000, arr.Value.(float64), 0.001)
	assert.Equal(t, patternConfidence, arr.Confidence)
	assert.Equal(t, model.MethodPattern, arr.ExtractionMethod)
	assert.Equal(t, "memo-1", arr.SourceDocument)
	assert.Contains(t, arr.SourceContext, "ARR")

	growth := findEntity(entities, "growth_rate")
	require.NotNil(t, growth)
	assert.InDelta(t, 180, growth.Value.(float64), 0.001)

	margin := findEntity(entities, "gross_margin")
	require.NotNil(t, margin)
	assert.InDelta(t, 72, margin.Value.(float64), 0.001)
}

func TestExtractByPatterns_MarketAndTeam(t *testing.T) {
	doc := model.Document{
		ID: "deck",
		Text: "The TAM is $12 billion and the SAM is estimated at $800M. " +
			"Founded in 2021 by 3 co-founders, the company now has a team of 24 " +
			"serving 1,200 paying customers with 4% churn.",
	}

	entities := extractByPatterns(doc)

	tam := findEntity(entities, "tam")
	require.NotNil(t, tam)
	assert.InDelta(t, 12e9, tam.Value.(float64), 1)

	sam := findEntity(entities, "sam")
	require.NotNil(t, sam)
	assert.InDelta(t, 800e6, sam.Value.(float64), 1)

	founders := findEntity(entities, "founders")
	require.NotNil(t, founders)
	assert.InDelta(t, 3, founders.Value.(float64), 0.001)

	team := findEntity(entities, "team_size")
	require.NotNil(t, team)
	assert.InDelta(t, 24, team.Value.(float64), 0.001)

	customers := findEntity(entities, "customers")
	require.NotNil(t, customers)
	assert.InDelta(t, 1200, customers.Value.(float64), 0.001)

	churn := findEntity(entities, "churn")
	require.NotNil(t, churn)
	assert.InDelta(t, 4, churn.Value.(float64), 0.001)

	year := findEntity(entities, "founding_year")
	require.NotNil(t, year)
	assert.InDelta(t, 2021, year.Value.(float64), 0.001)
}

func TestExtractByPatterns_ContextWindowBounds(t *testing.T) {
	doc := model.Document{ID: "short", Text: "ARR: $500K"}

	entities := extractByPatterns(doc)
	arr := findEntity(entities, "arr")
	require.NotNil(t, arr)
	assert.Equal(t, "ARR: $500K", arr.SourceContext)
}

func TestExtractByPatterns_NoMatches(t *testing.T) {
	doc := model.Document{ID: "empty", Text: "A narrative with no figures at all."}
	assert.Empty(t, extractByPatterns(doc))
}

func findEntity(entities []model.ExtractedEntity, name string) *model.ExtractedEntity {
	for i := range entities {
		if entities[i].Name == name {
			return &entities[i]
		}
	}
	return nil
}
