package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRiskFlag(t *testing.T) {
	f := NewRiskFlag(RiskFinancialAnomaly, SeverityHigh, "Churn above sector ceiling")

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, RiskFinancialAnomaly, f.Type)
	assert.Equal(t, SeverityHigh, f.Severity)
	assert.Equal(t, "Churn above sector ceiling", f.Title)

	other := NewRiskFlag(RiskFinancialAnomaly, SeverityHigh, "Churn above sector ceiling")
	assert.NotEqual(t, f.ID, other.ID)
}

func TestRiskFlagValidate(t *testing.T) {
	valid := RiskFlag{
		Severity:        SeverityMedium,
		Title:           "ARR disagreement",
		SourceDocuments: []string{"deck.md"},
	}
	assert.NoError(t, valid.Validate())

	noDocs := valid
	noDocs.SourceDocuments = nil
	err := noDocs.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no source documents")

	badSeverity := valid
	badSeverity.Severity = "CATASTROPHIC"
	err = badSeverity.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestSortFlags(t *testing.T) {
	flags := []RiskFlag{
		{Title: "low-a", Severity: SeverityLow},
		{Title: "med-a", Severity: SeverityMedium},
		{Title: "high-a", Severity: SeverityHigh},
		{Title: "med-b", Severity: SeverityMedium},
		{Title: "high-b", Severity: SeverityHigh},
	}

	sorted := SortFlags(flags)

	require.Len(t, sorted, 5)
	titles := make([]string, 0, len(sorted))
	for _, f := range sorted {
		titles = append(titles, f.Title)
	}
	// Stable within a severity bucket.
	assert.Equal(t, []string{"high-a", "high-b", "med-a", "med-b", "low-a"}, titles)
}

func TestSortFlags_Empty(t *testing.T) {
	assert.Empty(t, SortFlags(nil))
}

func TestMetricDistributionValid(t *testing.T) {
	base := MetricDistribution{Min: 1, P25: 2, Median: 3, P75: 4, P90: 5, Max: 6, SampleSize: 25}
	assert.True(t, base.Valid())

	thin := base
	thin.SampleSize = MinSampleSize - 1
	assert.False(t, thin.Valid())

	inverted := base
	inverted.Max = 0.5
	assert.False(t, inverted.Valid())

	medianOutside := base
	medianOutside.Median = 10
	assert.False(t, medianOutside.Valid())
}
