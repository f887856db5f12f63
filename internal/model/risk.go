package model

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RiskType categorizes a risk flag by its detector origin.
type RiskType string

const (
	RiskInconsistency    RiskType = "inconsistency"
	RiskMarketSize       RiskType = "market-size"
	RiskFinancialAnomaly RiskType = "financial-anomaly"
	RiskCompetitive      RiskType = "competitive-risk"
	RiskTeam             RiskType = "team-risk"
	RiskTechnical        RiskType = "technical-risk"
)

// RiskSeverity rates how urgently a flag needs diligence attention.
type RiskSeverity string

const (
	SeverityHigh   RiskSeverity = "HIGH"
	SeverityMedium RiskSeverity = "MEDIUM"
	SeverityLow    RiskSeverity = "LOW"
)

// RiskFlag is a structured, severity-rated finding. Flags are immutable once
// created and always reference at least one source document.
type RiskFlag struct {
	ID                  string       `json:"id"`
	Type                RiskType     `json:"type"`
	Severity            RiskSeverity `json:"severity"`
	Title               string       `json:"title"`
	Description         string       `json:"description"`
	AffectedMetrics     []string     `json:"affected_metrics"`
	SuggestedMitigation string       `json:"suggested_mitigation,omitempty"`
	SourceDocuments     []string     `json:"source_documents"`
	Confidence          float64      `json:"confidence"`
	Impact              string       `json:"impact,omitempty"`     // low|medium|high|critical
	Likelihood          string       `json:"likelihood,omitempty"` // low|medium|high
	Category            string       `json:"category,omitempty"`   // financial|market|team|product|competitive|operational
	Evidence            []string     `json:"evidence,omitempty"`
}

// NewRiskFlag creates a flag with a generated id.
func NewRiskFlag(riskType RiskType, severity RiskSeverity, title string) RiskFlag {
	return RiskFlag{
		ID:       uuid.New().String(),
		Type:     riskType,
		Severity: severity,
		Title:    title,
	}
}

// Validate checks the flag invariants: a severity from the known set and at
// least one source document for traceability.
func (f RiskFlag) Validate() error {
	switch f.Severity {
	case SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return eris.Errorf("risk flag %q: unknown severity %q", f.Title, f.Severity)
	}
	if len(f.SourceDocuments) == 0 {
		return eris.Errorf("risk flag %q: no source documents", f.Title)
	}
	return nil
}

// severityRank orders severities for sorting (HIGH first).
func severityRank(s RiskSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	default:
		return 2
	}
}

// SortFlags orders flags by severity, HIGH first, preserving the relative
// order within a severity bucket.
func SortFlags(flags []RiskFlag) []RiskFlag {
	sorted := make([]RiskFlag, 0, len(flags))
	for rank := 0; rank <= 2; rank++ {
		for _, f := range flags {
			if severityRank(f.Severity) == rank {
				sorted = append(sorted, f)
			}
		}
	}
	return sorted
}
