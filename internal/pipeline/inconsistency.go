package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// metricCheck defines the tolerated relative variance for one metric family
// before a cross-document discrepancy becomes a flag. A zero threshold means
// any disagreement at all produces a HIGH flag.
type metricCheck struct {
	metric    string
	label     string
	threshold float64
	extract   func(*model.InvestmentMetrics) *float64
}

var inconsistencyChecks = []metricCheck{
	{
		metric:    "arr",
		label:     "ARR",
		threshold: 0.15,
		extract:   func(m *model.InvestmentMetrics) *float64 { return m.Revenue.ARR },
	},
	{
		metric:    "mrr",
		label:     "MRR",
		threshold: 0.15,
		extract:   func(m *model.InvestmentMetrics) *float64 { return m.Revenue.MRR },
	},
	{
		metric:    "growth_rate",
		label:     "growth rate",
		threshold: 0.20,
		extract:   func(m *model.InvestmentMetrics) *float64 { return m.Revenue.GrowthRate },
	},
	{
		metric:    "customers",
		label:     "customer count",
		threshold: 0.10,
		extract: func(m *model.InvestmentMetrics) *float64 {
			return intPtrToFloat(m.Traction.Customers)
		},
	},
	{
		metric:    "team_size",
		label:     "team size",
		threshold: 0.05,
		extract: func(m *model.InvestmentMetrics) *float64 {
			return intPtrToFloat(m.Team.Size)
		},
	},
	{
		metric:    "founders",
		label:     "founder count",
		threshold: 0,
		extract: func(m *model.InvestmentMetrics) *float64 {
			return intPtrToFloat(m.Team.FoundersCount)
		},
	},
}

// marketClaimChecks cover the company's own market-size assertions, which
// live outside InvestmentMetrics.
type claimCheck struct {
	metric    string
	label     string
	threshold float64
	extract   func(*model.MarketClaims) *float64
}

var marketClaimChecks = []claimCheck{
	{"tam", "TAM", 0.25, func(c *model.MarketClaims) *float64 { return c.TAM }},
	{"sam", "SAM", 0.20, func(c *model.MarketClaims) *float64 { return c.SAM }},
}

func intPtrToFloat(p *int) *float64 {
	if p == nil {
		return nil
	}
	v := float64(*p)
	return &v
}

// docValue is one metric observation attributed to a document.
type docValue struct {
	doc   string
	value float64
}

// DetectInconsistencies compares per-document extraction results and flags
// metrics that disagree by more than their tolerated variance. Fewer than
// two results means nothing to compare.
func DetectInconsistencies(results []*model.EntityExtractionResult) []model.RiskFlag {
	if len(results) < 2 {
		return nil
	}

	var flags []model.RiskFlag
	for _, check := range inconsistencyChecks {
		var observed []docValue
		for _, r := range results {
			if r == nil || r.Metrics == nil {
				continue
			}
			if v := check.extract(r.Metrics); v != nil {
				observed = append(observed, docValue{doc: firstSourceDoc(r), value: *v})
			}
		}
		if f, ok := varianceFlag(check.metric, check.label, check.threshold, observed); ok {
			flags = append(flags, f)
		}
	}

	for _, check := range marketClaimChecks {
		var observed []docValue
		for _, r := range results {
			if r == nil || r.MarketClaims == nil {
				continue
			}
			if v := check.extract(r.MarketClaims); v != nil {
				observed = append(observed, docValue{doc: firstSourceDoc(r), value: *v})
			}
		}
		if f, ok := varianceFlag(check.metric, check.label, check.threshold, observed); ok {
			flags = append(flags, f)
		}
	}

	return model.SortFlags(flags)
}

func firstSourceDoc(r *model.EntityExtractionResult) string {
	if r.Metrics != nil && len(r.Metrics.SourceDocuments) > 0 {
		return r.Metrics.SourceDocuments[0]
	}
	for _, e := range r.Entities {
		if e.SourceDocument != "" {
			return e.SourceDocument
		}
	}
	return "unknown"
}

// varianceFlag builds a flag when the observed values spread wider than the
// tolerated relative variance. Variance is (max-min)/min; a zero threshold
// treats any disagreement as HIGH severity.
func varianceFlag(metric, label string, threshold float64, observed []docValue) (model.RiskFlag, bool) {
	if len(observed) < 2 {
		return model.RiskFlag{}, false
	}

	minVal, maxVal := observed[0].value, observed[0].value
	docs := map[string]bool{}
	for _, o := range observed {
		if o.value < minVal {
			minVal = o.value
		}
		if o.value > maxVal {
			maxVal = o.value
		}
		docs[o.doc] = true
	}
	if minVal == maxVal {
		return model.RiskFlag{}, false
	}

	var severity model.RiskSeverity
	var variance float64
	if threshold == 0 {
		severity = model.SeverityHigh
		variance = 1
	} else {
		if minVal == 0 {
			variance = 1
		} else {
			variance = (maxVal - minVal) / minVal
			if variance < 0 {
				variance = -variance
			}
		}
		if variance <= threshold {
			return model.RiskFlag{}, false
		}
		ratio := variance / threshold
		switch {
		case ratio >= 2.0:
			severity = model.SeverityHigh
		case ratio >= 1.5:
			severity = model.SeverityMedium
		default:
			severity = model.SeverityLow
		}
	}

	sourceDocs := make([]string, 0, len(docs))
	for d := range docs {
		sourceDocs = append(sourceDocs, d)
	}
	sort.Strings(sourceDocs)

	flag := model.NewRiskFlag(model.RiskInconsistency, severity,
		fmt.Sprintf("%s differs across documents", label))
	flag.AffectedMetrics = []string{metric}
	flag.SourceDocuments = sourceDocs
	flag.Confidence = 0.9
	flag.Category = "financial"
	flag.Description = fmt.Sprintf(
		"%s ranges from %s to %s across %d documents (%.0f%% variance)",
		label, formatValue(minVal), formatValue(maxVal), len(observed), variance*100)
	flag.SuggestedMitigation = fmt.Sprintf(
		"ask the company to reconcile the %s figures in %s", label, strings.Join(sourceDocs, ", "))
	flag.Evidence = evidenceLines(label, observed)
	return flag, true
}

func evidenceLines(label string, observed []docValue) []string {
	lines := make([]string, 0, len(observed))
	for _, o := range observed {
		lines = append(lines, fmt.Sprintf("%s: %s = %s", o.doc, label, formatValue(o.value)))
	}
	return lines
}

func formatValue(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.4g", v)
	}
}
