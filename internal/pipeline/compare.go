package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// higherIsWorse lists metrics where a larger value indicates weaker
// performance, so the reported percentile is inverted.
var higherIsWorse = map[string]bool{
	"churn_rate":     true,
	"cac":            true,
	"burn_rate":      true,
	"payback_months": true,
}

// ComparePhase maps each available company metric onto its sector
// distribution. Metrics the company lacks, and distributions that fail
// validation, are skipped.
func ComparePhase(metrics model.InvestmentMetrics, benchmarks model.BenchmarkData) []model.BenchmarkComparison {
	values := comparableMetrics(metrics)

	var out []model.BenchmarkComparison
	for name, value := range values {
		dist, ok := benchmarks.Metrics[name]
		if !ok {
			continue
		}
		if !dist.Valid() {
			zap.L().Debug("compare: skipping invalid distribution",
				zap.String("metric", name),
				zap.Int("sample_size", dist.SampleSize),
			)
			continue
		}
		pct := percentileOf(value, dist)
		if higherIsWorse[name] {
			pct = 100 - pct
		}
		out = append(out, model.BenchmarkComparison{
			Metric:         name,
			CompanyValue:   value,
			SectorMedian:   dist.Median,
			Percentile:     pct,
			Interpretation: interpretPercentile(pct),
			Context:        fmt.Sprintf("%s sector, n=%d", benchmarks.Sector, dist.SampleSize),
		})
	}
	return out
}

// comparableMetrics flattens the metrics struct into the named values the
// benchmark warehouse tracks. Nil fields are unknown and omitted.
func comparableMetrics(m model.InvestmentMetrics) map[string]float64 {
	out := map[string]float64{}
	put := func(name string, v *float64) {
		if v != nil {
			out[name] = *v
		}
	}
	put("arr", m.Revenue.ARR)
	put("mrr", m.Revenue.MRR)
	put("growth_rate", m.Revenue.GrowthRate)
	put("gross_margin", m.Revenue.GrossMargin)
	put("burn_rate", m.Team.BurnRate)
	put("churn_rate", m.Traction.ChurnRate)
	put("ltv", m.Traction.LTV)
	put("cac", m.Traction.CAC)
	put("ltv_cac_ratio", m.Traction.LTVCACRatio)
	put("nps", m.Traction.NPS)
	if m.Traction.Customers != nil {
		out["customers"] = float64(*m.Traction.Customers)
	}
	if m.Team.Size != nil {
		out["team_size"] = float64(*m.Team.Size)
	}
	put("valuation", m.Funding.Valuation)
	put("current_ask", m.Funding.CurrentAsk)
	return out
}

// percentileOf estimates the percentile of v against the distribution by
// linear interpolation between the known breakpoints.
func percentileOf(v float64, d model.MetricDistribution) float64 {
	type breakpoint struct {
		value float64
		pct   float64
	}
	points := []breakpoint{
		{d.Min, 0},
		{d.P25, 25},
		{d.Median, 50},
		{d.P75, 75},
		{d.P90, 90},
		{d.Max, 100},
	}

	if v <= points[0].value {
		return 0
	}
	last := points[len(points)-1]
	if v >= last.value {
		return 100
	}
	for i := 1; i < len(points); i++ {
		lo, hi := points[i-1], points[i]
		if v > hi.value {
			continue
		}
		if hi.value == lo.value {
			return hi.pct
		}
		frac := (v - lo.value) / (hi.value - lo.value)
		return lo.pct + frac*(hi.pct-lo.pct)
	}
	return 100
}

func interpretPercentile(pct float64) string {
	switch {
	case pct >= 90:
		return "top decile"
	case pct >= 75:
		return "top quartile"
	case pct >= 50:
		return "above median"
	case pct >= 25:
		return "below median"
	default:
		return "bottom quartile"
	}
}
