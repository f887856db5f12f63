package pipeline

import (
	"fmt"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// FinancialHealthReport summarizes the unit-economics checks that back the
// financial-anomaly flags.
type FinancialHealthReport struct {
	Sector        string   `json:"sector"`
	ChurnStatus   string   `json:"churn_status,omitempty"` // healthy|warning|critical
	LTVCACStatus  string   `json:"ltv_cac_status,omitempty"`
	PaybackMonths *float64 `json:"payback_months,omitempty"`
	BurnMultiple  *float64 `json:"burn_multiple,omitempty"`
	CohortTrend   string   `json:"cohort_trend,omitempty"` // improving|stable|deteriorating
	Notes         []string `json:"notes,omitempty"`
	ChecksRun     int      `json:"checks_run"`
	ChecksFlagged int      `json:"checks_flagged"`
}

// DetectFinancialAnomalies runs sector-aware unit-economics checks against
// the extracted metrics. Missing inputs skip their check rather than flag.
func DetectFinancialAnomalies(metrics *model.InvestmentMetrics, sector string, sourceDocs []string) ([]model.RiskFlag, FinancialHealthReport) {
	report := FinancialHealthReport{Sector: sector}
	if metrics == nil {
		return nil, report
	}
	if len(sourceDocs) == 0 {
		sourceDocs = metrics.SourceDocuments
	}
	if len(sourceDocs) == 0 {
		sourceDocs = []string{"unknown"}
	}

	bounds := thresholdsFor(sector)

	var flags []model.RiskFlag
	add := func(severity model.RiskSeverity, title, description string, affected ...string) {
		f := model.NewRiskFlag(model.RiskFinancialAnomaly, severity, title)
		f.Description = description
		f.AffectedMetrics = affected
		f.SourceDocuments = sourceDocs
		f.Confidence = 0.85
		f.Category = "financial"
		flags = append(flags, f)
		report.ChecksFlagged++
	}

	// Churn against sector norms. A missing figure is itself a finding: no
	// serious deck omits retention.
	if metrics.Traction.ChurnRate == nil {
		report.ChecksRun++
		add(model.SeverityMedium, "churn not disclosed",
			"documents state no churn or retention figure", "churn_rate")
	}
	if churn := metrics.Traction.ChurnRate; churn != nil {
		report.ChecksRun++
		switch {
		case *churn <= bounds.ChurnHealthy:
			report.ChurnStatus = "healthy"
		case *churn <= bounds.ChurnWarning:
			report.ChurnStatus = "warning"
			add(model.SeverityMedium, "elevated churn",
				fmt.Sprintf("monthly churn of %.1f%% exceeds the healthy %s ceiling of %.1f%%",
					*churn, sector, bounds.ChurnHealthy), "churn_rate")
		default:
			report.ChurnStatus = "critical"
			add(model.SeverityHigh, "critical churn",
				fmt.Sprintf("monthly churn of %.1f%% exceeds the %s warning ceiling of %.1f%%",
					*churn, sector, bounds.ChurnWarning), "churn_rate")
		}
	}

	// LTV:CAC ratio.
	ratio := metrics.Traction.LTVCACRatio
	if ratio == nil && metrics.Traction.LTV != nil && metrics.Traction.CAC != nil && *metrics.Traction.CAC > 0 {
		r := *metrics.Traction.LTV / *metrics.Traction.CAC
		ratio = &r
	}
	if ratio != nil {
		report.ChecksRun++
		switch {
		case *ratio < ltvCACCritical:
			report.LTVCACStatus = "critical"
			add(model.SeverityHigh, "unsustainable unit economics",
				fmt.Sprintf("LTV:CAC of %.1f is below %.0f; each customer may destroy value", *ratio, ltvCACCritical),
				"ltv", "cac")
		case *ratio < ltvCACWeak:
			report.LTVCACStatus = "weak"
			add(model.SeverityMedium, "weak unit economics",
				fmt.Sprintf("LTV:CAC of %.1f is below the %.0f benchmark", *ratio, ltvCACWeak),
				"ltv", "cac")
		case *ratio >= ltvCACIdeal:
			report.LTVCACStatus = "ideal"
		default:
			report.LTVCACStatus = "healthy"
		}
	}

	// CAC payback period in months.
	if payback := paybackMonths(metrics, bounds); payback != nil {
		report.ChecksRun++
		report.PaybackMonths = payback
		switch {
		case *payback > paybackCriticalMonths:
			add(model.SeverityHigh, "CAC payback beyond three years",
				fmt.Sprintf("estimated payback of %.0f months exceeds %.0f", *payback, paybackCriticalMonths),
				"cac", "mrr", "gross_margin")
		case *payback > paybackWarningMonths:
			add(model.SeverityMedium, "slow CAC payback",
				fmt.Sprintf("estimated payback of %.0f months exceeds %.0f", *payback, paybackWarningMonths),
				"cac", "mrr", "gross_margin")
		}
	}

	// Burn multiple: annualized net burn over current ARR.
	if bm := burnMultiple(metrics); bm != nil {
		report.ChecksRun++
		report.BurnMultiple = bm
		if *bm > burnMultipleHigh {
			add(model.SeverityHigh, "capital-inefficient growth",
				fmt.Sprintf("burn multiple of %.1f means $%.2f burned per $1 of ARR", *bm, *bm),
				"burn_rate", "arr")
		}
	}

	// ARR/MRR internal consistency.
	if metrics.Revenue.ARR != nil && metrics.Revenue.MRR != nil && *metrics.Revenue.MRR > 0 {
		report.ChecksRun++
		implied := *metrics.Revenue.MRR * 12
		diff := (*metrics.Revenue.ARR - implied) / implied
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.20 {
			add(model.SeverityMedium, "ARR and MRR disagree",
				fmt.Sprintf("stated ARR %s differs from 12x MRR (%s) by %.0f%%",
					formatValue(*metrics.Revenue.ARR), formatValue(implied), diff*100),
				"arr", "mrr")
		}
	}

	// Gross margin floor for the sector.
	if gm := metrics.Revenue.GrossMargin; gm != nil {
		report.ChecksRun++
		if *gm < bounds.GrossMarginFloor {
			add(model.SeverityMedium, "gross margin below sector floor",
				fmt.Sprintf("gross margin of %.0f%% is under the %s floor of %.0f%%",
					*gm, sector, bounds.GrossMarginFloor), "gross_margin")
		}
	}

	// Projection series plausibility: implied year-over-year growth should
	// decay, not swing.
	if proj := metrics.Revenue.ProjectedARR; len(proj) >= 3 {
		report.ChecksRun++
		if projectionErratic(proj) {
			add(model.SeverityMedium, "erratic revenue projection",
				"projected ARR growth swings year to year instead of decaying smoothly",
				"projected_arr")
		}
	}

	// Cohort retention trend, when a retention series is supplied.
	if cohorts := metrics.Traction.CohortRetention; len(cohorts) >= cohortMinSeries {
		report.ChecksRun++
		report.CohortTrend = cohortTrend(cohorts)
		latestChurn := 100 - cohorts[len(cohorts)-1]
		if report.CohortTrend == "deteriorating" && latestChurn > bounds.ChurnWarning {
			add(model.SeverityHigh, "deteriorating cohort retention",
				fmt.Sprintf("retention is falling across cohorts and the latest cohort churns at %.1f%%, past the %s ceiling of %.1f%%",
					latestChurn, sector, bounds.ChurnWarning), "cohort_retention", "churn_rate")
		}
	}

	// Runway sanity when raising.
	if metrics.Team.RunwayMonths != nil && *metrics.Team.RunwayMonths < 6 {
		report.ChecksRun++
		add(model.SeverityHigh, "short runway",
			fmt.Sprintf("runway of %.0f months forces a raise under pressure", *metrics.Team.RunwayMonths),
			"runway_months")
	}

	return model.SortFlags(flags), report
}

// projectionErratic reports whether implied year-over-year growth rates
// increase sharply partway through the series or turn negative after growth.
func projectionErratic(proj []float64) bool {
	var prevGrowth float64
	for i := 1; i < len(proj); i++ {
		if proj[i-1] <= 0 {
			return true
		}
		growth := (proj[i] - proj[i-1]) / proj[i-1]
		if i > 1 {
			if growth > prevGrowth*2 && growth > 0.5 {
				return true
			}
			if growth < 0 && prevGrowth > 0 {
				return true
			}
		}
		prevGrowth = growth
	}
	return false
}

// cohortTrend compares average retention between the older and newer halves
// of the series. Small drifts inside cohortDeltaGuard read as stable.
func cohortTrend(cohorts []float64) string {
	half := len(cohorts) / 2
	older := mean(cohorts[:half])
	newer := mean(cohorts[len(cohorts)-half:])
	switch {
	case newer >= older+cohortDeltaGuard:
		return "improving"
	case newer <= older-cohortDeltaGuard:
		return "deteriorating"
	default:
		return "stable"
	}
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// paybackMonths estimates CAC payback from CAC, per-customer MRR, and gross
// margin. Falls back to the sector margin floor when margin is unstated.
func paybackMonths(m *model.InvestmentMetrics, bounds sectorThresholds) *float64 {
	if m.Traction.CAC == nil || m.Revenue.MRR == nil || m.Traction.Customers == nil {
		return nil
	}
	customers := float64(*m.Traction.Customers)
	if customers <= 0 || *m.Revenue.MRR <= 0 {
		return nil
	}
	margin := bounds.GrossMarginFloor / 100
	if m.Revenue.GrossMargin != nil {
		margin = *m.Revenue.GrossMargin / 100
	}
	if margin <= 0 {
		return nil
	}
	perCustomerMRR := *m.Revenue.MRR / customers
	payback := *m.Traction.CAC / (perCustomerMRR * margin)
	return &payback
}

// burnMultiple is annualized net burn over current ARR.
func burnMultiple(m *model.InvestmentMetrics) *float64 {
	if m.Team.BurnRate == nil || m.Revenue.ARR == nil || *m.Revenue.ARR <= 0 {
		return nil
	}
	annualBurn := *m.Team.BurnRate * 12
	bm := annualBurn / *m.Revenue.ARR
	return &bm
}
