package pipeline

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

// Unit-economics thresholds shared across sectors.
const (
	ltvCACCritical = 2.0
	ltvCACWeak     = 3.0
	ltvCACIdeal    = 5.0

	paybackWarningMonths  = 18.0
	paybackCriticalMonths = 36.0

	burnMultipleHigh = 4.0

	cohortMinSeries  = 3
	cohortDeltaGuard = 2.0
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

// sectorThresholds holds the per-sector health bounds. Churn values are
// monthly percentages.
type sectorThresholds struct {
	ChurnHealthy     float64 `yaml:"churn_healthy"`
	ChurnWarning     float64 `yaml:"churn_warning"`
	GrossMarginFloor float64 `yaml:"gross_margin_floor"`
}

var financialThresholds = mustLoadThresholds()

func mustLoadThresholds() map[string]sectorThresholds {
	var m map[string]sectorThresholds
	if err := yaml.Unmarshal(thresholdsYAML, &m); err != nil {
		panic("pipeline: embedded thresholds are malformed: " + err.Error())
	}
	if _, ok := m["default"]; !ok {
		panic("pipeline: embedded thresholds lack a default entry")
	}
	return m
}

// thresholdsFor returns the sector's thresholds, falling back to defaults
// for sectors without their own row.
func thresholdsFor(sector string) sectorThresholds {
	if t, ok := financialThresholds[sector]; ok {
		return t
	}
	return financialThresholds["default"]
}
