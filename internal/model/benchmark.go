package model

import "time"

// MinSampleSize is the smallest benchmark sample with statistical support.
// Distributions below this are excluded from percentile comparison.
const MinSampleSize = 10

// MetricDistribution is a sector-scoped percentile distribution for one metric.
type MetricDistribution struct {
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Median     float64 `json:"median"`
	P25        float64 `json:"p25"`
	P75        float64 `json:"p75"`
	P90        float64 `json:"p90"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	SampleSize int     `json:"sample_size"`
}

// Valid reports whether the distribution is internally consistent and has
// enough samples to support a percentile comparison.
func (d MetricDistribution) Valid() bool {
	if d.SampleSize < MinSampleSize {
		return false
	}
	if d.Max < d.Min {
		return false
	}
	return d.Min <= d.Median && d.Median <= d.Max
}

// BenchmarkData holds all metric distributions retrieved for one sector,
// with provenance.
type BenchmarkData struct {
	Sector      string                        `json:"sector"`
	Stage       FundingStage                  `json:"stage,omitempty"`
	Geography   string                        `json:"geography,omitempty"`
	Metrics     map[string]MetricDistribution `json:"metrics"`
	DataSource  string                        `json:"data_source"`
	Confidence  float64                       `json:"confidence"`
	LastUpdated time.Time                     `json:"last_updated"`
}

// BenchmarkComparison maps one company metric onto its sector distribution.
type BenchmarkComparison struct {
	Metric         string  `json:"metric"`
	CompanyValue   float64 `json:"company_value"`
	SectorMedian   float64 `json:"sector_median"`
	Percentile     float64 `json:"percentile"`
	Interpretation string  `json:"interpretation"`
	Context        string  `json:"context,omitempty"`
}

// SectorClassification is the sector classifier's output.
type SectorClassification struct {
	PrimarySector    string   `json:"primary_sector"`
	SecondarySectors []string `json:"secondary_sectors,omitempty"`
	Confidence       float64  `json:"confidence"`
	Reasoning        string   `json:"reasoning"`
}
