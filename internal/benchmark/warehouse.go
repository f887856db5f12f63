// Package benchmark retrieves sector benchmark distributions from the
// analytical warehouse.
package benchmark

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/db"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// maxMetricRows caps how many distribution rows a single fetch will scan.
const maxMetricRows = 200

// Query identifies the benchmark slice a fetch should return.
type Query struct {
	Sector    string
	Stage     model.FundingStage
	Geography string

	// CompanyText is free-form company description used to infer a sector
	// when the requested one has no benchmark rows.
	CompanyText string
}

// Source supplies benchmark data to the pipeline.
type Source interface {
	FetchBenchmarks(ctx context.Context, q Query) (*model.BenchmarkData, error)
	ReferenceTAM(ctx context.Context, sector string) (float64, error)
	ReferenceCompetitors(ctx context.Context, sector string) ([]string, error)
}

// SectorInference maps free company text to a sector and a confidence.
// An empty sector means no inference could be made.
type SectorInference func(text string) (sector string, confidence float64)

// Warehouse implements Source and the classifier's sector lookup against a
// postgres analytical store.
type Warehouse struct {
	pool    db.Pool
	timeout time.Duration
	cache   *Cache
	queries *QueryPool
	infer   SectorInference
}

// Option configures a Warehouse.
type Option func(*Warehouse)

// WithCache attaches a TTL cache so repeated fetches skip the warehouse.
func WithCache(c *Cache) Option {
	return func(w *Warehouse) { w.cache = c }
}

// WithQueryPool attaches a query registry so in-flight fetches can be
// cancelled as a group.
func WithQueryPool(p *QueryPool) Option {
	return func(w *Warehouse) { w.queries = p }
}

// WithSectorInference attaches a fallback used when the requested sector
// has no benchmark rows, before resorting to the cross-sector aggregate.
func WithSectorInference(fn SectorInference) Option {
	return func(w *Warehouse) { w.infer = fn }
}

// New creates a Warehouse over an existing pool. timeout bounds each query.
func New(pool db.Pool, timeout time.Duration, opts ...Option) *Warehouse {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &Warehouse{pool: pool, timeout: timeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

const benchmarkQuery = `
SELECT metric, min_val, p25, median, p75, p90, max_val, mean, std_dev, sample_size, data_source, updated_at
FROM sector_benchmarks
WHERE sector = $1 AND (stage = $2 OR stage = '') AND (geography = $3 OR geography = '')
ORDER BY metric, stage DESC, geography DESC
LIMIT $4`

// FetchBenchmarks returns the metric distributions for a benchmark query.
// Rows with too few samples are dropped. A sector with no rows falls back
// to a sector inferred from the company text when an inference is attached,
// then to the cross-sector aggregate.
func (w *Warehouse) FetchBenchmarks(ctx context.Context, q Query) (*model.BenchmarkData, error) {
	if w.cache != nil {
		if data, ok := w.cache.Get(q); ok {
			return data, nil
		}
	}

	ctx, done := w.track(ctx)
	defer done()

	data, err := w.fetchSector(ctx, q.Sector, q)
	if err != nil {
		return nil, err
	}
	if len(data.Metrics) == 0 && w.infer != nil && q.CompanyText != "" {
		if inferred, confidence := w.infer(q.CompanyText); inferred != "" && inferred != q.Sector {
			zap.L().Info("benchmark: no rows for sector, trying inferred sector",
				zap.String("sector", q.Sector),
				zap.String("inferred", inferred))
			fallback, err := w.fetchSector(ctx, inferred, q)
			if err != nil {
				return nil, err
			}
			if len(fallback.Metrics) > 0 {
				fallback.Sector = q.Sector
				fallback.Confidence *= confidence
				data = fallback
			}
		}
	}
	if len(data.Metrics) == 0 && q.Sector != "all" {
		zap.L().Info("benchmark: no rows for sector, using aggregate",
			zap.String("sector", q.Sector))
		data, err = w.fetchSector(ctx, "all", q)
		if err != nil {
			return nil, err
		}
		data.Sector = q.Sector
		data.Confidence *= 0.7
	}

	if w.cache != nil {
		w.cache.Put(q, data)
	}
	return data, nil
}

func (w *Warehouse) fetchSector(ctx context.Context, sector string, q Query) (*model.BenchmarkData, error) {
	qctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	rows, err := w.pool.Query(qctx, benchmarkQuery, sector, string(q.Stage), q.Geography, maxMetricRows)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: query sector %s", sector)
	}
	defer rows.Close()

	data := &model.BenchmarkData{
		Sector:     sector,
		Stage:      q.Stage,
		Geography:  q.Geography,
		Metrics:    map[string]model.MetricDistribution{},
		Confidence: 1.0,
	}

	for rows.Next() {
		var metric, dataSource string
		var d model.MetricDistribution
		var updatedAt time.Time
		if err := rows.Scan(&metric, &d.Min, &d.P25, &d.Median, &d.P75, &d.P90,
			&d.Max, &d.Mean, &d.StdDev, &d.SampleSize, &dataSource, &updatedAt); err != nil {
			return nil, eris.Wrap(err, "benchmark: scan row")
		}
		if d.SampleSize < model.MinSampleSize {
			zap.L().Debug("benchmark: dropping thin distribution",
				zap.String("metric", metric),
				zap.Int("sample_size", d.SampleSize),
			)
			continue
		}
		// Stage- and geography-specific rows sort first and win over
		// the sector-wide rows.
		if _, exists := data.Metrics[metric]; exists {
			continue
		}
		data.Metrics[metric] = d
		data.DataSource = dataSource
		if updatedAt.After(data.LastUpdated) {
			data.LastUpdated = updatedAt
		}
	}
	return data, eris.Wrap(rows.Err(), "benchmark: iterate rows")
}

const referenceTAMQuery = `
SELECT tam_estimate FROM market_estimates WHERE sector = $1 ORDER BY updated_at DESC LIMIT 1`

// ReferenceTAM returns an independent TAM estimate for the sector, or zero
// when the warehouse has none.
func (w *Warehouse) ReferenceTAM(ctx context.Context, sector string) (float64, error) {
	ctx, done := w.track(ctx)
	defer done()
	qctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var tam float64
	err := w.pool.QueryRow(qctx, referenceTAMQuery, sector).Scan(&tam)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "benchmark: reference TAM for %s", sector)
	}
	return tam, nil
}

const referenceCompetitorsQuery = `
SELECT company FROM sector_competitors WHERE sector = $1 ORDER BY rank LIMIT $2`

// maxReferenceCompetitors bounds how many known players a completeness
// check is measured against.
const maxReferenceCompetitors = 5

// ReferenceCompetitors returns the warehouse's top-ranked competitors for
// the sector, or nil when it tracks none.
func (w *Warehouse) ReferenceCompetitors(ctx context.Context, sector string) ([]string, error) {
	ctx, done := w.track(ctx)
	defer done()
	qctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	rows, err := w.pool.Query(qctx, referenceCompetitorsQuery, sector, maxReferenceCompetitors)
	if err != nil {
		return nil, eris.Wrapf(err, "benchmark: reference competitors for %s", sector)
	}
	defer rows.Close()

	var companies []string
	for rows.Next() {
		var company string
		if err := rows.Scan(&company); err != nil {
			return nil, eris.Wrap(err, "benchmark: scan competitor row")
		}
		companies = append(companies, company)
	}
	return companies, eris.Wrap(rows.Err(), "benchmark: iterate competitor rows")
}

const sectorLookupQuery = `
SELECT sector, confidence FROM company_sectors
WHERE lower(name) = lower($1)
ORDER BY confidence DESC LIMIT 1`

// LookupSector consults the warehouse's curated company-sector table. A
// company the warehouse has never seen returns an empty sector, not an error.
func (w *Warehouse) LookupSector(ctx context.Context, name, _ string) (string, float64, error) {
	if name == "" {
		return "", 0, nil
	}
	ctx, done := w.track(ctx)
	defer done()
	qctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	var sector string
	var confidence float64
	err := w.pool.QueryRow(qctx, sectorLookupQuery, name).Scan(&sector, &confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, eris.Wrapf(err, "benchmark: sector lookup for %s", name)
	}
	return sector, confidence, nil
}

// track registers the query with the pool, if one is attached, so callers
// can cancel all in-flight warehouse work at once.
func (w *Warehouse) track(ctx context.Context) (context.Context, func()) {
	if w.queries == nil {
		return ctx, func() {}
	}
	return w.queries.Register(ctx)
}
