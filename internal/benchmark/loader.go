package benchmark

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/db"
)

// Row is one benchmark distribution row destined for the warehouse.
type Row struct {
	Sector     string
	Stage      string
	Geography  string
	Metric     string
	Min        float64
	P25        float64
	Median     float64
	P75        float64
	P90        float64
	Max        float64
	Mean       float64
	StdDev     float64
	SampleSize int
	DataSource string
}

var loaderColumns = []string{
	"sector", "stage", "geography", "metric",
	"min_val", "p25", "median", "p75", "p90", "max_val",
	"mean", "std_dev", "sample_size", "data_source", "updated_at",
}

// Load upserts rows into the sector_benchmarks table, keyed on
// (sector, stage, geography, metric).
func Load(ctx context.Context, pool db.Pool, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{
			r.Sector, r.Stage, r.Geography, r.Metric,
			r.Min, r.P25, r.Median, r.P75, r.P90, r.Max,
			r.Mean, r.StdDev, r.SampleSize, r.DataSource, now,
		})
	}

	n, err := db.BulkUpsert(ctx, pool, db.UpsertConfig{
		Table:        "sector_benchmarks",
		Columns:      loaderColumns,
		ConflictKeys: []string{"sector", "stage", "geography", "metric"},
	}, values)
	if err != nil {
		return 0, eris.Wrap(err, "benchmark: load rows")
	}

	zap.L().Info("benchmark: loaded rows", zap.Int64("rows", n))
	return n, nil
}

// csv column layout, matching loaderColumns without updated_at.
const csvFieldCount = 14

// ParseCSV reads benchmark rows from a headered CSV stream.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = csvFieldCount

	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "benchmark: read csv")
	}
	if len(records) < 2 {
		return nil, eris.New("benchmark: csv has no data rows")
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseCSVRecord(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "benchmark: csv row %d", i+2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseCSVRecord(rec []string) (Row, error) {
	floats := make([]float64, 8)
	for i, idx := range []int{4, 5, 6, 7, 8, 9, 10, 11} {
		v, err := strconv.ParseFloat(rec[idx], 64)
		if err != nil {
			return Row{}, eris.Wrapf(err, "parse %s", loaderColumns[idx])
		}
		floats[i] = v
	}
	sampleSize, err := strconv.Atoi(rec[12])
	if err != nil {
		return Row{}, eris.Wrap(err, "parse sample_size")
	}

	return Row{
		Sector:     rec[0],
		Stage:      rec[1],
		Geography:  rec[2],
		Metric:     rec[3],
		Min:        floats[0],
		P25:        floats[1],
		Median:     floats[2],
		P75:        floats[3],
		P90:        floats[4],
		Max:        floats[5],
		Mean:       floats[6],
		StdDev:     floats[7],
		SampleSize: sampleSize,
		DataSource: rec[13],
	}, nil
}
