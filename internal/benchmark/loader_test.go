package benchmark

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const benchmarkCSV = `sector,stage,geography,metric,min_val,p25,median,p75,p90,max_val,mean,std_dev,sample_size,data_source
saas,seed,na,arr,100000,500000,1000000,3000000,8000000,50000000,2000000,1500000,40,pitchbook
saas,,,churn_rate,1,2,4,8,12,30,5.5,3.2,25,pitchbook
`

func TestParseCSV(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader(benchmarkCSV))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "saas", rows[0].Sector)
	assert.Equal(t, "seed", rows[0].Stage)
	assert.Equal(t, "na", rows[0].Geography)
	assert.Equal(t, "arr", rows[0].Metric)
	assert.InDelta(t, 1e6, rows[0].Median, 1)
	assert.Equal(t, 40, rows[0].SampleSize)
	assert.Equal(t, "pitchbook", rows[0].DataSource)

	assert.Empty(t, rows[1].Stage)
	assert.Empty(t, rows[1].Geography)
	assert.InDelta(t, 4, rows[1].Median, 0.001)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	header := strings.SplitAfter(benchmarkCSV, "\n")[0]
	_, err := ParseCSV(strings.NewReader(header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestParseCSV_WrongFieldCount(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("a,b,c\n1,2,3\n"))
	assert.Error(t, err)
}

func TestParseCSV_BadNumber(t *testing.T) {
	bad := strings.Replace(benchmarkCSV, "1000000", "not-a-number", 1)
	_, err := ParseCSV(strings.NewReader(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv row 2")
}

func TestLoad_EmptyRows(t *testing.T) {
	n, err := Load(context.Background(), nil, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoad_Upserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_sector_benchmarks"}, loaderColumns).
		WillReturnResult(2)
	mock.ExpectExec("INSERT INTO \"sector_benchmarks\"").WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows, err := ParseCSV(strings.NewReader(benchmarkCSV))
	require.NoError(t, err)

	n, err := Load(context.Background(), mock, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
