package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/benchmark"
	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

var (
	benchSector    string
	benchStage     string
	benchGeography string
)

var benchmarksCmd = &cobra.Command{
	Use:   "benchmarks",
	Short: "Query and load the benchmark warehouse",
}

func warehousePool(cmd *cobra.Command) (*pgxpool.Pool, error) {
	if cfg.Warehouse.DatabaseURL == "" {
		return nil, eris.New("warehouse database URL is not configured (AEGIS_WAREHOUSE_DATABASE_URL)")
	}
	pool, err := pgxpool.New(cmd.Context(), cfg.Warehouse.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "create warehouse pool")
	}
	if err := pool.Ping(cmd.Context()); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping warehouse")
	}
	return pool, nil
}

var benchmarksShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show benchmark distributions for a sector",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := warehousePool(cmd)
		if err != nil {
			return err
		}
		defer pool.Close()

		w := benchmark.New(pool, time.Duration(cfg.Warehouse.QueryTimeoutSecs)*time.Second)
		data, err := w.FetchBenchmarks(cmd.Context(), benchmark.Query{
			Sector:    benchSector,
			Stage:     model.FundingStage(benchStage),
			Geography: benchGeography,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	},
}

var benchmarksLoadCmd = &cobra.Command{
	Use:   "load <csv-file>",
	Short: "Load benchmark distributions from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close()

		rows, err := benchmark.ParseCSV(f)
		if err != nil {
			return err
		}

		pool, err := warehousePool(cmd)
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := benchmark.Load(cmd.Context(), pool, rows)
		if err != nil {
			return err
		}
		zap.L().Info("benchmarks loaded", zap.Int64("rows", n), zap.String("file", args[0]))
		return nil
	},
}

func init() {
	benchmarksShowCmd.Flags().StringVar(&benchSector, "sector", "saas", "sector to query")
	benchmarksShowCmd.Flags().StringVar(&benchStage, "stage", "", "funding stage filter")
	benchmarksShowCmd.Flags().StringVar(&benchGeography, "geography", "", "geography filter")
	benchmarksCmd.AddCommand(benchmarksShowCmd, benchmarksLoadCmd)
	rootCmd.AddCommand(benchmarksCmd)
}
