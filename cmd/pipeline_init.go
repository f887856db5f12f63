package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aegis-vc/dealmemo-cli/internal/benchmark"
	"github.com/aegis-vc/dealmemo-cli/internal/pipeline"
	"github.com/aegis-vc/dealmemo-cli/internal/store"
	anthropicpkg "github.com/aegis-vc/dealmemo-cli/pkg/anthropic"
)

// analysisEnv bundles the initialized pipeline dependencies and their
// teardown.
type analysisEnv struct {
	store     store.Store
	warehouse *benchmark.Warehouse
	queries   *benchmark.QueryPool
	anthropic anthropicpkg.Client
	pool      *pgxpool.Pool
}

func (e *analysisEnv) Close() {
	if e == nil {
		return
	}
	if e.queries != nil {
		e.queries.CancelAll()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "dealmemo.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the store, warehouse, and model client. The warehouse and
// the model client are optional: without them the pipeline degrades to
// pattern extraction and taxonomy classification.
func initEnv(ctx context.Context) (*analysisEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env := &analysisEnv{store: st}

	if cfg.Warehouse.DatabaseURL != "" {
		pool, poolErr := pgxpool.New(ctx, cfg.Warehouse.DatabaseURL)
		if poolErr != nil {
			env.Close()
			return nil, eris.Wrap(poolErr, "create warehouse pool")
		}
		if pingErr := pool.Ping(ctx); pingErr != nil {
			pool.Close()
			zap.L().Warn("warehouse unreachable, continuing without benchmarks", zap.Error(pingErr))
		} else {
			env.pool = pool
			env.queries = benchmark.NewQueryPool(cfg.Warehouse.MaxQueries)
			cache := benchmark.NewCache(
				time.Duration(cfg.Warehouse.CacheTTLHours)*time.Hour,
				7*24*time.Hour,
			)
			env.warehouse = benchmark.New(pool,
				time.Duration(cfg.Warehouse.QueryTimeoutSecs)*time.Second,
				benchmark.WithCache(cache),
				benchmark.WithQueryPool(env.queries),
				benchmark.WithSectorInference(pipeline.KeywordSectorInference),
			)
		}
	}

	if cfg.Anthropic.Key != "" && !cfg.Extraction.DisableAI {
		env.anthropic = anthropicpkg.NewClient(cfg.Anthropic.Key, anthropicpkg.Options{
			RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
			Timeout:           time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
		})
	} else {
		zap.L().Info("no model API key configured, using pattern extraction only")
	}

	return env, nil
}
