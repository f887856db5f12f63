package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aegis-vc/dealmemo-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Warehouse  WarehouseConfig  `yaml:"warehouse" mapstructure:"warehouse"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the local run and memo store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// WarehouseConfig configures the benchmark warehouse connection.
type WarehouseConfig struct {
	DatabaseURL      string `yaml:"database_url" mapstructure:"database_url"`
	QueryTimeoutSecs int    `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	CacheTTLHours    int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	MaxQueries       int    `yaml:"max_queries" mapstructure:"max_queries"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractionConfig configures entity extraction behavior.
type ExtractionConfig struct {
	MinEntityConfidence float64 `yaml:"min_entity_confidence" mapstructure:"min_entity_confidence"`
	DisableAI           bool    `yaml:"disable_ai" mapstructure:"disable_ai"`
}

// AnalysisConfig configures the analysis stages. ReferenceTAM is the
// independent TAM estimate used when no warehouse is configured;
// MemoOutputDir, when set, is where analyze writes memos absent an explicit
// output path. StageTimeoutMS of zero leaves stages unbounded.
type AnalysisConfig struct {
	ReferenceTAM   float64 `yaml:"reference_tam" mapstructure:"reference_tam"`
	DefaultSector  string  `yaml:"default_sector" mapstructure:"default_sector"`
	MemoOutputDir  string  `yaml:"memo_output_dir" mapstructure:"memo_output_dir"`
	AnalystName    string  `yaml:"analyst_name" mapstructure:"analyst_name"`
	StageTimeoutMS int     `yaml:"stage_timeout_ms" mapstructure:"stage_timeout_ms"`
}

// ScoringConfig carries the dimension weightings.
type ScoringConfig struct {
	Weightings model.Weightings `yaml:"weightings" mapstructure:"weightings"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "dealmemo.db")
	v.SetDefault("warehouse.query_timeout_secs", 10)
	v.SetDefault("warehouse.cache_ttl_hours", 24)
	v.SetDefault("warehouse.max_queries", 16)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.requests_per_minute", 30)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("extraction.min_entity_confidence", 0.6)
	v.SetDefault("analysis.default_sector", "other")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	defaults := model.DefaultWeightings()
	v.SetDefault("scoring.weightings.market_opportunity", defaults.MarketOpportunity)
	v.SetDefault("scoring.weightings.team", defaults.Team)
	v.SetDefault("scoring.weightings.traction", defaults.Traction)
	v.SetDefault("scoring.weightings.product", defaults.Product)
	v.SetDefault("scoring.weightings.competitive_position", defaults.CompetitivePosition)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Scoring.Weightings.Validate(); err != nil {
		return nil, eris.Wrap(err, "config: scoring weightings")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
