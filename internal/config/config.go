package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the assisted matcher.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxConcurrent int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ExcerptChars  int    `yaml:"excerpt_chars" mapstructure:"excerpt_chars"`
}

// NotionConfig holds Notion API credentials for review queue export.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReviewDB string `yaml:"review_db" mapstructure:"review_db"`
}

// MatchConfig configures the linkage engine.
type MatchConfig struct {
	RulesPath        string  `yaml:"rules_path" mapstructure:"rules_path"`
	RateYearWindow   int     `yaml:"rate_year_window" mapstructure:"rate_year_window"`
	AmountTolerance  float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	LLMAcceptMin     float64 `yaml:"llm_accept_min" mapstructure:"llm_accept_min"`
	DisableLLM       bool    `yaml:"disable_llm" mapstructure:"disable_llm"`
	MinDocumentChars int     `yaml:"min_document_chars" mapstructure:"min_document_chars"`
}

// DedupeConfig configures duplicate detection and merging.
type DedupeConfig struct {
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// ReconcileConfig configures debt reconciliation thresholds.
type ReconcileConfig struct {
	// ScaleRatio flags scale_suspect when the instrument-sum to
	// reported-debt ratio exceeds it in either direction.
	ScaleRatio float64 `yaml:"scale_ratio" mapstructure:"scale_ratio"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("DEBTLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_concurrent", 3)
	v.SetDefault("anthropic.excerpt_chars", 4000)
	v.SetDefault("match.rate_year_window", 1000)
	v.SetDefault("match.amount_tolerance", 0.20)
	v.SetDefault("match.llm_accept_min", 0.7)
	v.SetDefault("match.min_document_chars", 200)
	v.SetDefault("reconcile.scale_ratio", 90.0)

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

	return &cfg, nil
}

// Validate checks that the configuration is complete for the given mode.
// Modes correspond to command groups: "store" for anything touching the
// database, "match" for the linkage engine, "review" for Notion export,
// "serve" for the HTTP API.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}

	switch mode {
	case "store":
		requireStore()
	case "match":
		requireStore()
		if !c.Match.DisableLLM && c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required unless match.disable_llm is set")
		}
		if c.Match.LLMAcceptMin < 0 || c.Match.LLMAcceptMin > 1 {
			problems = append(problems, "match.llm_accept_min must be between 0 and 1")
		}
		if c.Match.AmountTolerance <= 0 || c.Match.AmountTolerance >= 1 {
			problems = append(problems, "match.amount_tolerance must be between 0 and 1")
		}
	case "review":
		requireStore()
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.ReviewDB == "" {
			problems = append(problems, "notion.review_db is required")
		}
	case "serve":
		requireStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 50 {
		problems = append(problems, "batch.max_concurrent_companies must be between 1 and 50")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
