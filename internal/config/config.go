// Package config loads application configuration from file and environment
// and owns global logger setup.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Evidence   EvidenceConfig   `yaml:"evidence" mapstructure:"evidence"`
	GapFill    GapFillConfig    `yaml:"gap_fill" mapstructure:"gap_fill"`
	Fields     FieldsConfig     `yaml:"fields" mapstructure:"fields"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// GeminiConfig holds Gemini settings. The client speaks the
// OpenAI-compatible endpoint Google exposes.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// QualityConfig holds the quality gate thresholds.
type QualityConfig struct {
	MinCoverage         float64  `yaml:"min_coverage" mapstructure:"min_coverage"`
	MinCriticalCoverage float64  `yaml:"min_critical_coverage" mapstructure:"min_critical_coverage"`
	MinEvidenceRatio    float64  `yaml:"min_evidence_ratio" mapstructure:"min_evidence_ratio"`
	MinConsensusRatio   float64  `yaml:"min_consensus_ratio" mapstructure:"min_consensus_ratio"`
	RequiredFields      []string `yaml:"required_fields" mapstructure:"required_fields"`
}

// EvidenceConfig configures evidence verification.
type EvidenceConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// GapFillConfig bounds targeted re-extraction.
type GapFillConfig struct {
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CoverageThreshold float64 `yaml:"coverage_threshold" mapstructure:"coverage_threshold"`
}

// ResilienceConfig tunes provider call retry and circuit breaking. Zero
// values take the package defaults.
type ResilienceConfig struct {
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	FailureThreshold  int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// FieldsConfig points at an optional field registry override file.
type FieldsConfig struct {
	RegistryPath string `yaml:"registry_path" mapstructure:"registry_path"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("RECONCILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "reconciler.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	v.SetDefault("quality.min_coverage", 0.6)
	v.SetDefault("quality.min_critical_coverage", 0.8)
	v.SetDefault("quality.min_evidence_ratio", 0.5)
	v.SetDefault("quality.min_consensus_ratio", 0.6)
	v.SetDefault("evidence.similarity_threshold", 0.6)
	v.SetDefault("gap_fill.max_retries", 2)
	v.SetDefault("gap_fill.timeout_secs", 5)
	v.SetDefault("gap_fill.coverage_threshold", 0.85)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 30000)
	v.SetDefault("resilience.backoff_multiplier", 2.0)
	v.SetDefault("resilience.jitter_fraction", 0.25)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)

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

// Validate checks the configuration for the given run mode and reports
// every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "reconcile":
		if c.OpenAI.Key == "" && c.Anthropic.Key == "" && c.Gemini.Key == "" {
			problems = append(problems, "at least one provider key is required (openai.key, anthropic.key, gemini.key)")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.OpenAI.Key == "" && c.Anthropic.Key == "" && c.Gemini.Key == "" {
			problems = append(problems, "at least one provider key is required (openai.key, anthropic.key, gemini.key)")
		}
	case "coverage":
		// Coverage analysis is offline and needs no credentials.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	for name, v := range map[string]float64{
		"quality.min_coverage":          c.Quality.MinCoverage,
		"quality.min_critical_coverage": c.Quality.MinCriticalCoverage,
		"quality.min_evidence_ratio":    c.Quality.MinEvidenceRatio,
		"quality.min_consensus_ratio":   c.Quality.MinConsensusRatio,
		"evidence.similarity_threshold": c.Evidence.SimilarityThreshold,
		"gap_fill.coverage_threshold":   c.GapFill.CoverageThreshold,
		"resilience.jitter_fraction":    c.Resilience.JitterFraction,
	} {
		if v < 0 || v > 1 {
			problems = append(problems, name+" must be between 0 and 1")
		}
	}
	if c.GapFill.MaxRetries < 0 || c.GapFill.MaxRetries > 10 {
		problems = append(problems, "gap_fill.max_retries must be between 0 and 10")
	}
	if c.GapFill.TimeoutSecs <= 0 {
		problems = append(problems, "gap_fill.timeout_secs must be > 0")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
