package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/config"
	"github.com/potensiadev/reconciler/internal/cost"
	"github.com/potensiadev/reconciler/internal/coverage"
	"github.com/potensiadev/reconciler/internal/evidence"
	"github.com/potensiadev/reconciler/internal/gapfill"
	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/pipeline"
	"github.com/potensiadev/reconciler/internal/quality"
	"github.com/potensiadev/reconciler/internal/resilience"
	"github.com/potensiadev/reconciler/internal/rules"
	"github.com/potensiadev/reconciler/internal/store"
	anthropicpkg "github.com/potensiadev/reconciler/pkg/anthropic"
	openaipkg "github.com/potensiadev/reconciler/pkg/openai"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return store.NewSQLite(cfg.Store.SQLitePath)
	}
}

func loadRegistry() (*model.FieldRegistry, error) {
	if cfg.Fields.RegistryPath == "" {
		return model.DefaultRegistry(), nil
	}
	data, err := os.ReadFile(cfg.Fields.RegistryPath)
	if err != nil {
		return nil, eris.Wrapf(err, "read field registry %s", cfg.Fields.RegistryPath)
	}
	return model.RegistryFromYAML(data)
}

// providerTuning carries the retry policy and per-provider circuit breakers
// built from the resilience config. Breakers are shared, so the main
// extraction pass and gap-fill trip together for a provider.
type providerTuning struct {
	retry    resilience.RetryConfig
	breakers *resilience.ServiceBreakers
}

func buildTuning() providerTuning {
	r := cfg.Resilience
	cbCfg := resilience.FromCircuitConfig(r.FailureThreshold, r.ResetTimeoutSecs)
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("provider circuit state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}
	return providerTuning{
		retry:    resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.BackoffMultiplier, r.JitterFraction),
		breakers: resilience.NewServiceBreakers(cbCfg),
	}
}

func (t providerTuning) retryFor(provider string) resilience.RetryConfig {
	policy := t.retry
	policy.OnRetry = resilience.RetryLogger(provider, "extract")
	return policy
}

func buildProviders(registry *model.FieldRegistry, tuning providerTuning) []pipeline.ExtractionProvider {
	var providers []pipeline.ExtractionProvider
	if cfg.OpenAI.Key != "" {
		providers = append(providers, openaipkg.NewExtractor(cfg.OpenAI.Key, cfg.OpenAI.Model, registry,
			openaipkg.WithRetryPolicy(tuning.retryFor("openai")),
			openaipkg.WithBreaker(tuning.breakers.Get("openai"))))
	}
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		providers = append(providers, anthropicpkg.NewExtractor(client, cfg.Anthropic.Model, registry,
			anthropicpkg.WithRetryPolicy(tuning.retryFor("anthropic")),
			anthropicpkg.WithBreaker(tuning.breakers.Get("anthropic"))))
	}
	if cfg.Gemini.Key != "" {
		providers = append(providers, openaipkg.NewGeminiExtractor(cfg.Gemini.Key, cfg.Gemini.BaseURL, cfg.Gemini.Model, registry,
			openaipkg.WithRetryPolicy(tuning.retryFor("gemini")),
			openaipkg.WithBreaker(tuning.breakers.Get("gemini"))))
	}
	return providers
}

// buildGapFiller prefers the Anthropic extractor since its system prompt is
// served from cache across the per-field calls.
func buildGapFiller(registry *model.FieldRegistry, tuning providerTuning) (*gapfill.Agent, string, string) {
	agentCfg := gapfill.Config{
		MaxRetries:        cfg.GapFill.MaxRetries,
		AttemptTimeout:    time.Duration(cfg.GapFill.TimeoutSecs) * time.Second,
		CoverageThreshold: cfg.GapFill.CoverageThreshold,
	}

	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		ext := anthropicpkg.NewExtractor(client, cfg.Anthropic.Model, registry,
			anthropicpkg.WithRetryPolicy(tuning.retryFor("anthropic")),
			anthropicpkg.WithBreaker(tuning.breakers.Get("anthropic")))
		return gapfill.NewAgent(registry, ext, agentCfg), "claude", cfg.Anthropic.Model
	}
	if cfg.OpenAI.Key != "" {
		ext := openaipkg.NewExtractor(cfg.OpenAI.Key, cfg.OpenAI.Model, registry,
			openaipkg.WithRetryPolicy(tuning.retryFor("openai")),
			openaipkg.WithBreaker(tuning.breakers.Get("openai")))
		return gapfill.NewAgent(registry, ext, agentCfg), "openai", cfg.OpenAI.Model
	}
	if cfg.Gemini.Key != "" {
		ext := openaipkg.NewGeminiExtractor(cfg.Gemini.Key, cfg.Gemini.BaseURL, cfg.Gemini.Model, registry,
			openaipkg.WithRetryPolicy(tuning.retryFor("gemini")),
			openaipkg.WithBreaker(tuning.breakers.Get("gemini")))
		return gapfill.NewAgent(registry, ext, agentCfg), "gemini", cfg.Gemini.Model
	}
	return nil, "", ""
}

func buildAggregator(registry *model.FieldRegistry) *pipeline.Aggregator {
	gateCfg := quality.Config{
		MinCoverage:         cfg.Quality.MinCoverage,
		MinCriticalCoverage: cfg.Quality.MinCriticalCoverage,
		MinEvidenceRatio:    cfg.Quality.MinEvidenceRatio,
		MinConsensusRatio:   cfg.Quality.MinConsensusRatio,
		RequiredFields:      cfg.Quality.RequiredFields,
	}
	return pipeline.NewAggregator(
		registry,
		rules.NewValidator(),
		evidence.NewEnforcer(registry, cfg.Evidence.SimilarityThreshold),
		quality.NewGate(registry, gateCfg),
	)
}

func buildCosts() *cost.Calculator {
	rates := cost.DefaultRates()
	merge := func(dst map[string]cost.ModelRate, src map[string]config.ModelPricing) {
		for name, p := range src {
			dst[name] = cost.ModelRate{
				Input:         p.Input,
				Output:        p.Output,
				CacheWriteMul: p.CacheWriteMul,
				CacheReadMul:  p.CacheReadMul,
			}
		}
	}
	merge(rates.OpenAI, cfg.Pricing.OpenAI)
	merge(rates.Anthropic, cfg.Pricing.Anthropic)
	merge(rates.Gemini, cfg.Pricing.Gemini)
	return cost.NewCalculator(rates)
}

// buildRunner assembles the full pipeline. st may be nil to run without
// persistence.
func buildRunner(registry *model.FieldRegistry, st store.Store) *pipeline.Runner {
	tuning := buildTuning()
	providers := buildProviders(registry, tuning)
	opts := []pipeline.RunnerOption{pipeline.WithCosts(buildCosts())}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}
	if filler, provider, modelName := buildGapFiller(registry, tuning); filler != nil {
		opts = append(opts, pipeline.WithGapFill(filler, provider, modelName))
	}

	zap.L().Info("pipeline assembled",
		zap.Int("providers", len(providers)),
		zap.Bool("persistence", st != nil))

	return pipeline.NewRunner(
		buildAggregator(registry),
		coverage.NewCalculator(registry),
		providers,
		opts...,
	)
}
