// Package gapfill runs bounded targeted re-extraction for fields that
// remained missing or low-confidence after the main reconciliation pass.
package gapfill

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/model"
)

const (
	DefaultMaxRetries        = 2
	DefaultAttemptTimeout    = 5 * time.Second
	DefaultCoverageThreshold = 0.85

	// Re-extracted values carry a fixed confidence regardless of what the
	// provider reports; a single-field prompt is not comparable to the
	// calibrated full-document pass.
	FilledConfidence = 0.85

	// Source text is truncated before each attempt to cap retry cost.
	MaxSourceChars = 4000
)

// Outcome tags the result of a single extraction call. Retry policy is a
// pure function of the tag.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeTimeout        Outcome = "timeout"
	OutcomeInvalid        Outcome = "invalid"
	OutcomeTransportError Outcome = "transport_error"
)

// CallResult is one extractor call's result. Cache token counts stay zero
// for providers without prompt caching.
type CallResult struct {
	Outcome          Outcome
	Value            any
	InputTokens      int
	OutputTokens     int
	CacheWriteTokens int
	CacheReadTokens  int
	Err              error
}

// FieldExtractor performs one targeted extraction call. Implementations
// must honor ctx cancellation; the agent wraps every call in the per-attempt
// timeout.
type FieldExtractor interface {
	ExtractField(ctx context.Context, prompt, sourceText string, spec *model.FieldSpec) CallResult
}

// Config bounds the agent. Zero values take the defaults.
type Config struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	AttemptTimeout    time.Duration `mapstructure:"attempt_timeout"`
	CoverageThreshold float64       `mapstructure:"coverage_threshold"`
}

// Agent fills record gaps one field at a time. Retries within a field are
// sequential; the caller decides whether distinct fields run concurrently.
type Agent struct {
	registry  *model.FieldRegistry
	extractor FieldExtractor
	cfg       Config
}

func NewAgent(registry *model.FieldRegistry, extractor FieldExtractor, cfg Config) *Agent {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.CoverageThreshold == 0 {
		cfg.CoverageThreshold = DefaultCoverageThreshold
	}
	return &Agent{registry: registry, extractor: extractor, cfg: cfg}
}

// Fill attempts re-extraction for every candidate field. The whole batch is
// skipped when coverage already meets the threshold, since each attempt is
// a paid call. Fields without a prompt template go straight to still-missing
// without consuming a call.
func (a *Agent) Fill(ctx context.Context, candidates []string, sourceText string, coverageScore float64) *model.GapFillOutcome {
	outcome := &model.GapFillOutcome{}
	if coverageScore >= a.cfg.CoverageThreshold {
		outcome.Skipped = true
		zap.L().Info("gap-fill skipped, coverage already sufficient",
			zap.Float64("coverage", coverageScore),
			zap.Float64("threshold", a.cfg.CoverageThreshold))
		return outcome
	}
	if len(candidates) == 0 {
		return outcome
	}

	truncated := truncate(sourceText, MaxSourceChars)
	outcome.Attempts = make(map[string]model.GapFillAttempt, len(candidates))

	for _, key := range candidates {
		spec := a.registry.ByKey(key)
		if spec == nil || spec.GapFillPrompt == "" {
			outcome.StillMissing = append(outcome.StillMissing, key)
			continue
		}

		attempt := a.fillField(ctx, spec, truncated)
		outcome.Attempts[key] = attempt
		outcome.TotalCalls += attempt.Retries + 1
		outcome.TotalRetries += attempt.Retries
		if attempt.Success {
			outcome.Filled = append(outcome.Filled, key)
		} else {
			outcome.StillMissing = append(outcome.StillMissing, key)
		}
	}

	zap.L().Info("gap-fill batch finished",
		zap.Int("filled", len(outcome.Filled)),
		zap.Int("still_missing", len(outcome.StillMissing)),
		zap.Int("llm_calls", outcome.TotalCalls))
	return outcome
}

// fillField is the per-field state machine: attempt, retry on any
// non-terminal outcome up to the limit, then report the last error tag.
func (a *Agent) fillField(ctx context.Context, spec *model.FieldSpec, sourceText string) model.GapFillAttempt {
	attempt := model.GapFillAttempt{FieldKey: spec.Key}

	for try := 0; try <= a.cfg.MaxRetries; try++ {
		attempt.Retries = try
		res := a.callOnce(ctx, spec, sourceText)
		attempt.InputTokens += res.InputTokens
		attempt.OutputTokens += res.OutputTokens
		attempt.CacheWriteTokens += res.CacheWriteTokens
		attempt.CacheReadTokens += res.CacheReadTokens

		switch res.Outcome {
		case OutcomeOK:
			attempt.Value = res.Value
			attempt.Confidence = FilledConfidence
			attempt.Success = true
			attempt.Error = ""
			return attempt
		case OutcomeTimeout, OutcomeInvalid, OutcomeTransportError:
			attempt.Error = string(res.Outcome)
			if res.Err != nil {
				zap.L().Debug("gap-fill attempt failed",
					zap.String("field", spec.Key),
					zap.String("outcome", string(res.Outcome)),
					zap.Int("try", try),
					zap.Error(res.Err))
			}
		}
	}
	return attempt
}

func (a *Agent) callOnce(ctx context.Context, spec *model.FieldSpec, sourceText string) CallResult {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout)
	defer cancel()

	res := a.extractor.ExtractField(callCtx, spec.GapFillPrompt, sourceText, spec)
	if callCtx.Err() == context.DeadlineExceeded && res.Outcome != OutcomeOK {
		res.Outcome = OutcomeTimeout
	}
	if res.Outcome == OutcomeOK && !model.HasValue(res.Value) {
		res.Outcome = OutcomeInvalid
	}
	return res
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
