package anthropic

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/potensiadev/reconciler/internal/extract"
	"github.com/potensiadev/reconciler/internal/gapfill"
	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/resilience"
)

const (
	extractMaxTokens = 4096
	fieldMaxTokens   = 512

	// Anthropic tier-1 rate limit headroom.
	requestsPerSecond = 0.8
)

// Extractor runs full-record and single-field resume extraction against the
// Anthropic API. It serves both the main scatter/gather pass and gap-fill.
type Extractor struct {
	client   Client
	model    string
	registry *model.FieldRegistry
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	breaker  *resilience.CircuitBreaker
}

// Option adjusts an Extractor's resilience wiring.
type Option func(*Extractor)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(cfg resilience.RetryConfig) Option {
	return func(e *Extractor) { e.retry = cfg }
}

// WithBreaker installs a shared circuit breaker, so the main extraction
// pass and gap-fill trip together.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Extractor) { e.breaker = cb }
}

func NewExtractor(client Client, modelName string, registry *model.FieldRegistry, opts ...Option) *Extractor {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "extract")

	cbCfg := resilience.DefaultCircuitBreakerConfig()
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("anthropic: circuit state change",
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}

	e := &Extractor{
		client:   client,
		model:    modelName,
		registry: registry,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		retry:    retry,
		breaker:  resilience.NewCircuitBreaker(cbCfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Name() string      { return "claude" }
func (e *Extractor) ModelName() string { return e.model }

// Extract requests every registry field from the document in one call.
func (e *Extractor) Extract(ctx context.Context, sourceText string) (model.ExtractionResult, error) {
	result := model.ExtractionResult{Provider: e.Name(), Model: e.model}

	if err := e.limiter.Wait(ctx); err != nil {
		return result, err
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*MessageResponse, error) {
		return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*MessageResponse, error) {
			return e.client.CreateMessage(ctx, MessageRequest{
				Model:     e.model,
				MaxTokens: extractMaxTokens,
				System:    BuildCachedSystemBlocks(extract.SystemPrompt),
				Messages: []Message{
					{Role: "user", Content: extract.UserPrompt(e.registry, sourceText)},
				},
			})
		})
	})
	if err != nil {
		return result, err
	}
	result.InputTokens = int(resp.Usage.InputTokens)
	result.OutputTokens = int(resp.Usage.OutputTokens)

	payload, err := extract.ParsePayload(resp.Text())
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Success = true
	result.Data = payload.Data
	result.ConfidenceMap = payload.Confidence
	result.EvidenceMap = payload.Evidence
	return result, nil
}

// ExtractField performs one targeted gap-fill call. Failures come back as
// outcome tags so the agent's retry loop stays free of error inspection.
func (e *Extractor) ExtractField(ctx context.Context, prompt, sourceText string, spec *model.FieldSpec) gapfill.CallResult {
	if err := e.limiter.Wait(ctx); err != nil {
		return gapfill.CallResult{Outcome: gapfill.OutcomeTimeout, Err: err}
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (*MessageResponse, error) {
		return e.client.CreateMessage(ctx, MessageRequest{
			Model:     e.model,
			MaxTokens: fieldMaxTokens,
			System:    BuildCachedSystemBlocks(prompt),
			Messages: []Message{
				{Role: "user", Content: sourceText},
			},
		})
	})
	if err != nil {
		return gapfill.CallResult{Outcome: classifyError(ctx, err), Err: err}
	}

	value, err := extract.ParseFieldValue(resp.Text(), spec)
	res := gapfill.CallResult{
		InputTokens:      int(resp.Usage.InputTokens),
		OutputTokens:     int(resp.Usage.OutputTokens),
		CacheWriteTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:  int(resp.Usage.CacheReadInputTokens),
	}
	if err != nil {
		zap.L().Debug("anthropic: field reply unusable",
			zap.String("field", spec.Key),
			zap.Error(err))
		res.Outcome = gapfill.OutcomeInvalid
		res.Err = err
		return res
	}
	res.Outcome = gapfill.OutcomeOK
	res.Value = value
	return res
}

func classifyError(ctx context.Context, err error) gapfill.Outcome {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return gapfill.OutcomeTimeout
	}
	return gapfill.OutcomeTransportError
}
