// Package openai runs resume extraction against OpenAI-compatible chat
// APIs. Gemini is served through the same client via its compatibility
// endpoint.
package openai

import (
	"context"
	"errors"

	sdk "github.com/sashabaranov/go-openai"
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

	requestsPerSecond = 2
)

// ChatClient is the slice of the SDK surface the extractor uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error)
}

// Extractor runs full-record and single-field resume extraction against an
// OpenAI-compatible chat endpoint.
type Extractor struct {
	client   ChatClient
	provider string
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
// pass and gap-fill trip together for the same provider.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(e *Extractor) { e.breaker = cb }
}

// NewExtractor creates an extractor for the OpenAI API.
func NewExtractor(apiKey, modelName string, registry *model.FieldRegistry, opts ...Option) *Extractor {
	return newExtractor(sdk.NewClient(apiKey), "openai", modelName, registry, opts...)
}

// NewGeminiExtractor creates an extractor that speaks to Gemini through
// Google's OpenAI-compatible endpoint.
func NewGeminiExtractor(apiKey, baseURL, modelName string, registry *model.FieldRegistry, opts ...Option) *Extractor {
	cfg := sdk.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newExtractor(sdk.NewClientWithConfig(cfg), "gemini", modelName, registry, opts...)
}

// NewExtractorWithClient injects a client, for tests.
func NewExtractorWithClient(client ChatClient, provider, modelName string, registry *model.FieldRegistry, opts ...Option) *Extractor {
	return newExtractor(client, provider, modelName, registry, opts...)
}

func newExtractor(client ChatClient, provider, modelName string, registry *model.FieldRegistry, opts ...Option) *Extractor {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger(provider, "extract")

	cbCfg := resilience.DefaultCircuitBreakerConfig()
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("circuit state change",
			zap.String("provider", provider),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	}

	e := &Extractor{
		client:   client,
		provider: provider,
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

// complete issues one chat call, tagging rate limits and server-side
// failures as retryable by status code.
func (e *Extractor) complete(ctx context.Context, req sdk.ChatCompletionRequest) (sdk.ChatCompletionResponse, error) {
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *sdk.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.HTTPStatusCode) {
			return resp, resilience.NewTransientError(err, apiErr.HTTPStatusCode)
		}
	}
	return resp, err
}

func (e *Extractor) Name() string      { return e.provider }
func (e *Extractor) ModelName() string { return e.model }

// Extract requests every registry field from the document in one call.
func (e *Extractor) Extract(ctx context.Context, sourceText string) (model.ExtractionResult, error) {
	result := model.ExtractionResult{Provider: e.provider, Model: e.model}

	if err := e.limiter.Wait(ctx); err != nil {
		return result, err
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (sdk.ChatCompletionResponse, error) {
		return resilience.DoVal(ctx, e.retry, func(ctx context.Context) (sdk.ChatCompletionResponse, error) {
			return e.complete(ctx, sdk.ChatCompletionRequest{
				Model:     e.model,
				MaxTokens: extractMaxTokens,
				ResponseFormat: &sdk.ChatCompletionResponseFormat{
					Type: sdk.ChatCompletionResponseFormatTypeJSONObject,
				},
				Messages: []sdk.ChatCompletionMessage{
					{Role: sdk.ChatMessageRoleSystem, Content: extract.SystemPrompt},
					{Role: sdk.ChatMessageRoleUser, Content: extract.UserPrompt(e.registry, sourceText)},
				},
			})
		})
	})
	if err != nil {
		return result, err
	}
	result.InputTokens = resp.Usage.PromptTokens
	result.OutputTokens = resp.Usage.CompletionTokens
	if len(resp.Choices) == 0 {
		result.Error = "empty completion"
		return result, nil
	}

	payload, err := extract.ParsePayload(resp.Choices[0].Message.Content)
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

// ExtractField performs one targeted gap-fill call.
func (e *Extractor) ExtractField(ctx context.Context, prompt, sourceText string, spec *model.FieldSpec) gapfill.CallResult {
	if err := e.limiter.Wait(ctx); err != nil {
		return gapfill.CallResult{Outcome: gapfill.OutcomeTimeout, Err: err}
	}

	resp, err := resilience.ExecuteVal(ctx, e.breaker, func(ctx context.Context) (sdk.ChatCompletionResponse, error) {
		return e.complete(ctx, sdk.ChatCompletionRequest{
			Model:     e.model,
			MaxTokens: fieldMaxTokens,
			Messages: []sdk.ChatCompletionMessage{
				{Role: sdk.ChatMessageRoleSystem, Content: prompt},
				{Role: sdk.ChatMessageRoleUser, Content: sourceText},
			},
		})
	})
	if err != nil {
		return gapfill.CallResult{Outcome: classifyError(ctx, err), Err: err}
	}

	res := gapfill.CallResult{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) == 0 {
		res.Outcome = gapfill.OutcomeInvalid
		return res
	}

	value, err := extract.ParseFieldValue(resp.Choices[0].Message.Content, spec)
	if err != nil {
		zap.L().Debug("openai: field reply unusable",
			zap.String("provider", e.provider),
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
