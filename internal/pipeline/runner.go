package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/potensiadev/reconciler/internal/coverage"
	"github.com/potensiadev/reconciler/internal/cost"
	"github.com/potensiadev/reconciler/internal/gapfill"
	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/store"
)

// ExtractionProvider produces one full-record extraction for a document.
type ExtractionProvider interface {
	Name() string
	ModelName() string
	Extract(ctx context.Context, sourceText string) (model.ExtractionResult, error)
}

// Runner orchestrates one reconciliation run end to end: scatter/gather
// extraction, aggregation, coverage, gap-fill, persistence.
type Runner struct {
	aggregator *Aggregator
	calculator *coverage.Calculator
	filler     *gapfill.Agent
	costs      *cost.Calculator
	store      store.Store
	providers  []ExtractionProvider

	// Gap-fill calls are priced against this provider and model.
	fillProvider string
	fillModel    string
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithGapFill enables targeted re-extraction backed by the named provider.
func WithGapFill(filler *gapfill.Agent, provider, model string) RunnerOption {
	return func(r *Runner) {
		r.filler = filler
		r.fillProvider = provider
		r.fillModel = model
	}
}

// WithStore enables run persistence.
func WithStore(s store.Store) RunnerOption {
	return func(r *Runner) { r.store = s }
}

// WithCosts enables dollar-cost accounting.
func WithCosts(c *cost.Calculator) RunnerOption {
	return func(r *Runner) { r.costs = c }
}

func NewRunner(aggregator *Aggregator, calculator *coverage.Calculator, providers []ExtractionProvider, opts ...RunnerOption) *Runner {
	r := &Runner{
		aggregator: aggregator,
		calculator: calculator,
		providers:  providers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reconciles one document. The error return covers infrastructure only
// (persistence); extraction and quality failures degrade into the result.
func (r *Runner) Run(ctx context.Context, documentID, sourceText string) (*model.ReconcileResult, error) {
	var run *model.Run
	if r.store != nil {
		created, err := r.store.CreateRun(ctx, documentID)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		run = created
	}
	return r.Execute(ctx, run, sourceText)
}

// Execute reconciles against an already-created run. run may be nil when
// persistence is disabled.
func (r *Runner) Execute(ctx context.Context, run *model.Run, sourceText string) (*model.ReconcileResult, error) {
	if r.store != nil && run != nil {
		if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusReconciling); err != nil {
			return nil, eris.Wrap(err, "pipeline: update run status")
		}
	}

	extractions := r.GatherExtractions(ctx, sourceText)
	result := r.aggregator.Reconcile(extractions, sourceText)
	result.TotalCostUSD = r.extractionCost(extractions)

	evidenceMap := mergedEvidence(extractions)
	result.Coverage = r.calculator.Calculate(result.Record, result.ConfidenceMap, evidenceMap, sourceText)

	if r.filler != nil && result.Success {
		r.fillGaps(ctx, run, result, evidenceMap, sourceText)
	}

	if r.store != nil && run != nil {
		status := model.RunStatusComplete
		if !result.Success {
			status = model.RunStatusFailed
		}
		if err := r.store.UpdateRunResult(ctx, run.ID, result); err != nil {
			return nil, eris.Wrap(err, "pipeline: persist result")
		}
		if err := r.store.UpdateRunStatus(ctx, run.ID, status); err != nil {
			return nil, eris.Wrap(err, "pipeline: finalize run status")
		}
	}
	return result, nil
}

// GatherExtractions dispatches all providers concurrently and blocks until
// every call completes or fails. A provider failure degrades to a merge
// input with zero contribution instead of aborting the run.
func (r *Runner) GatherExtractions(ctx context.Context, sourceText string) []model.ExtractionResult {
	results := make([]model.ExtractionResult, len(r.providers))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.providers {
		g.Go(func() error {
			res, err := p.Extract(gctx, sourceText)
			if err != nil {
				zap.L().Warn("extraction provider failed",
					zap.String("provider", p.Name()),
					zap.Error(err))
				res = model.ExtractionResult{
					Provider: p.Name(),
					Model:    p.ModelName(),
					Error:    err.Error(),
				}
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// fillGaps runs the gap-fill batch, merges accepted values back into the
// record, and recomputes coverage and the quality verdict over the final
// record.
func (r *Runner) fillGaps(ctx context.Context, run *model.Run, result *model.ReconcileResult, evidenceMap map[string]string, sourceText string) {
	if r.store != nil && run != nil {
		if err := r.store.UpdateRunStatus(ctx, run.ID, model.RunStatusGapFilling); err != nil {
			zap.L().Warn("gap-fill status update failed", zap.Error(err))
		}
	}

	outcome := r.filler.Fill(ctx, result.Coverage.Candidates, sourceText, result.Coverage.Score)
	result.GapFill = outcome
	if outcome.Skipped || len(outcome.Attempts) == 0 {
		return
	}

	// Filled values get the same normalization pass as main-pass values.
	for _, key := range outcome.Filled {
		attempt := outcome.Attempts[key]
		fv := r.aggregator.validator.ValidateAndNormalize(key, attempt.Value)
		result.Record[key] = fv.Normalized
		result.ConfidenceMap[key] = attempt.Confidence
		result.Warnings = append(result.Warnings, fv.Warnings...)
		if result.Validation != nil {
			result.Validation.FieldsChecked++
			if len(fv.Changes) > 0 {
				result.Validation.FieldsChanged++
			}
			if !fv.Valid {
				result.Validation.Invalid++
			}
			result.Validation.Warnings = append(result.Validation.Warnings, fv.Warnings...)
			result.Validation.Errors = append(result.Validation.Errors, fv.Errors...)
		}
	}
	var fillIn, fillOut, cacheWrite, cacheRead int
	for _, attempt := range outcome.Attempts {
		fillIn += attempt.InputTokens
		fillOut += attempt.OutputTokens
		cacheWrite += attempt.CacheWriteTokens
		cacheRead += attempt.CacheReadTokens
	}
	result.InputTokens += fillIn
	result.OutputTokens += fillOut
	if r.costs != nil {
		switch r.fillProvider {
		case "claude", "anthropic":
			// Anthropic bills cached prompt tokens at their own rates.
			result.TotalCostUSD += r.costs.TokensCached(r.fillModel, fillIn, fillOut, cacheWrite, cacheRead)
		default:
			result.TotalCostUSD += r.costs.Tokens(r.fillProvider, r.fillModel, fillIn, fillOut)
		}
	}

	result.Coverage = r.calculator.Calculate(result.Record, result.ConfidenceMap, evidenceMap, sourceText)
	gateResult := r.aggregator.gate.Evaluate(result.Record, result.ConfidenceMap, result.Evidence, result.Consensus)
	result.Quality = &gateResult
	result.QualityGatePassed = gateResult.Passed
}

func (r *Runner) extractionCost(extractions []model.ExtractionResult) float64 {
	if r.costs == nil {
		return 0
	}
	var total float64
	for _, ex := range extractions {
		total += r.costs.Tokens(ex.Provider, ex.Model, ex.InputTokens, ex.OutputTokens)
	}
	return total
}

func mergedEvidence(extractions []model.ExtractionResult) map[string]string {
	merged := make(map[string]string)
	for _, ex := range extractions {
		if !ex.Success {
			continue
		}
		for key, excerpt := range ex.EvidenceMap {
			if excerpt != "" {
				merged[key] = excerpt
			}
		}
	}
	return merged
}
