package pipeline

import (
	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/consensus"
	"github.com/potensiadev/reconciler/internal/evidence"
	"github.com/potensiadev/reconciler/internal/model"
	"github.com/potensiadev/reconciler/internal/quality"
	"github.com/potensiadev/reconciler/internal/rules"
)

// Aggregator runs the reconciliation stages for one run in a fixed order:
// merge, consensus, rule validation, evidence enforcement, quality gate.
// One Aggregator is constructed per run; nothing here is shared state.
type Aggregator struct {
	registry  *model.FieldRegistry
	validator *rules.Validator
	enforcer  *evidence.Enforcer
	gate      *quality.Gate
}

func NewAggregator(registry *model.FieldRegistry, validator *rules.Validator, enforcer *evidence.Enforcer, gate *quality.Gate) *Aggregator {
	return &Aggregator{
		registry:  registry,
		validator: validator,
		enforcer:  enforcer,
		gate:      gate,
	}
}

// Reconcile merges the per-provider extractions into one validated,
// quality-scored record. The run succeeds iff at least one extractor
// contributed; a quality-gate failure is surfaced separately so a
// low-quality record is still deliverable.
func (a *Aggregator) Reconcile(extractions []model.ExtractionResult, sourceText string) *model.ReconcileResult {
	result := &model.ReconcileResult{
		Record:        make(map[string]any),
		ConfidenceMap: make(map[string]float64),
	}

	evidenceMap := make(map[string]string)
	successful := a.merge(extractions, result, evidenceMap)

	if len(successful) >= 2 {
		a.crossValidate(successful, result)
	}

	a.validate(result)

	evResult := a.enforcer.Enforce(result.Record, evidenceMap, sourceText)
	a.enforcer.ApplyPenalties(result.ConfidenceMap, evResult)
	result.Evidence = evResult

	if len(result.ConfidenceMap) > 0 {
		var sum float64
		for _, c := range result.ConfidenceMap {
			sum += c
		}
		result.OverallConfidence = sum / float64(len(result.ConfidenceMap))
	}

	gateResult := a.gate.Evaluate(result.Record, result.ConfidenceMap, evResult, result.Consensus)
	result.Quality = &gateResult
	result.QualityGatePassed = gateResult.Passed
	result.Warnings = append(result.Warnings, gateResult.Warnings...)

	result.Success = len(successful) > 0

	zap.L().Info("reconcile finished",
		zap.Int("extractors", len(successful)),
		zap.Int("fields", len(result.Record)),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.Bool("quality_gate_passed", result.QualityGatePassed))
	return result
}

// merge combines extractions field-by-field. Later extractors overwrite
// only with non-null values; confidence and evidence maps shallow-merge
// the same way. Failed extractions contribute nothing but are still
// counted in the token totals.
func (a *Aggregator) merge(extractions []model.ExtractionResult, result *model.ReconcileResult, evidenceMap map[string]string) []model.ExtractionResult {
	var successful []model.ExtractionResult
	for _, ex := range extractions {
		result.InputTokens += ex.InputTokens
		result.OutputTokens += ex.OutputTokens
		if !ex.Success {
			zap.L().Warn("extractor failed, merging without it",
				zap.String("provider", ex.Provider),
				zap.String("error", ex.Error))
			continue
		}
		successful = append(successful, ex)
		result.Extractors = append(result.Extractors, ex.Provider)

		for key, value := range ex.Data {
			if !model.HasValue(value) {
				continue
			}
			result.Record[key] = value
			if c, ok := ex.ConfidenceMap[key]; ok {
				result.ConfidenceMap[key] = c
			}
		}
		for key, excerpt := range ex.EvidenceMap {
			if excerpt != "" {
				evidenceMap[key] = excerpt
			}
		}
	}
	return successful
}

// crossValidate resolves each cross-validation field by consensus over the
// successful extractors' claims and overwrites the merged value and
// confidence with the outcome.
func (a *Aggregator) crossValidate(successful []model.ExtractionResult, result *model.ReconcileResult) {
	builder := consensus.NewBuilder()
	for _, f := range a.registry.Fields {
		if !f.CrossValidate {
			continue
		}
		for _, ex := range successful {
			value := ex.Data[f.Key]
			if !model.HasValue(value) {
				continue
			}
			builder.AddClaim(f.Key, model.NewSourceValue(
				ex.Provider, value, ex.ConfidenceMap[f.Key], ex.EvidenceMap[f.Key], ""))
		}
	}

	for field, outcome := range builder.ResolveAll() {
		if outcome.Method == model.MethodNoData {
			continue
		}
		result.Record[field] = outcome.Value
		result.ConfidenceMap[field] = outcome.Confidence
		if outcome.HadDisagreement {
			result.Warnings = append(result.Warnings, "providers disagreed on "+field)
		}
	}
	result.Consensus = builder.Summary()
}

// validate normalizes every merged field in place and folds the per-field
// outcomes into a summary. Invalid values stay in the record unchanged;
// the error is reported, never silently dropped.
func (a *Aggregator) validate(result *model.ReconcileResult) {
	summary := &model.ValidationSummary{}
	for key, value := range result.Record {
		fv := a.validator.ValidateAndNormalize(key, value)
		summary.FieldsChecked++
		result.Record[key] = fv.Normalized
		if len(fv.Changes) > 0 {
			summary.FieldsChanged++
		}
		if !fv.Valid {
			summary.Invalid++
		}
		summary.Warnings = append(summary.Warnings, fv.Warnings...)
		summary.Errors = append(summary.Errors, fv.Errors...)
	}
	result.Validation = summary
	result.Warnings = append(result.Warnings, summary.Warnings...)
}
