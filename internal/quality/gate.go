// Package quality scores a reconciled record against configurable thresholds
// and renders the pass/fail verdict for a run.
package quality

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/model"
)

// Default thresholds. Coverage and critical coverage are hard gates; the
// evidence and consensus ratios only warn because a record without full
// cross-validation can still be deliverable.
const (
	DefaultMinCoverage         = 0.6
	DefaultMinCriticalCoverage = 0.8
	DefaultMinEvidenceRatio    = 0.5
	DefaultMinConsensusRatio   = 0.6
)

// Config holds the gate thresholds. Zero values mean "use the default";
// RequiredFields defaults to the registry's required set when nil.
type Config struct {
	MinCoverage         float64  `mapstructure:"min_coverage"`
	MinCriticalCoverage float64  `mapstructure:"min_critical_coverage"`
	MinEvidenceRatio    float64  `mapstructure:"min_evidence_ratio"`
	MinConsensusRatio   float64  `mapstructure:"min_consensus_ratio"`
	RequiredFields      []string `mapstructure:"required_fields"`
}

// DefaultConfig returns the stock thresholds with the registry's required
// field set.
func DefaultConfig(registry *model.FieldRegistry) Config {
	required := make([]string, 0)
	for _, f := range registry.Required() {
		required = append(required, f.Key)
	}
	return Config{
		MinCoverage:         DefaultMinCoverage,
		MinCriticalCoverage: DefaultMinCriticalCoverage,
		MinEvidenceRatio:    DefaultMinEvidenceRatio,
		MinConsensusRatio:   DefaultMinConsensusRatio,
		RequiredFields:      required,
	}
}

// Gate evaluates QualityMetrics for one run.
type Gate struct {
	registry *model.FieldRegistry
	cfg      Config
}

func NewGate(registry *model.FieldRegistry, cfg Config) *Gate {
	if cfg.MinCoverage == 0 {
		cfg.MinCoverage = DefaultMinCoverage
	}
	if cfg.MinCriticalCoverage == 0 {
		cfg.MinCriticalCoverage = DefaultMinCriticalCoverage
	}
	if cfg.MinEvidenceRatio == 0 {
		cfg.MinEvidenceRatio = DefaultMinEvidenceRatio
	}
	if cfg.MinConsensusRatio == 0 {
		cfg.MinConsensusRatio = DefaultMinConsensusRatio
	}
	if cfg.RequiredFields == nil {
		for _, f := range registry.Required() {
			cfg.RequiredFields = append(cfg.RequiredFields, f.Key)
		}
	}
	return &Gate{registry: registry, cfg: cfg}
}

// Evaluate computes the metrics for a record and checks them against the
// configured thresholds. Nil evidence or consensus inputs leave their
// ratios at zero without warning suppression.
func (g *Gate) Evaluate(record map[string]any, confidence map[string]float64, evidence *model.EvidenceResult, consensus *model.ConsensusSummary) model.QualityGateResult {
	metrics := g.computeMetrics(record, confidence, evidence, consensus)

	result := model.QualityGateResult{Metrics: metrics, Passed: true}

	if metrics.CoverageScore < g.cfg.MinCoverage {
		result.Failures = append(result.Failures,
			fmt.Sprintf("coverage %.2f below minimum %.2f", metrics.CoverageScore, g.cfg.MinCoverage))
	}
	if metrics.CriticalCoverage < g.cfg.MinCriticalCoverage {
		result.Failures = append(result.Failures,
			fmt.Sprintf("critical coverage %.2f below minimum %.2f", metrics.CriticalCoverage, g.cfg.MinCriticalCoverage))
	}
	for _, key := range g.cfg.RequiredFields {
		if !model.HasValue(record[key]) {
			result.Failures = append(result.Failures, fmt.Sprintf("required field %s missing", key))
		}
	}

	if metrics.EvidenceBackedRatio < g.cfg.MinEvidenceRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("evidence-backed ratio %.2f below %.2f", metrics.EvidenceBackedRatio, g.cfg.MinEvidenceRatio))
	}
	if metrics.CrossValidationRatio < g.cfg.MinConsensusRatio {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("cross-validation ratio %.2f below %.2f", metrics.CrossValidationRatio, g.cfg.MinConsensusRatio))
	}

	result.Passed = len(result.Failures) == 0
	if !result.Passed {
		zap.L().Warn("quality gate failed",
			zap.Strings("failures", result.Failures),
			zap.Float64("coverage", metrics.CoverageScore))
	}
	return result
}

func (g *Gate) computeMetrics(record map[string]any, confidence map[string]float64, evidence *model.EvidenceResult, consensus *model.ConsensusSummary) model.QualityMetrics {
	var m model.QualityMetrics

	var totalW, filledW float64
	var criticalW, criticalFilledW float64
	var importantW, importantFilledW float64
	for _, f := range g.registry.Fields {
		totalW += f.Weight
		filled := model.HasValue(record[f.Key])
		if filled {
			filledW += f.Weight
			m.FieldsPresent++
		}
		m.FieldsTotal++
		switch f.Priority {
		case model.PriorityCritical:
			criticalW += f.Weight
			if filled {
				criticalFilledW += f.Weight
			}
		case model.PriorityImportant:
			importantW += f.Weight
			if filled {
				importantFilledW += f.Weight
			}
		}
	}
	if totalW > 0 {
		m.CoverageScore = filledW / totalW
	}
	if criticalW > 0 {
		m.CriticalCoverage = criticalFilledW / criticalW
	}
	if importantW > 0 {
		m.ImportantCoverage = importantFilledW / importantW
	}

	if evidence != nil {
		m.EvidenceBackedRatio = evidence.BackedRatio
	}
	if consensus != nil {
		m.CrossValidationRatio = consensus.CrossValidatedRatio()
	}

	if len(confidence) > 0 {
		min := 1.0
		sum := 0.0
		for _, c := range confidence {
			sum += c
			if c < min {
				min = c
			}
		}
		m.AvgConfidence = sum / float64(len(confidence))
		m.MinConfidence = min
	}
	return m
}
