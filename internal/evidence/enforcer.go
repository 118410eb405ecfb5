// Package evidence verifies that claimed source-text excerpts actually
// support extracted values, and converts mismatches into confidence
// penalties rather than hard failures.
package evidence

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/model"
)

// DefaultSimilarityThreshold is the minimum windowed similarity for an
// excerpt to count as supported by the source.
const DefaultSimilarityThreshold = 0.6

// Confidence penalties per evidence failure mode.
const (
	penaltyMissingCritical = 0.2
	penaltyInvalid         = 0.5
	confidenceFloor        = 0.1
)

// Enforcer checks evidence excerpts against one source document.
// Run-scoped; construct one per pipeline invocation.
type Enforcer struct {
	registry  *model.FieldRegistry
	threshold float64
}

// NewEnforcer creates an enforcer. A non-positive threshold selects the
// default.
func NewEnforcer(registry *model.FieldRegistry, threshold float64) *Enforcer {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Enforcer{registry: registry, threshold: threshold}
}

// CheckEvidence verifies one field's excerpt against the source text.
func (e *Enforcer) CheckEvidence(field string, value any, excerpt, source string) model.EvidenceCheck {
	check := model.EvidenceCheck{FieldKey: field}

	if strings.TrimSpace(excerpt) == "" {
		if e.isCritical(field) && model.HasValue(value) {
			check.Penalty = penaltyMissingCritical
		}
		return check
	}
	check.Present = true

	check.Similarity = e.similarity(excerpt, source)
	check.Valid = check.Similarity >= e.threshold
	if !check.Valid {
		check.Penalty = penaltyInvalid
	}
	return check
}

// Enforce walks the record (including careers[] and educations[]
// sub-entries) and aggregates per-field checks.
func (e *Enforcer) Enforce(record map[string]any, evidenceMap map[string]string, source string) *model.EvidenceResult {
	result := &model.EvidenceResult{
		Checks: make(map[string]model.EvidenceCheck),
	}

	// Fields of the record itself.
	for field, value := range record {
		if !model.HasValue(value) {
			continue
		}
		check := e.CheckEvidence(field, value, evidenceMap[field], source)
		result.Checks[field] = check

		if !check.Present && e.isCritical(field) {
			result.MissingCritical = append(result.MissingCritical, field)
		}
	}

	// Sub-entry excerpts use bracketed keys, e.g. careers[0].
	for key, excerpt := range evidenceMap {
		base := key
		if i := strings.IndexByte(key, '['); i >= 0 {
			base = key[:i]
		}
		if base == key {
			continue // plain field, handled above
		}
		if !model.HasValue(record[base]) {
			continue
		}
		result.Checks[key] = e.CheckEvidence(key, record[base], excerpt, source)
	}

	var valid int
	for _, check := range result.Checks {
		if check.Valid {
			valid++
		}
	}
	if len(result.Checks) > 0 {
		result.BackedRatio = float64(valid) / float64(len(result.Checks))
	}

	if len(result.MissingCritical) > 0 {
		result.NeedsRetry = true
		zap.L().Warn("evidence: critical fields lack evidence",
			zap.Strings("fields", result.MissingCritical),
		)
	}

	return result
}

// ApplyPenalties subtracts each check's penalty from that field's
// confidence, floored at 0.1.
func (e *Enforcer) ApplyPenalties(confidence map[string]float64, result *model.EvidenceResult) {
	for field, check := range result.Checks {
		if check.Penalty == 0 {
			continue
		}
		conf, ok := confidence[field]
		if !ok {
			continue
		}
		adjusted := conf - check.Penalty
		if adjusted < confidenceFloor {
			adjusted = confidenceFloor
		}
		confidence[field] = adjusted
		zap.L().Debug("evidence: confidence penalty applied",
			zap.String("field", field),
			zap.Float64("penalty", check.Penalty),
			zap.Float64("confidence", adjusted),
		)
	}
}

func (e *Enforcer) isCritical(field string) bool {
	spec := e.registry.ByKey(field)
	return spec != nil && spec.Priority == model.PriorityCritical
}

// similarity scores how well the excerpt is supported by the source. An
// exact normalized substring scores 1.0; otherwise a window of the
// excerpt's length slides across the source taking the best edit-distance
// ratio, stopping early once the threshold is reached.
func (e *Enforcer) similarity(excerpt, source string) float64 {
	exc := normalizeText(excerpt)
	src := normalizeText(source)
	if exc == "" || src == "" {
		return 0
	}
	if strings.Contains(src, exc) {
		return 1.0
	}

	excRunes := []rune(exc)
	srcRunes := []rune(src)
	if len(srcRunes) <= len(excRunes) {
		return levenshtein.Similarity(src, exc, nil)
	}

	var best float64
	for i := 0; i+len(excRunes) <= len(srcRunes); i++ {
		window := string(srcRunes[i : i+len(excRunes)])
		if sim := levenshtein.Similarity(window, exc, nil); sim > best {
			best = sim
			if best >= e.threshold {
				break
			}
		}
	}
	return best
}

// normalizeText lowercases, collapses whitespace, and strips everything
// that is not a letter, digit, or space. Hangul syllables are letters and
// survive untouched.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
