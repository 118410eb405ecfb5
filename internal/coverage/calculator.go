// Package coverage scores how much of the expected field table a record
// actually fills, explains each gap, and picks gap-fill candidates.
package coverage

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/model"
)

// A field counts toward achieved weight only at or above this confidence.
const ConfidenceFloor = 0.6

// Candidate selection is capped so a sparse record does not trigger a full
// re-extraction pass.
const MaxCandidates = 5

// Special-case patterns for missing-reason search. A phone number or email
// present in the source counts as the keyword being present even when no
// label word appears near it.
var (
	phonePattern = regexp.MustCompile(`01[016789][-.\s]?\d{3,4}[-.\s]?\d{4}`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// Calculator computes weighted coverage for one record against the field
// registry.
type Calculator struct {
	registry *model.FieldRegistry
}

func NewCalculator(registry *model.FieldRegistry) *Calculator {
	return &Calculator{registry: registry}
}

// Calculate scores the record and classifies every absent field. sourceText
// drives the missing-reason keyword search; evidenceMap tells LLM failures
// apart from parser failures.
func (c *Calculator) Calculate(record map[string]any, confidence map[string]float64, evidenceMap map[string]string, sourceText string) *model.CoverageReport {
	report := &model.CoverageReport{
		Fields: make(map[string]model.FieldCoverage, len(c.registry.Fields)),
	}
	loweredSource := strings.ToLower(sourceText)

	var achieved struct{ critical, important, optional float64 }
	var total struct{ critical, important, optional float64 }

	for i := range c.registry.Fields {
		f := &c.registry.Fields[i]
		fc := model.FieldCoverage{
			FieldKey:    f.Key,
			Priority:    f.Priority,
			Weight:      f.Weight,
			HasValue:    model.HasValue(record[f.Key]),
			HasEvidence: evidenceMap[f.Key] != "",
			Confidence:  confidence[f.Key],
		}
		if !fc.HasValue {
			fc.MissingReason = c.classifyMissing(f, fc.HasEvidence, loweredSource)
		}

		report.TotalWeight += f.Weight
		if fc.HasValue && fc.Confidence >= ConfidenceFloor {
			report.AchievedWeight += f.Weight
		}
		switch f.Priority {
		case model.PriorityCritical:
			total.critical += f.Weight
			if fc.HasValue && fc.Confidence >= ConfidenceFloor {
				achieved.critical += f.Weight
			}
		case model.PriorityImportant:
			total.important += f.Weight
			if fc.HasValue && fc.Confidence >= ConfidenceFloor {
				achieved.important += f.Weight
			}
		case model.PriorityOptional:
			total.optional += f.Weight
			if fc.HasValue && fc.Confidence >= ConfidenceFloor {
				achieved.optional += f.Weight
			}
		}
		report.Fields[f.Key] = fc
	}

	if report.TotalWeight > 0 {
		report.Score = report.AchievedWeight / report.TotalWeight
	}
	if total.critical > 0 {
		report.CriticalScore = achieved.critical / total.critical
	}
	if total.important > 0 {
		report.ImportantScore = achieved.important / total.important
	}
	if total.optional > 0 {
		report.OptionalScore = achieved.optional / total.optional
	}

	report.Candidates = c.selectCandidates(report)

	zap.L().Debug("coverage computed",
		zap.Float64("score", report.Score),
		zap.Float64("critical", report.CriticalScore),
		zap.Strings("candidates", report.Candidates))
	return report
}

// classifyMissing explains why a field has no value. Keyword absent from
// the source means the document never mentioned it; keyword present with
// evidence means the extractor saw it and lost it; keyword present without
// evidence points at the parsing stage.
func (c *Calculator) classifyMissing(f *model.FieldSpec, hasEvidence bool, loweredSource string) model.MissingReason {
	if !c.keywordInSource(f, loweredSource) {
		return model.MissingNotFoundInSource
	}
	if hasEvidence {
		return model.MissingExtractionFailed
	}
	return model.MissingParserError
}

func (c *Calculator) keywordInSource(f *model.FieldSpec, loweredSource string) bool {
	for _, kw := range f.Keywords {
		if strings.Contains(loweredSource, strings.ToLower(kw)) {
			return true
		}
	}
	switch f.Key {
	case "phone":
		return phonePattern.MatchString(loweredSource)
	case "email":
		return emailPattern.MatchString(loweredSource)
	}
	return false
}

// selectCandidates walks the fixed gap-fill order collecting missing and
// low-confidence fields up to the cap, then appends any critical candidates
// the walk skipped while room remains.
func (c *Calculator) selectCandidates(report *model.CoverageReport) []string {
	var out []string
	picked := make(map[string]bool)

	needsFill := func(key string) bool {
		fc, ok := report.Fields[key]
		if !ok {
			return false
		}
		return !fc.HasValue || fc.Confidence < ConfidenceFloor
	}

	for _, key := range c.registry.GapFillOrder() {
		if len(out) >= MaxCandidates {
			break
		}
		if needsFill(key) && !picked[key] {
			out = append(out, key)
			picked[key] = true
		}
	}
	for _, f := range c.registry.Critical() {
		if len(out) >= MaxCandidates {
			break
		}
		if needsFill(f.Key) && !picked[f.Key] {
			out = append(out, f.Key)
			picked[f.Key] = true
		}
	}
	return out
}
