// Package consensus resolves disagreeing per-field claims from multiple
// extraction providers into a single outcome per field.
package consensus

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/potensiadev/reconciler/internal/model"
)

// Builder accumulates claims per field and resolves each field on demand.
// It is run-scoped: construct one per pipeline invocation, no locking.
type Builder struct {
	claims   map[string][]model.SourceValue
	resolved map[string]model.ConsensusOutcome
}

// NewBuilder creates an empty consensus builder.
func NewBuilder() *Builder {
	return &Builder{
		claims:   make(map[string][]model.SourceValue),
		resolved: make(map[string]model.ConsensusOutcome),
	}
}

// AddClaim records one provider's claim for a field. A duplicate provider
// replaces its prior claim rather than accumulating a second vote.
func (b *Builder) AddClaim(field string, claim model.SourceValue) {
	existing := b.claims[field]
	for i, c := range existing {
		if c.Provider == claim.Provider {
			existing[i] = claim
			b.claims[field] = existing
			return
		}
	}
	b.claims[field] = append(existing, claim)
}

// Resolve computes the consensus outcome for one field from its current
// claims. Resolving the same claims twice yields the same outcome.
func (b *Builder) Resolve(field string) model.ConsensusOutcome {
	claims := b.claims[field]
	outcome := resolve(field, claims)
	b.resolved[field] = outcome
	return outcome
}

// ResolveAll resolves every field that has at least one claim.
func (b *Builder) ResolveAll() map[string]model.ConsensusOutcome {
	out := make(map[string]model.ConsensusOutcome, len(b.claims))
	for field := range b.claims {
		out[field] = b.Resolve(field)
	}
	return out
}

// Summary returns a telemetry view over all fields resolved so far.
func (b *Builder) Summary() *model.ConsensusSummary {
	s := &model.ConsensusSummary{
		FieldsTotal:  len(b.resolved),
		MethodCounts: make(map[model.ConsensusMethod]int),
	}
	var confSum float64
	for field, o := range b.resolved {
		s.MethodCounts[o.Method]++
		confSum += o.Confidence
		if o.HadDisagreement {
			s.DisagreedFields = append(s.DisagreedFields, field)
		}
	}
	sort.Strings(s.DisagreedFields)
	if s.FieldsTotal > 0 {
		s.AvgConfidence = confSum / float64(s.FieldsTotal)
	}
	return s
}

func resolve(field string, claims []model.SourceValue) model.ConsensusOutcome {
	switch len(claims) {
	case 0:
		return model.ConsensusOutcome{
			FieldKey: field,
			Method:   model.MethodNoData,
		}
	case 1:
		c := claims[0]
		return model.ConsensusOutcome{
			FieldKey:       field,
			Value:          c.Value,
			Confidence:     c.Confidence * 0.9, // no cross-check available
			Method:         model.MethodSingle,
			AgreementRatio: 1.0,
			Providers:      []string{c.Provider},
			Evidence:       c.Evidence,
		}
	}

	providers := make([]string, len(claims))
	for i, c := range claims {
		providers[i] = c.Provider
	}

	// Tally claims by normalized value, preserving first-seen order.
	groups := make(map[string][]model.SourceValue)
	var order []string
	for _, c := range claims {
		key := comparisonKey(c.Value)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	if len(groups) == 1 {
		return resolveUnanimous(field, claims, providers)
	}

	total := len(claims)
	for _, key := range order {
		winners := groups[key]
		ratio := float64(len(winners)) / float64(total)
		if ratio > 0.5 {
			return resolveMajority(field, claims, winners, ratio, providers)
		}
	}

	return resolveHighestConfidence(field, claims, groups, providers)
}

// resolveUnanimous boosts the weight-adjusted average confidence, capped at
// 1.0. The evidence comes from the claim with the highest raw confidence.
func resolveUnanimous(field string, claims []model.SourceValue, providers []string) model.ConsensusOutcome {
	var weightedSum, weightTotal float64
	best := claims[0]
	for _, c := range claims {
		w := model.ProviderWeight(c.Provider)
		weightedSum += c.Confidence * w
		weightTotal += w
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	conf := math.Min(weightedSum/weightTotal*1.1, 1.0)

	return model.ConsensusOutcome{
		FieldKey:       field,
		Value:          best.Value,
		Confidence:     conf,
		Method:         model.MethodUnanimous,
		AgreementRatio: 1.0,
		Providers:      providers,
		Evidence:       best.Evidence,
	}
}

func resolveMajority(field string, all, winners []model.SourceValue, ratio float64, providers []string) model.ConsensusOutcome {
	var confSum float64
	best := winners[0]
	winning := make(map[string]bool, len(winners))
	for _, c := range winners {
		confSum += c.Confidence
		winning[c.Provider] = true
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	conf := confSum / float64(len(winners)) * (0.9 + ratio*0.1)

	var disagreements []model.Disagreement
	for _, c := range all {
		if !winning[c.Provider] {
			disagreements = append(disagreements, model.Disagreement{
				Provider:   c.Provider,
				Value:      c.Value,
				Confidence: c.Confidence,
			})
		}
	}

	zap.L().Debug("consensus: majority vote",
		zap.String("field", field),
		zap.Float64("agreement_ratio", ratio),
		zap.Int("dissenters", len(disagreements)),
	)

	return model.ConsensusOutcome{
		FieldKey:        field,
		Value:           best.Value,
		Confidence:      conf,
		Method:          model.MethodMajorityVote,
		AgreementRatio:  ratio,
		Providers:       providers,
		HadDisagreement: true,
		Disagreements:   disagreements,
		Evidence:        best.Evidence,
	}
}

// resolveHighestConfidence breaks ties by weight-adjusted confidence and
// applies a flat disagreement penalty to the winner.
func resolveHighestConfidence(field string, claims []model.SourceValue, groups map[string][]model.SourceValue, providers []string) model.ConsensusOutcome {
	best := claims[0]
	bestScore := best.Confidence * model.ProviderWeight(best.Provider)
	for _, c := range claims[1:] {
		if score := c.Confidence * model.ProviderWeight(c.Provider); score > bestScore {
			best, bestScore = c, score
		}
	}

	var disagreements []model.Disagreement
	for _, c := range claims {
		if c.Provider == best.Provider {
			continue
		}
		disagreements = append(disagreements, model.Disagreement{
			Provider:   c.Provider,
			Value:      c.Value,
			Confidence: c.Confidence,
		})
	}

	ratio := float64(len(groups[comparisonKey(best.Value)])) / float64(len(claims))

	zap.L().Debug("consensus: no majority, confidence tie-break",
		zap.String("field", field),
		zap.String("winner", best.Provider),
		zap.Float64("agreement_ratio", ratio),
	)

	return model.ConsensusOutcome{
		FieldKey:        field,
		Value:           best.Value,
		Confidence:      best.Confidence * 0.8, // flat disagreement penalty
		Method:          model.MethodHighestConfidence,
		AgreementRatio:  ratio,
		Providers:       providers,
		HadDisagreement: true,
		Disagreements:   disagreements,
		Evidence:        best.Evidence,
	}
}

// comparisonKey normalizes a value into a canonical string for vote
// tallying. Strings compare case- and whitespace-insensitively; floats with
// an integral value compare as integers, others round to one decimal;
// lists are normalized recursively and sorted; maps sort by key.
func comparisonKey(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return strings.Join(strings.Fields(strings.ToLower(x)), " ")
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return comparisonKey(float64(x))
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(math.Round(x*10)/10, 'f', 1, 64)
	case []any:
		keys := make([]string, len(x))
		for i, e := range x {
			keys[i] = comparisonKey(e)
		}
		sort.Strings(keys)
		return "[" + strings.Join(keys, ",") + "]"
	case []string:
		keys := make([]string, len(x))
		for i, e := range x {
			keys[i] = comparisonKey(e)
		}
		sort.Strings(keys)
		return "[" + strings.Join(keys, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + comparisonKey(x[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("%v", x)
	}
}
