package model

// ConsensusMethod identifies how a field's final value was chosen.
type ConsensusMethod string

const (
	MethodNoData            ConsensusMethod = "no_data"
	MethodSingle            ConsensusMethod = "single"
	MethodUnanimous         ConsensusMethod = "unanimous"
	MethodMajorityVote      ConsensusMethod = "majority_vote"
	MethodHighestConfidence ConsensusMethod = "highest_confidence"
)

// Disagreement records a losing claim for audit purposes.
type Disagreement struct {
	Provider   string  `json:"provider"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ConsensusOutcome is the resolved value for one field. Recomputed, never
// mutated, whenever new claims arrive for the field.
type ConsensusOutcome struct {
	FieldKey        string          `json:"field_key"`
	Value           any             `json:"value"`
	Confidence      float64         `json:"confidence"`
	Method          ConsensusMethod `json:"method"`
	AgreementRatio  float64         `json:"agreement_ratio"`
	Providers       []string        `json:"providers"`
	HadDisagreement bool            `json:"had_disagreement"`
	Disagreements   []Disagreement  `json:"disagreements,omitempty"`
	Evidence        string          `json:"evidence,omitempty"`
}

// ConsensusSummary is a telemetry view over all resolved fields in a run.
type ConsensusSummary struct {
	FieldsTotal     int                     `json:"fields_total"`
	MethodCounts    map[ConsensusMethod]int `json:"method_counts"`
	DisagreedFields []string                `json:"disagreed_fields,omitempty"`
	AvgConfidence   float64                 `json:"avg_confidence"`
}

// CrossValidatedRatio returns the fraction of consensed fields resolved by
// agreement (unanimous or majority) rather than tie-break or fallback.
func (s *ConsensusSummary) CrossValidatedRatio() float64 {
	if s == nil || s.FieldsTotal == 0 {
		return 0
	}
	agreed := s.MethodCounts[MethodUnanimous] + s.MethodCounts[MethodMajorityVote]
	return float64(agreed) / float64(s.FieldsTotal)
}
