package model

// MissingReason classifies why an expected field has no value.
type MissingReason string

const (
	MissingNone             MissingReason = ""
	MissingNotFoundInSource MissingReason = "NOT_FOUND_IN_SOURCE"
	MissingExtractionFailed MissingReason = "LLM_EXTRACTION_FAILED"
	MissingParserError      MissingReason = "PARSER_ERROR"
)

// FieldCoverage is the per-expected-field state within one coverage
// computation.
type FieldCoverage struct {
	FieldKey      string        `json:"field_key"`
	HasValue      bool          `json:"has_value"`
	HasEvidence   bool          `json:"has_evidence"`
	Confidence    float64       `json:"confidence"`
	Priority      FieldPriority `json:"priority"`
	Weight        float64       `json:"weight"`
	MissingReason MissingReason `json:"missing_reason,omitempty"`
}

// CoverageReport is the full output of one coverage computation, including
// the prioritized gap-fill candidate list.
type CoverageReport struct {
	Fields         map[string]FieldCoverage `json:"fields"`
	Score          float64                  `json:"score"`
	CriticalScore  float64                  `json:"critical_score"`
	ImportantScore float64                  `json:"important_score"`
	OptionalScore  float64                  `json:"optional_score"`
	TotalWeight    float64                  `json:"total_weight"`
	AchievedWeight float64                  `json:"achieved_weight"`
	Candidates     []string                 `json:"gap_fill_candidates,omitempty"`
}
