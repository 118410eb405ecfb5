package model

// QualityMetrics holds the weighted scores computed once per run.
type QualityMetrics struct {
	CoverageScore        float64 `json:"coverage_score"`
	CriticalCoverage     float64 `json:"critical_coverage"`
	ImportantCoverage    float64 `json:"important_coverage"`
	EvidenceBackedRatio  float64 `json:"evidence_backed_ratio"`
	CrossValidationRatio float64 `json:"cross_validation_ratio"`
	AvgConfidence        float64 `json:"avg_confidence"`
	MinConfidence        float64 `json:"min_confidence"`
	FieldsPresent        int     `json:"fields_present"`
	FieldsTotal          int     `json:"fields_total"`
}

// QualityGateResult is the pass/fail verdict over QualityMetrics.
// Evidence and consensus shortfalls surface as warnings, not failures; a
// record without full cross-validation can still be deliverable.
type QualityGateResult struct {
	Metrics  QualityMetrics `json:"metrics"`
	Passed   bool           `json:"passed"`
	Failures []string       `json:"failures,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
}
