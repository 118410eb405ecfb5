package model

// EvidenceCheck is the per-field verdict on whether a claimed excerpt is
// present at all and textually supported by the source document.
// Valid implies Present; Penalty is 0 when Valid.
type EvidenceCheck struct {
	FieldKey   string  `json:"field_key"`
	Present    bool    `json:"present"`
	Valid      bool    `json:"valid"`
	Similarity float64 `json:"similarity"`
	Penalty    float64 `json:"penalty"`
}

// EvidenceResult aggregates evidence checks over a whole record.
type EvidenceResult struct {
	Checks          map[string]EvidenceCheck `json:"checks"`
	BackedRatio     float64                  `json:"backed_ratio"`
	MissingCritical []string                 `json:"missing_critical,omitempty"`
	NeedsRetry      bool                     `json:"needs_retry"`
}
