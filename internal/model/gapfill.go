package model

// GapFillAttempt records the terminal outcome of targeted re-extraction for
// one field, including how many retries it consumed.
type GapFillAttempt struct {
	FieldKey         string  `json:"field_key"`
	Value            any     `json:"value,omitempty"`
	Confidence       float64 `json:"confidence"`
	Success          bool    `json:"success"`
	Retries          int     `json:"retries"`
	InputTokens      int     `json:"input_tokens,omitempty"`
	OutputTokens     int     `json:"output_tokens,omitempty"`
	CacheWriteTokens int     `json:"cache_write_tokens,omitempty"`
	CacheReadTokens  int     `json:"cache_read_tokens,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// GapFillOutcome summarizes a gap-fill batch. Skipped is true when coverage
// already met the threshold and no calls were made.
type GapFillOutcome struct {
	Attempts     map[string]GapFillAttempt `json:"attempts,omitempty"`
	Filled       []string                  `json:"filled_fields,omitempty"`
	StillMissing []string                  `json:"still_missing,omitempty"`
	TotalCalls   int                       `json:"total_llm_calls"`
	TotalRetries int                       `json:"total_retries"`
	Skipped      bool                      `json:"skipped"`
}
