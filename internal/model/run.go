package model

import "time"

// RunStatus represents the current state of a reconciliation run.
type RunStatus string

const (
	RunStatusQueued      RunStatus = "queued"
	RunStatusReconciling RunStatus = "reconciling"
	RunStatusGapFilling  RunStatus = "gap_filling"
	RunStatusComplete    RunStatus = "complete"
	RunStatusFailed      RunStatus = "failed"
)

// Run is the persisted envelope for one reconciliation of one document.
type Run struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Status     RunStatus        `json:"status"`
	Result     *ReconcileResult `json:"result,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// ExtractionResult is one provider's full-record extraction output, as
// consumed from the extraction layer.
type ExtractionResult struct {
	Provider      string             `json:"provider"`
	Model         string             `json:"model,omitempty"`
	Success       bool               `json:"success"`
	Data          map[string]any     `json:"data,omitempty"`
	ConfidenceMap map[string]float64 `json:"confidence_map,omitempty"`
	EvidenceMap   map[string]string  `json:"evidence_map,omitempty"`
	InputTokens   int                `json:"input_tokens,omitempty"`
	OutputTokens  int                `json:"output_tokens,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// ReconcileResult is everything the core exposes to the orchestrator for
// one run: the merged record, its confidence, the quality verdict, and the
// coverage/gap-fill breakdowns.
type ReconcileResult struct {
	Record            map[string]any     `json:"record"`
	ConfidenceMap     map[string]float64 `json:"confidence_map"`
	OverallConfidence float64            `json:"overall_confidence"`
	Success           bool               `json:"success"`
	QualityGatePassed bool               `json:"quality_gate_passed"`
	Quality           *QualityGateResult `json:"quality,omitempty"`
	Consensus         *ConsensusSummary  `json:"consensus,omitempty"`
	Evidence          *EvidenceResult    `json:"evidence,omitempty"`
	Validation        *ValidationSummary `json:"validation,omitempty"`
	Coverage          *CoverageReport    `json:"coverage,omitempty"`
	GapFill           *GapFillOutcome    `json:"gap_fill,omitempty"`
	Extractors        []string           `json:"extractors,omitempty"`
	Warnings          []string           `json:"warnings,omitempty"`
	InputTokens       int                `json:"input_tokens"`
	OutputTokens      int                `json:"output_tokens"`
	TotalCostUSD      float64            `json:"total_cost_usd"`
}
