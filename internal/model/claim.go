package model

// Provider identifiers recognized by the consensus weighting table.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// providerWeights scales each provider's confidence during consensus.
// Unknown providers get the default weight.
var providerWeights = map[string]float64{
	ProviderOpenAI: 1.0,
	ProviderClaude: 0.98,
	ProviderGemini: 0.95,
}

const defaultProviderWeight = 0.9

// ProviderWeight returns the consensus weight for a provider identifier.
func ProviderWeight(provider string) float64 {
	if w, ok := providerWeights[provider]; ok {
		return w
	}
	return defaultProviderWeight
}

// SourceValue is one provider's claim about one field: the value it
// extracted, how confident it is, and the source-text excerpt it offers as
// justification. Immutable once constructed; owned by the consensus
// computation for its field.
type SourceValue struct {
	Provider   string  `json:"provider"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// NewSourceValue constructs a claim with the confidence clamped to [0, 1].
func NewSourceValue(provider string, value any, confidence float64, evidence, reasoning string) SourceValue {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return SourceValue{
		Provider:   provider,
		Value:      value,
		Confidence: confidence,
		Evidence:   evidence,
		Reasoning:  reasoning,
	}
}
