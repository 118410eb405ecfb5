// Package cost converts token usage into dollar figures per run.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// Calculator computes USD cost for extraction and gap-fill token usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Tokens computes the cost of one call. Unknown provider/model pairs cost
// zero so a new deployment never blocks on missing pricing rows.
func (c *Calculator) Tokens(provider, model string, input, output int) float64 {
	rate, ok := c.table(provider)[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// TokensCached computes the cost of an Anthropic call with prompt caching.
func (c *Calculator) TokensCached(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	base := (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
	cw := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	cr := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return base + cw + cr
}

func (c *Calculator) table(provider string) map[string]ModelRate {
	switch provider {
	case "openai":
		return c.rates.OpenAI
	case "claude", "anthropic":
		return c.rates.Anthropic
	case "gemini":
		return c.rates.Gemini
	default:
		return nil
	}
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		OpenAI: map[string]ModelRate{
			"gpt-4o":      {Input: 2.50, Output: 10.00},
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
		},
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
			"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
		},
	}
}
