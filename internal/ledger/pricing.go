package ledger

// ModelPricing holds per-million-token pricing for a model.
type ModelPricing struct {
	InputPerMTok  float64 // USD per million prompt tokens
	OutputPerMTok float64 // USD per million completion tokens
}

// modelPricingTable maps OpenRouter model identifiers to their pricing.
// Both dotted and dashed version spellings appear in span attributes.
var modelPricingTable = map[string]ModelPricing{
	"anthropic/claude-haiku-4.5":  {InputPerMTok: 0.8, OutputPerMTok: 4.0},
	"anthropic/claude-haiku-4-5":  {InputPerMTok: 0.8, OutputPerMTok: 4.0},
	"anthropic/claude-sonnet-4.6": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
	"anthropic/claude-sonnet-4-6": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
	"anthropic/claude-opus-4-6":   {InputPerMTok: 15.0, OutputPerMTok: 75.0},
	"anthropic/claude-opus-4.6":   {InputPerMTok: 15.0, OutputPerMTok: 75.0},

	"openai/gpt-4-turbo": {InputPerMTok: 10.0, OutputPerMTok: 30.0},
	"openai/gpt-4":       {InputPerMTok: 30.0, OutputPerMTok: 60.0},

	"google/gemini-2.0-flash":      {InputPerMTok: 0.075, OutputPerMTok: 0.3},
	"google/gemini-2.0-flash-lite": {InputPerMTok: 0.0375, OutputPerMTok: 0.15},
}

// GetModelPricing returns pricing for a model. Unknown identifiers price
// at zero: a model we cannot price must not inflate the spend total.
func GetModelPricing(model string) ModelPricing {
	if p, ok := modelPricingTable[model]; ok {
		return p
	}
	return ModelPricing{}
}

// CalculateCost computes the USD cost of a request from token counts.
func CalculateCost(model string, promptTokens, completionTokens int) float64 {
	p := GetModelPricing(model)
	inputCost := float64(promptTokens) / 1_000_000 * p.InputPerMTok
	outputCost := float64(completionTokens) / 1_000_000 * p.OutputPerMTok
	return inputCost + outputCost
}
