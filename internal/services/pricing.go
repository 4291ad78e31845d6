package services

// ModelPricing holds cents per million tokens. Costs are computed and
// stored in integer cents; display layers divide by 100 at render time.
type ModelPricing struct {
	PromptCentsPerMillion     int64
	CompletionCentsPerMillion int64
}

var pricingByModel = map[string]ModelPricing{
	"gemini-1.5-flash": {PromptCentsPerMillion: 8, CompletionCentsPerMillion: 30},
	"gemini-1.5-pro":   {PromptCentsPerMillion: 125, CompletionCentsPerMillion: 500},
}

// Unknown models are billed at the most expensive known rate.
var fallbackPricing = ModelPricing{PromptCentsPerMillion: 125, CompletionCentsPerMillion: 500}

// EstimateCostCents computes the cost of a call from provider-reported
// token counts. Integer arithmetic with ceiling division, so repeated
// identical inputs always produce the same figure and fractions of a
// cent round against the house.
func EstimateCostCents(model string, promptTokens, completionTokens int) int {
	pricing, ok := pricingByModel[model]
	if !ok {
		pricing = fallbackPricing
	}

	raw := int64(promptTokens)*pricing.PromptCentsPerMillion +
		int64(completionTokens)*pricing.CompletionCentsPerMillion
	if raw == 0 {
		return 0
	}
	return int((raw + 999_999) / 1_000_000)
}
