package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// ProviderResult is the normalized output of one deep-research call.
type ProviderResult struct {
	Rows             []ResultRow
	Summary          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

const researchPromptTemplate = `You are a research assistant for a podcast and YouTube guest-booking platform.
Find up to %d real shows matching this query: %q

Respond with a single JSON object of the form:
{"results": [{"name": "...", "host": "...", "platform": "podcast|youtube|both", "contact_email": "...", "subscriber_count": 0, "episode_count": 0}], "summary": "..."}

Omit fields you cannot determine. Do not include any text outside the JSON object.`

type GeminiResearchProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiResearchProvider(client *genai.Client, modelName string) *GeminiResearchProvider {
	return &GeminiResearchProvider{client: client, modelName: modelName}
}

// DeepResearch asks the model for machine-parseable rows rather than
// prose; downstream consumers need field access, not text.
func (p *GeminiResearchProvider) DeepResearch(ctx context.Context, query string, maxResults int) (*ProviderResult, error) {
	model := p.client.GenerativeModel(p.modelName)
	model.ResponseMIMEType = "application/json"

	prompt := fmt.Sprintf(researchPromptTemplate, maxResults, query)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("research provider call failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("research provider returned an empty response")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("research provider returned a non-text part")
	}

	var parsed struct {
		Results []ResultRow `json:"results"`
		Summary string      `json:"summary"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(text))), &parsed); err != nil {
		return nil, fmt.Errorf("research provider returned malformed JSON: %w", err)
	}

	rows := parsed.Results
	if len(rows) > maxResults {
		rows = rows[:maxResults]
	}

	result := &ProviderResult{
		Rows:    rows,
		Summary: parsed.Summary,
		Model:   p.modelName,
	}
	if resp.UsageMetadata != nil {
		result.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		result.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return result, nil
}
