// Package gemini serves generateContent through the Google GenAI SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/user/cognitive/pkg/llm"
)

// Backend implements llm.Backend and llm.ModelLister for the Gemini API.
type Backend struct {
	config *llm.Config
	client *genai.Client
}

// New creates a Gemini backend. An empty BaseURL uses the SDK default endpoint.
func New(ctx context.Context, config *llm.Config) (*Backend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		cc.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Backend{config: config, client: client}, nil
}

// GenerateContent maps the input onto a Gemini request.
func (b *Backend) GenerateContent(ctx context.Context, in *llm.GenerateInput) (*llm.GenerateOutput, error) {
	contents := make([]*genai.Content, 0, len(in.Messages))
	for _, m := range in.Messages {
		contents = append(contents, genai.NewContentFromText(m.Content, roleFor(m.Role)))
	}

	resp, err := b.client.Models.GenerateContent(ctx, in.Model, contents, b.generateConfig(in))
	if err != nil {
		return nil, translateError(err)
	}

	out := &llm.GenerateOutput{
		ID:       resp.ResponseID,
		Provider: b.config.Integration,
		Model:    in.Model,
		Choices:  make([]llm.Choice, 0, len(resp.Candidates)),
	}
	for i, cand := range resp.Candidates {
		out.Choices = append(out.Choices, llm.Choice{
			Index:      i,
			Role:       "assistant",
			Content:    candidateText(cand),
			StopReason: string(cand.FinishReason),
		})
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	if resp.UsageMetadata != nil {
		out.Usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.Usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if price, ok := b.config.Prices[in.Model]; ok {
		price.Apply(&out.Usage)
	}
	return out, nil
}

// ListModels enumerates the models visible to the API key.
func (b *Backend) ListModels(ctx context.Context) ([]llm.Model, error) {
	var models []llm.Model
	for m, err := range b.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("listing gemini models: %w", translateError(err))
		}
		id := strings.TrimPrefix(m.Name, "models/")
		model := llm.Model{
			ID:          id,
			Name:        m.DisplayName,
			Integration: b.config.Integration,
			Description: m.Description,
			Input:       llm.TokenLimits{MaxTokens: int(m.InputTokenLimit)},
			Output:      llm.TokenLimits{MaxTokens: int(m.OutputTokenLimit)},
		}
		if model.Name == "" {
			model.Name = id
		}
		if price, ok := b.config.Prices[id]; ok {
			model.Input.CostPer1MTokens = price.InputCostPer1M
			model.Output.CostPer1MTokens = price.OutputCostPer1M
		}
		models = append(models, model)
	}
	return models, nil
}

func (b *Backend) generateConfig(in *llm.GenerateInput) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		StopSequences: in.StopSequences,
	}
	if in.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(in.SystemPrompt, genai.RoleUser)
	}
	switch {
	case in.MaxTokens > 0:
		cfg.MaxOutputTokens = int32(in.MaxTokens)
	case b.config.MaxTokens > 0:
		cfg.MaxOutputTokens = int32(b.config.MaxTokens)
	}
	if in.Temperature != nil {
		cfg.Temperature = in.Temperature
	} else if b.config.Temperature != 0 {
		temp := b.config.Temperature
		cfg.Temperature = &temp
	}
	if in.ResponseFormat == "json_object" {
		cfg.ResponseMIMEType = "application/json"
	}
	return cfg
}

func roleFor(role string) genai.Role {
	if role == "assistant" || role == "model" {
		return genai.RoleModel
	}
	return genai.RoleUser
}

func candidateText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// translateError turns SDK status errors into *llm.APIError so callers can
// classify them without importing genai.
func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}
