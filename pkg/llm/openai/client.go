package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/cognitive/pkg/llm"
	"github.com/user/cognitive/pkg/llm/tokens"
)

// Client implements llm.Backend and llm.ModelLister for OpenAI-compatible APIs.
type Client struct {
	config     *llm.Config
	httpClient *http.Client
	counter    *tokens.Counter
}

// New creates a new OpenAI-compatible client with the given configuration.
func New(config *llm.Config) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		counter: tokens.NewCounter(),
	}
}

// chatRequest is the OpenAI chat completions request body.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []llm.Message   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    *float32        `json:"temperature,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the OpenAI chat completions response body.
type chatResponse struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []choice      `json:"choices"`
	Usage   responseUsage `json:"usage"`
}

// choice represents a single completion choice.
type choice struct {
	Index        int         `json:"index"`
	Message      llm.Message `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// responseUsage is the OpenAI token usage format.
type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// modelsResponse is the body of GET /models.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// GenerateContent sends a chat completion request and returns the full output.
func (c *Client) GenerateContent(ctx context.Context, in *llm.GenerateInput) (*llm.GenerateOutput, error) {
	messages := make([]llm.Message, 0, len(in.Messages)+1)
	if in.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: in.SystemPrompt})
	}
	messages = append(messages, in.Messages...)

	reqBody := chatRequest{
		Model:    in.Model,
		Messages: messages,
		Stop:     in.StopSequences,
	}

	switch {
	case in.MaxTokens > 0:
		reqBody.MaxTokens = in.MaxTokens
	case c.config.MaxTokens > 0:
		reqBody.MaxTokens = c.config.MaxTokens
	}

	if in.Temperature != nil {
		reqBody.Temperature = in.Temperature
	} else if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	if in.ResponseFormat == "json_object" {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	out := &llm.GenerateOutput{
		ID:       chatResp.ID,
		Provider: c.config.Integration,
		Model:    in.Model,
		Choices:  make([]llm.Choice, len(chatResp.Choices)),
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
		},
	}
	for i, ch := range chatResp.Choices {
		out.Choices[i] = llm.Choice{
			Index:      ch.Index,
			Role:       ch.Message.Role,
			Content:    ch.Message.Content,
			StopReason: ch.FinishReason,
		}
	}

	// Some OpenAI-compatible servers omit usage entirely.
	if out.Usage.InputTokens == 0 && out.Usage.OutputTokens == 0 {
		out.Usage.InputTokens = c.counter.CountMessages(in.Model, in)
		out.Usage.OutputTokens = c.counter.Count(in.Model, out.Text())
	}

	if price, ok := c.config.Prices[in.Model]; ok {
		price.Apply(&out.Usage)
	}

	return out, nil
}

// ListModels returns the models served by the endpoint. The API does not
// report pricing, so costs come from the configured price table.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(respBody, &modelsResp); err != nil {
		return nil, fmt.Errorf("parsing models: %w", err)
	}

	models := make([]llm.Model, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		model := llm.Model{ID: m.ID, Name: m.ID, Integration: c.config.Integration}
		if price, ok := c.config.Prices[m.ID]; ok {
			model.Input.CostPer1MTokens = price.InputCostPer1M
			model.Output.CostPer1MTokens = price.OutputCostPer1M
		}
		models = append(models, model)
	}
	return models, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	url := c.config.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
