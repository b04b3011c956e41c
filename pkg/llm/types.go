package llm

import (
	"strings"
)

// Message represents a chat message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateInput is the input of a generateContent action.
// Model carries a Ref when given to the cognitive client and a concrete
// model id once the client has resolved it for a backend.
type GenerateInput struct {
	Model          string    `json:"model,omitempty"`
	SystemPrompt   string    `json:"systemPrompt,omitempty"`
	Messages       []Message `json:"messages"`
	MaxTokens      int       `json:"maxTokens,omitempty"`
	Temperature    *float32  `json:"temperature,omitempty"`
	StopSequences  []string  `json:"stopSequences,omitempty"`
	ResponseFormat string    `json:"responseFormat,omitempty"`
}

// GenerateOutput is the output of a generateContent action.
type GenerateOutput struct {
	ID       string   `json:"id,omitempty"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Choices  []Choice `json:"choices"`
	Usage    Usage    `json:"usage"`
}

// Text returns the content of the first choice, or "" when there is none.
func (o *GenerateOutput) Text() string {
	if o == nil || len(o.Choices) == 0 {
		return ""
	}
	return o.Choices[0].Content
}

// Choice is a single completion candidate.
type Choice struct {
	Index      int    `json:"index"`
	Role       string `json:"role"`
	Content    string `json:"content"`
	StopReason string `json:"stopReason,omitempty"`
}

// Usage tracks token consumption and cost (USD) for a request/response pair.
type Usage struct {
	InputTokens  int     `json:"inputTokens"`
	InputCost    float64 `json:"inputCost"`
	OutputTokens int     `json:"outputTokens"`
	OutputCost   float64 `json:"outputCost"`
}

// Pricing is the cost of a model in USD per million tokens.
type Pricing struct {
	InputCostPer1M  float64 `json:"input_cost_per_1m"`
	OutputCostPer1M float64 `json:"output_cost_per_1m"`
}

// Apply fills in the cost fields of u from the token counts.
func (p Pricing) Apply(u *Usage) {
	u.InputCost = float64(u.InputTokens) * p.InputCostPer1M / 1_000_000
	u.OutputCost = float64(u.OutputTokens) * p.OutputCostPer1M / 1_000_000
}

// TokenLimits describes one direction (input or output) of a model.
type TokenLimits struct {
	MaxTokens       int     `json:"maxTokens"`
	CostPer1MTokens float64 `json:"costPer1MTokens"`
}

// Model is a generation backend offered by an integration.
type Model struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Integration string      `json:"integration"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Input       TokenLimits `json:"input"`
	Output      TokenLimits `json:"output"`
}

// Ref returns the "<integration>:<id>" reference of the model.
func (m Model) Ref() Ref {
	return NewRef(m.Integration, m.ID)
}

// HasTag reports whether the model carries the given tag.
func (m Model) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Pricing returns the model's cost table.
func (m Model) Pricing() Pricing {
	return Pricing{InputCostPer1M: m.Input.CostPer1MTokens, OutputCostPer1M: m.Output.CostPer1MTokens}
}

// Ref identifies a model as "<integration>:<model>", or one of the
// ranked sentinels RefBest and RefFast.
type Ref string

const (
	RefBest Ref = "best"
	RefFast Ref = "fast"
)

// NewRef joins an integration and a model name into a Ref.
func NewRef(integration, model string) Ref {
	return Ref(integration + ":" + model)
}

// IsSentinel reports whether r defers to a ranked preference list.
func (r Ref) IsSentinel() bool {
	return r == RefBest || r == RefFast
}

// Parse splits r at its first colon. Model names may contain colons
// themselves, so everything after the first separator is the model.
func (r Ref) Parse() (integration, model string) {
	integration, model, _ = strings.Cut(string(r), ":")
	return integration, model
}

// ParseRef is a convenience wrapper around Ref.Parse.
func ParseRef(s string) (integration, model string) {
	return Ref(s).Parse()
}
