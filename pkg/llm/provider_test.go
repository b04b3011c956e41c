package llm

import (
	"context"
	"testing"
)

// MockBackend is a test double that satisfies the Backend interface.
type MockBackend struct {
	GenerateFunc func(ctx context.Context, in *GenerateInput) (*GenerateOutput, error)
}

func (m *MockBackend) GenerateContent(ctx context.Context, in *GenerateInput) (*GenerateOutput, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, in)
	}
	return &GenerateOutput{Model: in.Model, Choices: []Choice{{Role: "assistant", Content: "mock response"}}}, nil
}

func TestBackendInterface(t *testing.T) {
	var backend Backend = &MockBackend{}
	out, err := backend.GenerateContent(context.Background(), &GenerateInput{
		Model:    "gpt-4o",
		Messages: []Message{{Role: "user", Content: "test"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Text() != "mock response" {
		t.Errorf("expected mock response, got %q", out.Text())
	}
	if out.Model != "gpt-4o" {
		t.Errorf("expected model to be echoed, got %q", out.Model)
	}
}

func TestRefParse(t *testing.T) {
	tests := []struct {
		ref         Ref
		integration string
		model       string
	}{
		{"openai:gpt-4o", "openai", "gpt-4o"},
		{"ollama:llama3:8b", "ollama", "llama3:8b"},
		{"bedrock:a:b:c", "bedrock", "a:b:c"},
		{"noseparator", "noseparator", ""},
	}
	for _, tt := range tests {
		integration, model := tt.ref.Parse()
		if integration != tt.integration || model != tt.model {
			t.Errorf("Parse(%q) = (%q, %q), want (%q, %q)", tt.ref, integration, model, tt.integration, tt.model)
		}
	}
}

func TestRefSentinels(t *testing.T) {
	if !RefBest.IsSentinel() || !RefFast.IsSentinel() {
		t.Error("best and fast must be sentinels")
	}
	if Ref("openai:best").IsSentinel() {
		t.Error("concrete ref must not be a sentinel")
	}
}

func TestModelRef(t *testing.T) {
	m := Model{ID: "gpt-4o", Name: "GPT-4o", Integration: "openai"}
	if m.Ref() != "openai:gpt-4o" {
		t.Errorf("unexpected ref %q", m.Ref())
	}
}

func TestPricingApply(t *testing.T) {
	usage := Usage{InputTokens: 2_000_000, OutputTokens: 500_000}
	Pricing{InputCostPer1M: 2.5, OutputCostPer1M: 10}.Apply(&usage)
	if usage.InputCost != 5 {
		t.Errorf("expected input cost 5, got %v", usage.InputCost)
	}
	if usage.OutputCost != 5 {
		t.Errorf("expected output cost 5, got %v", usage.OutputCost)
	}
}
