package llm

import (
	"context"
	"fmt"
)

// Backend defines the interface for LLM backends that can serve a
// generateContent action. Implementations handle protocol-specific details
// such as request formatting, authentication, and response parsing.
type Backend interface {
	// GenerateContent sends a completion request for in.Model and returns the full output.
	GenerateContent(ctx context.Context, in *GenerateInput) (*GenerateOutput, error)
}

// ModelLister is implemented by backends that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]Model, error)
}

// Config holds common configuration for LLM backends.
type Config struct {
	Integration string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float32
	// Prices maps a model id to its cost table, used to fill Usage costs.
	Prices map[string]Pricing
}

// APIError is returned by backends when the upstream API answers with a
// non-success status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}
