// Package tokens estimates token counts for backends that do not report usage.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/cognitive/pkg/llm"
)

// Counter counts tokens with a tiktoken encoding chosen per model.
type Counter struct {
	mu   sync.Mutex
	encs map[string]*tiktoken.Tiktoken
}

// NewCounter returns an empty Counter. Encodings are loaded on first use.
func NewCounter() *Counter {
	return &Counter{encs: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encoding(model string) (*tiktoken.Tiktoken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encs[model]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	c.encs[model] = enc
	return enc, nil
}

// Count returns the token count of text for model. When no encoding can be
// loaded it falls back to Approx.
func (c *Counter) Count(model, text string) int {
	enc, err := c.encoding(model)
	if err != nil {
		return Approx(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages returns the prompt token count of a generate input.
func (c *Counter) CountMessages(model string, in *llm.GenerateInput) int {
	total := 0
	if in.SystemPrompt != "" {
		total += c.Count(model, in.SystemPrompt)
	}
	for _, m := range in.Messages {
		// role and separators
		total += 4
		total += c.Count(model, m.Content)
	}
	return total
}

// Approx is a rough four-characters-per-token estimate.
func Approx(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
