package cognitive

import (
	"time"

	"github.com/user/cognitive/pkg/llm"
)

// Request is the envelope threaded through request interceptors and events.
type Request struct {
	ID    string            `json:"id"`
	Input llm.GenerateInput `json:"input"`
}

// Selection is the concrete model an attempt ran against.
type Selection struct {
	Integration string `json:"integration"`
	Model       string `json:"model"`
}

// Ref returns the selection as "<integration>:<model>".
func (s Selection) Ref() llm.Ref {
	return llm.NewRef(s.Integration, s.Model)
}

// Cost is the USD cost of a generation.
type Cost struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// Tokens is the token usage of a generation.
type Tokens struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Meta describes how a response was produced.
type Meta struct {
	Cached  bool          `json:"cached"`
	Model   Selection     `json:"model"`
	Latency time.Duration `json:"latency"`
	Cost    Cost          `json:"cost"`
	Tokens  Tokens        `json:"tokens"`
}

// Response is the envelope returned by GenerateContent.
type Response struct {
	Output *llm.GenerateOutput `json:"output"`
	Meta   Meta                `json:"meta"`
}
