// internal/action/registry.go
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/user/cognitive/pkg/llm"
)

// ErrUnknownAction is returned when no handler is registered for a call type.
var ErrUnknownAction = errors.New("unknown action")

// Call is a request to run "<integration>:<action>" with an input payload.
type Call struct {
	Type  string `json:"type"`
	Input any    `json:"input"`
}

// Meta carries information about how a result was produced.
type Meta struct {
	Cached bool `json:"cached"`
}

// Result is the output of an action call.
type Result struct {
	Output json.RawMessage `json:"output"`
	Meta   Meta            `json:"meta"`
}

// Invoker runs action calls.
type Invoker interface {
	CallAction(ctx context.Context, call Call) (*Result, error)
}

// Handler executes a single action type. The input is the JSON encoding of
// Call.Input.
type Handler func(ctx context.Context, input json.RawMessage) (*Result, error)

// Registry routes action calls to the handler registered for their type.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for the given action type, replacing any
// previous one.
func (r *Registry) Register(actionType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = handler
}

// Types returns the registered action types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CallAction finds the handler for call.Type and runs it.
// Returns an error wrapping ErrUnknownAction if none is registered.
func (r *Registry) CallAction(ctx context.Context, call Call) (*Result, error) {
	r.mu.RLock()
	handler, ok := r.handlers[call.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, call.Type)
	}

	input, err := encodeInput(call.Input)
	if err != nil {
		return nil, fmt.Errorf("encoding input for %s: %w", call.Type, err)
	}
	return handler(ctx, input)
}

func encodeInput(v any) (json.RawMessage, error) {
	switch in := v.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		return in, nil
	case []byte:
		return json.RawMessage(in), nil
	default:
		return json.Marshal(v)
	}
}

// Typed adapts a function over concrete input and output types into a Handler.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (*Result, error) {
		var in In
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("decoding input: %w", err)
			}
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("encoding output: %w", err)
		}
		return &Result{Output: data}, nil
	}
}

// GenerateContentType returns the action type of an integration's
// generateContent action.
func GenerateContentType(integration string) string {
	return integration + ":generateContent"
}

// RegisterBackend exposes an LLM backend as "<integration>:generateContent".
func RegisterBackend(reg *Registry, integration string, backend llm.Backend) {
	reg.Register(GenerateContentType(integration), Typed(func(ctx context.Context, in llm.GenerateInput) (*llm.GenerateOutput, error) {
		return backend.GenerateContent(ctx, &in)
	}))
}

// Decode unmarshals a result's output into T.
func Decode[T any](res *Result) (T, error) {
	var out T
	if res == nil || len(res.Output) == 0 {
		return out, fmt.Errorf("empty action output")
	}
	if err := json.Unmarshal(res.Output, &out); err != nil {
		return out, fmt.Errorf("decoding output: %w", err)
	}
	return out, nil
}
