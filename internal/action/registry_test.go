// internal/action/registry_test.go
package action

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/cognitive/pkg/llm"
)

type stubBackend struct {
	got *llm.GenerateInput
	err error
}

func (s *stubBackend) GenerateContent(ctx context.Context, in *llm.GenerateInput) (*llm.GenerateOutput, error) {
	s.got = in
	if s.err != nil {
		return nil, s.err
	}
	return &llm.GenerateOutput{
		Model:   in.Model,
		Choices: []llm.Choice{{Role: "assistant", Content: "ok"}},
		Usage:   llm.Usage{InputTokens: 1, OutputTokens: 2},
	}, nil
}

func TestRegistryCallAction(t *testing.T) {
	reg := NewRegistry()

	var gotInput json.RawMessage
	reg.Register("test:echo", func(ctx context.Context, input json.RawMessage) (*Result, error) {
		gotInput = input
		return &Result{Output: input}, nil
	})

	res, err := reg.CallAction(context.Background(), Call{Type: "test:echo", Input: map[string]string{"a": "b"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(gotInput))
	assert.JSONEq(t, `{"a":"b"}`, string(res.Output))
}

func TestRegistryUnknownAction(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.CallAction(context.Background(), Call{Type: "unknown:action"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestRegistryTypesSorted(t *testing.T) {
	reg := NewRegistry()
	noop := func(ctx context.Context, input json.RawMessage) (*Result, error) { return &Result{}, nil }
	reg.Register("openai:generateContent", noop)
	reg.Register("gsheets:getValues", noop)

	assert.Equal(t, []string{"gsheets:getValues", "openai:generateContent"}, reg.Types())
}

func TestTypedHandler(t *testing.T) {
	type in struct{ N int }
	type out struct{ Double int }

	h := Typed(func(ctx context.Context, v in) (out, error) {
		return out{Double: v.N * 2}, nil
	})

	res, err := h(context.Background(), json.RawMessage(`{"N":21}`))
	require.NoError(t, err)

	got, err := Decode[out](res)
	require.NoError(t, err)
	assert.Equal(t, 42, got.Double)

	_, err = h(context.Background(), json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestRegisterBackend(t *testing.T) {
	reg := NewRegistry()
	backend := &stubBackend{}
	RegisterBackend(reg, "openai", backend)

	res, err := reg.CallAction(context.Background(), Call{
		Type:  GenerateContentType("openai"),
		Input: llm.GenerateInput{Model: "gpt-4o", Messages: []llm.Message{{Role: "user", Content: "hi"}}},
	})
	require.NoError(t, err)
	require.NotNil(t, backend.got)
	assert.Equal(t, "gpt-4o", backend.got.Model)

	out, err := Decode[llm.GenerateOutput](res)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text())
	assert.Equal(t, 2, out.Usage.OutputTokens)
}

func TestRegisterBackendPropagatesErrors(t *testing.T) {
	reg := NewRegistry()
	apiErr := &llm.APIError{StatusCode: 503, Body: "down"}
	RegisterBackend(reg, "openai", &stubBackend{err: apiErr})

	_, err := reg.CallAction(context.Background(), Call{Type: "openai:generateContent", Input: llm.GenerateInput{Model: "x"}})
	var got *llm.APIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 503, got.StatusCode)
}
