package cognitive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/pkg/llm"
)

var (
	// ErrNotFound is returned when a model ref resolves to no installed model.
	ErrNotFound = errors.New("model not found")
	// ErrAborted is returned when the caller's context ends a generation.
	ErrAborted = errors.New("generation aborted")
	// ErrNoModelAvailable is returned when every candidate is in downtime.
	ErrNoModelAvailable = errors.New("no model available")
)

// Action is what the retry loop does with a failed attempt.
type Action int

const (
	ActionRetry Action = iota
	ActionFallback
	ActionAbort
)

func (a Action) String() string {
	switch a {
	case ActionFallback:
		return "fallback"
	case ActionAbort:
		return "abort"
	default:
		return "retry"
	}
}

// ClassifiedError tags an upstream error with an explicit Action. Invokers
// and interceptors return it to override Classify.
type ClassifiedError struct {
	Action Action
	Err    error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classify maps an attempt error to the action the retry loop takes.
//
// Explicit *ClassifiedError tags win. Context errors abort. Unknown actions
// and 5xx responses fall back to another model, since the model itself is
// unusable. Rate limits and request timeouts are retried, other 4xx abort.
// Anything unrecognized is retried.
func Classify(err error) Action {
	if err == nil {
		return ActionRetry
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Action
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ActionAbort
	}

	if errors.Is(err, action.ErrUnknownAction) {
		return ActionFallback
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 429 || apiErr.StatusCode == 408:
			return ActionRetry
		case apiErr.StatusCode >= 500:
			return ActionFallback
		case apiErr.StatusCode >= 400:
			return ActionAbort
		}
	}

	msg := strings.ToLower(err.Error())

	// Transient errors
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") {
		return ActionRetry
	}

	// Permanent errors
	if strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") {
		return ActionAbort
	}

	return ActionRetry
}
