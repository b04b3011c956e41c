// Package cognitive implements a resilient LLM completion client: model
// selection over ranked preferences, downtime bookkeeping, retries with
// fallback, and request/response interception.
package cognitive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/pkg/llm"
)

// DefaultTimeout bounds a generation when the caller's context has no deadline.
const DefaultTimeout = 5 * time.Minute

// Options configures a Client.
type Options struct {
	Invoker  action.Invoker
	Provider ModelProvider
	// Timeout applies when the caller's context has no deadline. Default 5m.
	Timeout time.Duration
	// MaxRetries overrides Retry.MaxRetries when positive.
	MaxRetries        int
	Retry             *RetryPolicy
	DowntimeThreshold time.Duration
	Logger            *slog.Logger
	Now               func() time.Time
}

// Client generates content through the action invoker, choosing models
// from the provider's preferences.
type Client struct {
	invoker   action.Invoker
	provider  ModelProvider
	timeout   time.Duration
	retry     *RetryPolicy
	threshold time.Duration
	logger    *slog.Logger
	now       func() time.Time

	// Interceptors are shared with clones.
	Interceptors Interceptors

	events *events
	group  singleflight.Group

	mu        sync.Mutex
	models    []llm.Model
	prefs     *Preferences
	downtimes []Downtime
}

// New creates a Client. Invoker and Provider are required.
func New(opts Options) (*Client, error) {
	if opts.Invoker == nil {
		return nil, fmt.Errorf("cognitive: invoker is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("cognitive: model provider is required")
	}

	retry := DefaultRetryPolicy()
	if opts.Retry != nil {
		p := *opts.Retry
		retry = &p
	}
	if opts.MaxRetries > 0 {
		retry.MaxRetries = opts.MaxRetries
	}

	c := &Client{
		invoker:      opts.Invoker,
		provider:     opts.Provider,
		timeout:      opts.Timeout,
		retry:        retry,
		threshold:    opts.DowntimeThreshold,
		logger:       opts.Logger,
		now:          opts.Now,
		Interceptors: newInterceptors(),
		events:       newEvents(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.threshold <= 0 {
		c.threshold = DefaultDowntimeThreshold
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Clone returns a client with the same collaborators and settings, a copy
// of the caches and downtimes, the same interceptors, and no subscribers.
func (c *Client) Clone() *Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &Client{
		invoker:      c.invoker,
		provider:     c.provider,
		timeout:      c.timeout,
		retry:        c.retry,
		threshold:    c.threshold,
		logger:       c.logger,
		now:          c.now,
		Interceptors: c.Interceptors,
		events:       newEvents(),
		models:       slices.Clone(c.models),
		prefs:        c.prefs.Clone(),
		downtimes:    slices.Clone(c.downtimes),
	}
}

// Subscribe registers h for events of the given kind and returns a function
// that removes it. Handlers run synchronously in registration order.
func (c *Client) Subscribe(kind EventKind, h Handler) func() {
	return c.events.subscribe(kind, h)
}

// FetchInstalledModels returns the provider's models, fetched once and cached.
func (c *Client) FetchInstalledModels(ctx context.Context) ([]llm.Model, error) {
	c.mu.Lock()
	if len(c.models) > 0 {
		models := slices.Clone(c.models)
		c.mu.Unlock()
		return models, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do("models", func() (any, error) {
		c.mu.Lock()
		cached := slices.Clone(c.models)
		c.mu.Unlock()
		if len(cached) > 0 {
			return cached, nil
		}

		models, err := c.provider.FetchInstalledModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching installed models: %w", err)
		}
		c.mu.Lock()
		c.models = slices.Clone(models)
		c.mu.Unlock()
		return models, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]llm.Model)), nil
}

// FetchPreferences returns the cached preferences. On first use it loads
// the persisted ones, or ranks the installed models and saves the result.
func (c *Client) FetchPreferences(ctx context.Context) (*Preferences, error) {
	if p := c.cachedPreferences(); p != nil {
		return p, nil
	}

	v, err, _ := c.group.Do("preferences", func() (any, error) {
		if p := c.cachedPreferences(); p != nil {
			return p, nil
		}

		prefs, err := c.provider.FetchModelPreferences(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetching model preferences: %w", err)
		}

		if prefs == nil {
			models, err := c.FetchInstalledModels(ctx)
			if err != nil {
				return nil, err
			}
			prefs = DefaultPreferences(models)
			if err := c.provider.SaveModelPreferences(ctx, prefs); err != nil {
				return nil, fmt.Errorf("saving default preferences: %w", err)
			}
			c.logger.Info("initialized model preferences", "best", len(prefs.Best), "fast", len(prefs.Fast))
		}

		c.replacePreferences(prefs)
		return c.cachedPreferences(), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Preferences).Clone(), nil
}

// SetPreferences replaces the cached preferences, persisting them when save is set.
func (c *Client) SetPreferences(ctx context.Context, prefs *Preferences, save bool) error {
	if prefs == nil {
		return fmt.Errorf("preferences are required")
	}
	c.replacePreferences(prefs)
	if !save {
		return nil
	}
	if err := c.provider.SaveModelPreferences(ctx, prefs.Clone()); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}

// GetModelDetails resolves ref (which may be "best" or "fast") to an
// installed model.
func (c *Client) GetModelDetails(ctx context.Context, ref llm.Ref) (llm.Model, error) {
	models, err := c.FetchInstalledModels(ctx)
	if err != nil {
		return llm.Model{}, err
	}
	sel, err := c.selectModel(ctx, ref)
	if err != nil {
		return llm.Model{}, err
	}
	for _, m := range models {
		if m.Integration == sel.Integration && (m.Name == sel.Model || m.ID == sel.Model) {
			return m, nil
		}
	}
	return llm.Model{}, fmt.Errorf("%w: %s", ErrNotFound, sel.Ref())
}

// selectModel picks the first candidate for ref that is not in downtime.
// A concrete ref is tried before the best and fast lists.
func (c *Client) selectModel(ctx context.Context, ref llm.Ref) (Selection, error) {
	prefs, err := c.FetchPreferences(ctx)
	if err != nil {
		return Selection{}, err
	}

	downtimes := append(prefs.Downtimes, c.Downtimes()...)

	var candidates []llm.Ref
	switch ref {
	case llm.RefBest:
		candidates = prefs.Best
	case llm.RefFast:
		candidates = prefs.Fast
	default:
		candidates = make([]llm.Ref, 0, 1+len(prefs.Best)+len(prefs.Fast))
		candidates = append(candidates, ref)
		candidates = append(candidates, prefs.Best...)
		candidates = append(candidates, prefs.Fast...)
	}

	picked, err := PickModel(candidates, downtimes, c.now(), c.threshold)
	if err != nil {
		return Selection{}, fmt.Errorf("selecting model for %q: %w", ref, err)
	}
	integration, model := picked.Parse()
	return Selection{Integration: integration, Model: model}, nil
}

// GenerateContent runs a generation with retries. input.Model is a ref,
// "best" when empty.
func (c *Client) GenerateContent(ctx context.Context, input llm.GenerateInput) (*Response, error) {
	start := c.now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &Request{ID: uuid.NewString(), Input: cloneInput(input)}
	c.events.emit(Event{Kind: EventRequest, Request: req})

	ref := llm.Ref(input.Model)
	if ref == "" {
		ref = llm.RefBest
	}

	bo := c.retry.NewBackOff()
	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return nil, c.abort(req, context.Cause(ctx))
		}

		sel, err := c.selectModel(ctx, ref)
		if err != nil {
			if ctx.Err() != nil {
				return nil, c.abort(req, err)
			}
			c.events.emit(Event{Kind: EventError, Request: req, Err: err})
			return nil, err
		}

		var out *llm.GenerateOutput
		var meta action.Meta
		req, out, meta, err = c.attempt(ctx, req.ID, input, sel)
		if err == nil {
			return c.respond(ctx, req, sel, out, meta, start)
		}

		if ctx.Err() != nil {
			return nil, c.abort(req, err)
		}

		if c.retry.Exhausted(attempt) {
			c.logger.Error("generation failed, retries exhausted", "attempts", attempt, "model", sel.Ref(), "error", err)
			c.events.emit(Event{Kind: EventError, Request: req, Err: err})
			return nil, err
		}

		switch act := Classify(err); act {
		case ActionAbort:
			c.logger.Error("generation aborted by classifier", "model", sel.Ref(), "error", err)
			c.events.emit(Event{Kind: EventError, Request: req, Err: err})
			return nil, err
		case ActionFallback:
			c.logger.Warn("model down, falling back", "attempt", attempt, "model", sel.Ref(), "error", err)
			c.markDown(ctx, sel)
			c.events.emit(Event{Kind: EventFallback, Request: req, Err: err})
		default:
			c.logger.Warn("generation attempt failed, retrying", "attempt", attempt, "model", sel.Ref(), "error", err)
			c.events.emit(Event{Kind: EventRetry, Request: req, Err: err})
		}

		// An interrupted wait is reported by the check at the top of the loop.
		_ = sleep(ctx, bo.NextBackOff())
	}
}

// attempt runs the request interceptors on a fresh envelope and calls the
// selected integration's generateContent action.
func (c *Client) attempt(ctx context.Context, id string, input llm.GenerateInput, sel Selection) (*Request, *llm.GenerateOutput, action.Meta, error) {
	req, err := c.Interceptors.Request.Run(ctx, &Request{ID: id, Input: cloneInput(input)})
	if err != nil {
		return req, nil, action.Meta{}, fmt.Errorf("request interceptor: %w", err)
	}
	if req == nil {
		return &Request{ID: id, Input: input}, nil, action.Meta{}, &ClassifiedError{Action: ActionAbort, Err: errors.New("request interceptor returned nil request")}
	}

	callInput := req.Input
	callInput.Model = sel.Model

	res, err := c.invoker.CallAction(ctx, action.Call{
		Type:  action.GenerateContentType(sel.Integration),
		Input: callInput,
	})
	if err != nil {
		return req, nil, action.Meta{}, err
	}

	out, err := action.Decode[llm.GenerateOutput](res)
	if err != nil {
		return req, nil, action.Meta{}, err
	}
	return req, &out, res.Meta, nil
}

func (c *Client) respond(ctx context.Context, req *Request, sel Selection, out *llm.GenerateOutput, meta action.Meta, start time.Time) (*Response, error) {
	resp := &Response{
		Output: out,
		Meta: Meta{
			Cached:  meta.Cached,
			Model:   sel,
			Latency: c.now().Sub(start),
			Cost:    Cost{Input: out.Usage.InputCost, Output: out.Usage.OutputCost},
			Tokens:  Tokens{Input: out.Usage.InputTokens, Output: out.Usage.OutputTokens},
		},
	}
	c.events.emit(Event{Kind: EventResponse, Request: req, Response: resp})

	final, err := c.Interceptors.Response.Run(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("response interceptor: %w", err)
	}
	return final, nil
}

// markDown records a downtime for sel and persists the merged list. A failed
// save is logged; the fallback proceeds with the local record.
func (c *Client) markDown(ctx context.Context, sel Selection) {
	now := c.now()
	c.recordDowntime(Downtime{Ref: sel.Ref(), StartedAt: now, Reason: "model is down"})
	c.pruneDowntimes(now)

	if err := c.provider.SaveModelPreferences(ctx, c.persistable()); err != nil {
		c.logger.Warn("saving downtimes failed", "model", sel.Ref(), "error", err)
	}
}

func (c *Client) abort(req *Request, cause error) error {
	c.logger.Info("generation aborted", "request", req.ID, "cause", cause)
	err := fmt.Errorf("%w: %w", ErrAborted, cause)
	c.events.emit(Event{Kind: EventAborted, Request: req, Err: err})
	return err
}

func cloneInput(in llm.GenerateInput) llm.GenerateInput {
	in.Messages = slices.Clone(in.Messages)
	in.StopSequences = slices.Clone(in.StopSequences)
	return in
}

// IsAborted reports whether err ended a generation because of cancellation.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
