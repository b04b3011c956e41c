package cognitive

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/pkg/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu              sync.Mutex
	models          []llm.Model
	prefs           *Preferences
	saveErr         error
	modelFetches    int
	prefFetches     int
	saved           []*Preferences
	fetchModelsHook func()
	// blockPrefs makes FetchModelPreferences wait for ctx to end.
	blockPrefs bool
}

func (p *fakeProvider) FetchInstalledModels(ctx context.Context) ([]llm.Model, error) {
	if p.fetchModelsHook != nil {
		p.fetchModelsHook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modelFetches++
	return p.models, nil
}

func (p *fakeProvider) FetchModelPreferences(ctx context.Context) (*Preferences, error) {
	if p.blockPrefs {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefFetches++
	return p.prefs.Clone(), nil
}

func (p *fakeProvider) SaveModelPreferences(ctx context.Context, prefs *Preferences) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, prefs.Clone())
	return p.saveErr
}

type fakeInvoker struct {
	mu    sync.Mutex
	calls []action.Call
	fn    func(n int, call action.Call) (*action.Result, error)
}

func (f *fakeInvoker) CallAction(ctx context.Context, call action.Call) (*action.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	n := len(f.calls)
	f.mu.Unlock()
	if f.fn == nil {
		return okResult(call), nil
	}
	return f.fn(n, call)
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func okResult(call action.Call) *action.Result {
	in := call.Input.(llm.GenerateInput)
	out := llm.GenerateOutput{
		Model:   in.Model,
		Choices: []llm.Choice{{Role: "assistant", Content: "hello"}},
		Usage:   llm.Usage{InputTokens: 12, InputCost: 0.01, OutputTokens: 3, OutputCost: 0.02},
	}
	data, _ := json.Marshal(out)
	return &action.Result{Output: data}
}

func testRetry(maxRetries int) *RetryPolicy {
	return &RetryPolicy{MaxRetries: maxRetries, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}
}

func newTestClient(t *testing.T, provider *fakeProvider, invoker *fakeInvoker, maxRetries int) *Client {
	t.Helper()
	c, err := New(Options{
		Invoker:  invoker,
		Provider: provider,
		Retry:    testRetry(maxRetries),
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return c
}

type recorder struct {
	mu     sync.Mutex
	counts map[EventKind]int
	order  []EventKind
}

func record(c *Client) *recorder {
	r := &recorder{counts: make(map[EventKind]int)}
	for _, kind := range []EventKind{EventRequest, EventResponse, EventRetry, EventFallback, EventError, EventAborted} {
		c.Subscribe(kind, func(ev Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.counts[ev.Kind]++
			r.order = append(r.order, ev.Kind)
		})
	}
	return r
}

func (r *recorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}

func twoModelPrefs() *Preferences {
	return &Preferences{
		Best: []llm.Ref{"openai:gpt-4o", "anthropic:claude"},
		Fast: []llm.Ref{"openai:gpt-4o-mini"},
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Provider: &fakeProvider{}})
	assert.Error(t, err)
	_, err = New(Options{Invoker: &fakeInvoker{}})
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Options{Invoker: &fakeInvoker{}, Provider: &fakeProvider{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, 5, c.retry.MaxRetries)
	assert.Equal(t, DefaultDowntimeThreshold, c.threshold)

	c, err = New(Options{Invoker: &fakeInvoker{}, Provider: &fakeProvider{}, MaxRetries: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.retry.MaxRetries)
}

func TestFetchPreferencesDefaultsSavedOnce(t *testing.T) {
	provider := &fakeProvider{models: []llm.Model{{Integration: "openai", Name: "gpt", ID: "gpt-1"}}}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	prefs, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []llm.Ref{"openai:gpt-1"}, prefs.Best)
	assert.Equal(t, []llm.Ref{"openai:gpt-1"}, prefs.Fast)
	assert.Empty(t, prefs.Downtimes)

	_, err = c.FetchPreferences(context.Background())
	require.NoError(t, err)

	assert.Len(t, provider.saved, 1)
	assert.Equal(t, 1, provider.prefFetches)
}

func TestFetchPreferencesUsesPersisted(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs()}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	prefs, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, twoModelPrefs().Best, prefs.Best)
	assert.Empty(t, provider.saved)
	assert.Equal(t, 0, provider.modelFetches)
}

func TestFetchPreferencesReturnsCopy(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs()}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	prefs, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	prefs.Best[0] = "mutated:model"

	again, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), again.Best[0])
}

func TestFetchInstalledModelsFetchedOnce(t *testing.T) {
	provider := &fakeProvider{
		models:          []llm.Model{{Integration: "openai", ID: "gpt-4o"}},
		fetchModelsHook: func() { time.Sleep(5 * time.Millisecond) },
	}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			models, err := c.FetchInstalledModels(context.Background())
			assert.NoError(t, err)
			assert.Len(t, models, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, provider.modelFetches)
}

func TestSetPreferences(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs()}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	next := &Preferences{Best: []llm.Ref{"x:y"}, Fast: []llm.Ref{"x:z"}}
	require.NoError(t, c.SetPreferences(context.Background(), next, false))
	assert.Empty(t, provider.saved)

	prefs, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []llm.Ref{"x:y"}, prefs.Best)
	assert.Equal(t, 0, provider.prefFetches)

	require.NoError(t, c.SetPreferences(context.Background(), next, true))
	require.Len(t, provider.saved, 1)
	assert.Equal(t, []llm.Ref{"x:z"}, provider.saved[0].Fast)
}

func TestSelectBestAndFast(t *testing.T) {
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, &fakeInvoker{}, 1)

	sel, err := c.selectModel(context.Background(), llm.RefBest)
	require.NoError(t, err)
	assert.Equal(t, Selection{Integration: "openai", Model: "gpt-4o"}, sel)

	sel, err = c.selectModel(context.Background(), llm.RefFast)
	require.NoError(t, err)
	assert.Equal(t, Selection{Integration: "openai", Model: "gpt-4o-mini"}, sel)
}

func TestSelectConcreteRefWins(t *testing.T) {
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, &fakeInvoker{}, 1)

	sel, err := c.selectModel(context.Background(), "anthropic:claude")
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("anthropic:claude"), sel.Ref())

	// Model names keep everything after the first colon.
	sel, err = c.selectModel(context.Background(), "ollama:llama3:8b")
	require.NoError(t, err)
	assert.Equal(t, Selection{Integration: "ollama", Model: "llama3:8b"}, sel)
}

func TestSelectConcreteRefInDowntimeFallsBackToRanking(t *testing.T) {
	prefs := twoModelPrefs()
	prefs.Downtimes = []Downtime{{Ref: "anthropic:claude", StartedAt: testNow.Add(-time.Minute)}}
	c := newTestClient(t, &fakeProvider{prefs: prefs}, &fakeInvoker{}, 1)

	sel, err := c.selectModel(context.Background(), "anthropic:claude")
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), sel.Ref())
}

func TestSelectIgnoresExpiredDowntimes(t *testing.T) {
	prefs := twoModelPrefs()
	prefs.Downtimes = []Downtime{{Ref: "openai:gpt-4o", StartedAt: testNow.Add(-10 * time.Minute)}}
	c := newTestClient(t, &fakeProvider{prefs: prefs}, &fakeInvoker{}, 1)
	c.recordDowntime(Downtime{Ref: "openai:gpt-4o", StartedAt: testNow.Add(-6 * time.Minute)})

	sel, err := c.selectModel(context.Background(), llm.RefBest)
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), sel.Ref())

	// A fresh local downtime is authoritative even when persisted ones expired.
	c.recordDowntime(Downtime{Ref: "openai:gpt-4o", StartedAt: testNow.Add(-time.Minute)})
	sel, err = c.selectModel(context.Background(), llm.RefBest)
	require.NoError(t, err)
	assert.Equal(t, llm.Ref("anthropic:claude"), sel.Ref())
}

func TestGetModelDetails(t *testing.T) {
	provider := &fakeProvider{
		models: []llm.Model{
			{Integration: "openai", ID: "gpt-4o", Name: "GPT-4o"},
			{Integration: "openai", ID: "gpt-4o-mini", Name: "GPT-4o mini"},
		},
		prefs: twoModelPrefs(),
	}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)

	m, err := c.GetModelDetails(context.Background(), llm.RefFast)
	require.NoError(t, err)
	assert.Equal(t, "GPT-4o mini", m.Name)

	_, err = c.GetModelDetails(context.Background(), "anthropic:claude")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGenerateContentRetryThenSuccess(t *testing.T) {
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		if n == 1 {
			return nil, errors.New("something odd happened")
		}
		return okResult(call), nil
	}}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 1)
	events := record(c)

	resp, err := c.GenerateContent(context.Background(), llm.GenerateInput{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Output.Text())

	assert.Equal(t, 2, invoker.callCount())
	assert.Equal(t, 1, events.count(EventRetry))
	assert.Equal(t, 1, events.count(EventResponse))
	assert.Equal(t, 0, events.count(EventError))
	assert.Equal(t, []EventKind{EventRequest, EventRetry, EventResponse}, events.order)
}

func TestGenerateContentAbortedBeforeAttempt(t *testing.T) {
	invoker := &fakeInvoker{}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 3)
	events := record(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GenerateContent(ctx, llm.GenerateInput{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsAborted(err))

	assert.Equal(t, 0, invoker.callCount())
	assert.Equal(t, 1, events.count(EventAborted))
	assert.Equal(t, 0, events.count(EventError))
}

func TestGenerateContentAbortedDuringSelection(t *testing.T) {
	invoker := &fakeInvoker{}
	c := newTestClient(t, &fakeProvider{blockPrefs: true}, invoker, 3)
	events := record(c)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.GenerateContent(ctx, llm.GenerateInput{})
	require.Error(t, err)
	assert.True(t, IsAborted(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 0, invoker.callCount())
	assert.Equal(t, 1, events.count(EventAborted))
	assert.Equal(t, 0, events.count(EventError))
}

func TestGenerateContentAbortedDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		cancel()
		return nil, errors.New("connection reset by peer")
	}}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 3)
	events := record(c)

	_, err := c.GenerateContent(ctx, llm.GenerateInput{})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 1, invoker.callCount())
	assert.Equal(t, 1, events.count(EventAborted))
	assert.Equal(t, 0, events.count(EventRetry))
}

func TestGenerateContentFallback(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs()}
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		if call.Type == "openai:generateContent" {
			return nil, &llm.APIError{StatusCode: 503, Body: "overloaded"}
		}
		return okResult(call), nil
	}}
	c := newTestClient(t, provider, invoker, 3)
	events := record(c)

	resp, err := c.GenerateContent(context.Background(), llm.GenerateInput{Model: "openai:gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, Selection{Integration: "anthropic", Model: "claude"}, resp.Meta.Model)

	assert.Equal(t, 1, events.count(EventFallback))
	assert.Equal(t, 0, events.count(EventRetry))

	require.Len(t, c.Downtimes(), 1)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), c.Downtimes()[0].Ref)

	require.Len(t, provider.saved, 1)
	require.Len(t, provider.saved[0].Downtimes, 1)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), provider.saved[0].Downtimes[0].Ref)
	assert.Equal(t, testNow, provider.saved[0].Downtimes[0].StartedAt)
	assert.Equal(t, twoModelPrefs().Best, provider.saved[0].Best)
}

func TestGenerateContentFallbackPrunesExpired(t *testing.T) {
	prefs := twoModelPrefs()
	prefs.Downtimes = []Downtime{{Ref: "old:model", StartedAt: testNow.Add(-time.Hour)}}
	provider := &fakeProvider{prefs: prefs}
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		if n == 1 {
			return nil, &ClassifiedError{Action: ActionFallback, Err: errors.New("down")}
		}
		return okResult(call), nil
	}}
	c := newTestClient(t, provider, invoker, 3)

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	require.NoError(t, err)

	require.Len(t, provider.saved, 1)
	require.Len(t, provider.saved[0].Downtimes, 1)
	assert.Equal(t, llm.Ref("openai:gpt-4o"), provider.saved[0].Downtimes[0].Ref)
}

func TestGenerateContentFallbackSaveFailureContinues(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs(), saveErr: errors.New("disk full")}
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		if n == 1 {
			return nil, &llm.APIError{StatusCode: 500}
		}
		return okResult(call), nil
	}}
	c := newTestClient(t, provider, invoker, 3)

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, invoker.callCount())
}

func TestGenerateContentClassifiedAbort(t *testing.T) {
	apiErr := &llm.APIError{StatusCode: 401, Body: "bad key"}
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		return nil, apiErr
	}}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 5)
	events := record(c)

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	assert.ErrorIs(t, err, apiErr)
	assert.Equal(t, 1, invoker.callCount())
	assert.Equal(t, 1, events.count(EventError))
	assert.Equal(t, 0, events.count(EventRetry))
}

func TestGenerateContentBudgetExhausted(t *testing.T) {
	boom := errors.New("connection refused")
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		return nil, boom
	}}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 2)
	events := record(c)

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, invoker.callCount())
	assert.Equal(t, 2, events.count(EventRetry))
	assert.Equal(t, 1, events.count(EventError))
}

func TestGenerateContentSelectionFailureNotRetried(t *testing.T) {
	prefs := twoModelPrefs()
	prefs.Best = []llm.Ref{"openai:gpt-4o"}
	prefs.Downtimes = []Downtime{{Ref: "openai:gpt-4o", StartedAt: testNow}}
	invoker := &fakeInvoker{}
	c := newTestClient(t, &fakeProvider{prefs: prefs}, invoker, 3)
	events := record(c)

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	assert.ErrorIs(t, err, ErrNoModelAvailable)
	assert.Equal(t, 0, invoker.callCount())
	assert.Equal(t, 1, events.count(EventError))
}

func TestGenerateContentResponseMeta(t *testing.T) {
	clock := testNow
	var mu sync.Mutex
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		res := okResult(call)
		res.Meta.Cached = true
		return res, nil
	}}
	c, err := New(Options{
		Invoker:  invoker,
		Provider: &fakeProvider{prefs: twoModelPrefs()},
		Retry:    testRetry(1),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(250 * time.Millisecond)
			return clock
		},
	})
	require.NoError(t, err)

	resp, err := c.GenerateContent(context.Background(), llm.GenerateInput{Model: "fast"})
	require.NoError(t, err)

	assert.True(t, resp.Meta.Cached)
	assert.Equal(t, Selection{Integration: "openai", Model: "gpt-4o-mini"}, resp.Meta.Model)
	assert.Greater(t, resp.Meta.Latency, time.Duration(0))
	assert.Equal(t, Cost{Input: 0.01, Output: 0.02}, resp.Meta.Cost)
	assert.Equal(t, Tokens{Input: 12, Output: 3}, resp.Meta.Tokens)

	// The backend receives the concrete model id, not the ref.
	in := invoker.calls[0].Input.(llm.GenerateInput)
	assert.Equal(t, "gpt-4o-mini", in.Model)
	assert.Equal(t, "openai:generateContent", invoker.calls[0].Type)
}

func TestGenerateContentInterceptors(t *testing.T) {
	invoker := &fakeInvoker{}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 1)

	var order []string
	c.Interceptors.Request.Use(func(ctx context.Context, r *Request) (*Request, error) {
		order = append(order, "first")
		r.Input.SystemPrompt = "be nice"
		return r, nil
	})
	ejected := c.Interceptors.Request.Use(func(ctx context.Context, r *Request) (*Request, error) {
		order = append(order, "ejected")
		return r, nil
	})
	c.Interceptors.Request.Use(func(ctx context.Context, r *Request) (*Request, error) {
		order = append(order, "second")
		return r, nil
	})
	c.Interceptors.Request.Eject(ejected)

	c.Interceptors.Response.Use(func(ctx context.Context, r *Response) (*Response, error) {
		r.Output.Choices[0].Content = "intercepted"
		return r, nil
	})

	var seen *Request
	c.Subscribe(EventResponse, func(ev Event) { seen = ev.Request })

	resp, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, "intercepted", resp.Output.Text())
	assert.Equal(t, "be nice", invoker.calls[0].Input.(llm.GenerateInput).SystemPrompt)
	require.NotNil(t, seen)
	assert.Equal(t, "be nice", seen.Input.SystemPrompt)
}

func TestGenerateContentInterceptorsRestartEachAttempt(t *testing.T) {
	invoker := &fakeInvoker{fn: func(n int, call action.Call) (*action.Result, error) {
		if n == 1 {
			return nil, errors.New("temporary failure")
		}
		return okResult(call), nil
	}}
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, invoker, 2)

	c.Interceptors.Request.Use(func(ctx context.Context, r *Request) (*Request, error) {
		r.Input.Messages = append(r.Input.Messages, llm.Message{Role: "user", Content: "extra"})
		return r, nil
	})

	input := llm.GenerateInput{Messages: []llm.Message{{Role: "user", Content: "hi"}}}
	_, err := c.GenerateContent(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, 2, invoker.callCount())
	assert.Len(t, invoker.calls[1].Input.(llm.GenerateInput).Messages, 2)
	assert.Len(t, input.Messages, 1)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	c := newTestClient(t, &fakeProvider{prefs: twoModelPrefs()}, &fakeInvoker{}, 1)

	var calls []string
	unsubA := c.Subscribe(EventRequest, func(Event) { calls = append(calls, "a") })
	c.Subscribe(EventRequest, func(Event) { calls = append(calls, "b") })

	_, err := c.GenerateContent(context.Background(), llm.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, calls)

	unsubA()
	unsubA()
	calls = nil
	_, err = c.GenerateContent(context.Background(), llm.GenerateInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, calls)
}

func TestClone(t *testing.T) {
	provider := &fakeProvider{prefs: twoModelPrefs()}
	c := newTestClient(t, provider, &fakeInvoker{}, 1)
	_, err := c.FetchPreferences(context.Background())
	require.NoError(t, err)
	c.recordDowntime(Downtime{Ref: "openai:gpt-4o", StartedAt: testNow})

	var originalEvents int
	c.Subscribe(EventRequest, func(Event) { originalEvents++ })
	c.Interceptors.Request.Use(func(ctx context.Context, r *Request) (*Request, error) { return r, nil })

	cp := c.Clone()

	assert.Equal(t, 1, cp.Interceptors.Request.Len())
	assert.Same(t, c.Interceptors.Request, cp.Interceptors.Request)
	assert.Len(t, cp.Downtimes(), 1)

	cp.recordDowntime(Downtime{Ref: "anthropic:claude", StartedAt: testNow})
	assert.Len(t, c.Downtimes(), 1)

	_, err = cp.GenerateContent(context.Background(), llm.GenerateInput{Model: "openai:gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, 0, originalEvents)
	assert.Equal(t, 1, provider.prefFetches)
}
