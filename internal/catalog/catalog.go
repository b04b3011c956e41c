// Package catalog implements cognitive.ModelProvider over configured
// backends and a preference store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/pkg/llm"
)

// PreferenceStore persists model preferences. Load returns nil, nil when
// nothing has been saved.
type PreferenceStore interface {
	Load(ctx context.Context) (*cognitive.Preferences, error)
	Save(ctx context.Context, prefs *cognitive.Preferences) error
}

// Provider combines statically configured models with models listed by
// backends at runtime.
type Provider struct {
	store   PreferenceStore
	static  []llm.Model
	listers map[string]llm.ModelLister
}

// NewProvider creates a Provider. listers is keyed by integration name.
func NewProvider(store PreferenceStore, static []llm.Model, listers map[string]llm.ModelLister) *Provider {
	return &Provider{store: store, static: static, listers: listers}
}

// FetchInstalledModels returns the static models followed by the listed
// ones. A static entry wins over a listed model with the same ref, since
// only configuration carries tags and pricing. Failing listers are logged
// and skipped unless nothing at all is available.
func (p *Provider) FetchInstalledModels(ctx context.Context) ([]llm.Model, error) {
	names := make([]string, 0, len(p.listers))
	for name := range p.listers {
		names = append(names, name)
	}
	sort.Strings(names)

	listed := make([][]llm.Model, len(names))
	var (
		mu   sync.Mutex
		errs []error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i, name := range names {
		eg.Go(func() error {
			models, err := p.listers[name].ListModels(egCtx)
			if err != nil {
				slog.Warn("listing models failed", "integration", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				return nil
			}
			listed[i] = models
			return nil
		})
	}
	eg.Wait()

	seen := make(map[llm.Ref]bool)
	var models []llm.Model
	add := func(m llm.Model) {
		if seen[m.Ref()] {
			return
		}
		seen[m.Ref()] = true
		models = append(models, m)
	}
	for _, m := range p.static {
		add(m)
	}
	for _, group := range listed {
		for _, m := range group {
			add(m)
		}
	}

	if len(models) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("no models available: %w", errors.Join(errs...))
	}
	return models, nil
}

// FetchModelPreferences loads the stored preferences.
func (p *Provider) FetchModelPreferences(ctx context.Context) (*cognitive.Preferences, error) {
	return p.store.Load(ctx)
}

// SaveModelPreferences stores prefs.
func (p *Provider) SaveModelPreferences(ctx context.Context, prefs *cognitive.Preferences) error {
	return p.store.Save(ctx, prefs)
}
