package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/user/cognitive/internal/action"
	"github.com/user/cognitive/internal/catalog"
	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/internal/config"
	"github.com/user/cognitive/internal/integrations/gsheets"
	"github.com/user/cognitive/internal/platform"
	"github.com/user/cognitive/internal/store"
	"github.com/user/cognitive/pkg/llm"
	"github.com/user/cognitive/pkg/llm/gemini"
	"github.com/user/cognitive/pkg/llm/openai"
)

// app holds everything built from the config for one command run.
type app struct {
	cfg      *config.Config
	registry *action.Registry
	provider cognitive.ModelProvider
	client   *cognitive.Client
	journal  *store.Journal
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	a := &app{cfg: cfg, registry: action.NewRegistry()}

	listers, err := a.registerBackends(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.GSheets.AccessToken != "" {
		sheets := gsheets.NewClient(gsheets.Config{
			BaseURL:       cfg.GSheets.BaseURL,
			AccessToken:   cfg.GSheets.AccessToken,
			SpreadsheetID: cfg.GSheets.SpreadsheetID,
		})
		a.closers = append(a.closers, sheets.Close)
		gsheets.Register(a.registry, sheets)
	}

	a.provider, err = a.modelProvider(listers)
	if err != nil {
		a.close()
		return nil, err
	}

	a.client, err = cognitive.New(cognitive.Options{
		Invoker:    a.registry,
		Provider:   a.provider,
		Timeout:    time.Duration(cfg.Cognitive.Timeout),
		MaxRetries: cfg.Cognitive.MaxRetries,
		Retry: &cognitive.RetryPolicy{
			MaxRetries:   cfg.Cognitive.MaxRetries,
			InitialDelay: time.Duration(cfg.Cognitive.Backoff.Initial),
			Multiplier:   cfg.Cognitive.Backoff.Multiplier,
			MaxDelay:     time.Duration(cfg.Cognitive.Backoff.Max),
		},
		DowntimeThreshold: time.Duration(cfg.Cognitive.DowntimeThreshold),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.journal = store.NewJournal(cfg.JournalPath())
	a.journal.Attach(a.client)
	return a, nil
}

// registerBackends exposes every configured backend as a generateContent
// action and returns the ones that can list their models.
func (a *app) registerBackends(ctx context.Context) (map[string]llm.ModelLister, error) {
	listers := make(map[string]llm.ModelLister)
	for _, name := range a.cfg.BackendNames() {
		b := a.cfg.Backends[name]
		var backend interface {
			llm.Backend
			llm.ModelLister
		}
		switch b.Kind {
		case "openai":
			backend = openai.New(b.LLMConfig(name))
		case "gemini":
			if b.APIKey == "" {
				slog.Warn("gemini backend disabled (no api key)", "integration", name)
				continue
			}
			g, err := gemini.New(ctx, b.LLMConfig(name))
			if err != nil {
				return nil, fmt.Errorf("backend %s: %w", name, err)
			}
			backend = g
		default:
			return nil, fmt.Errorf("backend %s: unknown kind %q", name, b.Kind)
		}
		action.RegisterBackend(a.registry, name, backend)
		if b.APIKey != "" {
			listers[name] = backend
		}
		slog.Debug("backend registered", "integration", name, "kind", b.Kind, "models", len(b.Models))
	}
	return listers, nil
}

func (a *app) modelProvider(listers map[string]llm.ModelLister) (cognitive.ModelProvider, error) {
	switch a.cfg.Preferences.Backend {
	case "", "file":
		prefs := store.NewFilePreferences(a.cfg.PreferencesPath())
		return catalog.NewProvider(prefs, a.cfg.StaticModels(), listers), nil
	case "sqlite":
		prefs, err := store.OpenSQLitePreferences(a.cfg.PreferencesPath())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, prefs.Close)
		return catalog.NewProvider(prefs, a.cfg.StaticModels(), listers), nil
	case "platform":
		pc := a.platformClient()
		a.closers = append(a.closers, pc.Close)
		return catalog.NewPlatformProvider(pc), nil
	default:
		return nil, fmt.Errorf("unknown preferences backend %q", a.cfg.Preferences.Backend)
	}
}

func (a *app) platformClient() *platform.Client {
	return platform.New(platform.Config{
		URL:   a.cfg.Platform.URL,
		Token: a.cfg.Platform.Token,
		BotID: a.cfg.Platform.BotID,
	})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
}

// withApp loads the config, builds the app and runs fn with it.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg := loadConfig()
	setupLogging(cfg)
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}
