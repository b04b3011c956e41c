package cognitive

import (
	"context"

	"github.com/user/cognitive/pkg/llm"
)

// ModelProvider supplies installed models and persists preferences.
type ModelProvider interface {
	FetchInstalledModels(ctx context.Context) ([]llm.Model, error)
	// FetchModelPreferences returns nil, nil when nothing is persisted.
	FetchModelPreferences(ctx context.Context) (*Preferences, error)
	SaveModelPreferences(ctx context.Context, prefs *Preferences) error
}
