package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/user/cognitive/internal/cognitive"
	"github.com/user/cognitive/internal/platform"
	"github.com/user/cognitive/pkg/llm"
)

// PreferencesFile is the bot file holding model preferences on the platform.
const PreferencesFile = "models.config.json"

// PlatformClient is the part of platform.Client the provider needs.
type PlatformClient interface {
	ListModels(ctx context.Context) ([]llm.Model, error)
	GetFile(ctx context.Context, key string) ([]byte, error)
	PutFile(ctx context.Context, key string, content []byte) error
}

// PlatformProvider reads models and preferences from the platform.
type PlatformProvider struct {
	client PlatformClient
}

// NewPlatformProvider creates a provider backed by the platform API.
func NewPlatformProvider(client PlatformClient) *PlatformProvider {
	return &PlatformProvider{client: client}
}

func (p *PlatformProvider) FetchInstalledModels(ctx context.Context) ([]llm.Model, error) {
	return p.client.ListModels(ctx)
}

func (p *PlatformProvider) FetchModelPreferences(ctx context.Context) (*cognitive.Preferences, error) {
	data, err := p.client.GetFile(ctx, PreferencesFile)
	if errors.Is(err, platform.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var prefs cognitive.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", PreferencesFile, err)
	}
	return &prefs, nil
}

func (p *PlatformProvider) SaveModelPreferences(ctx context.Context, prefs *cognitive.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	return p.client.PutFile(ctx, PreferencesFile, data)
}

// Compile-time interface compliance checks.
var _ cognitive.ModelProvider = (*Provider)(nil)
var _ cognitive.ModelProvider = (*PlatformProvider)(nil)
var _ PlatformClient = (*platform.Client)(nil)
