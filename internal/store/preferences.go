// internal/store/preferences.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/cognitive/internal/cognitive"
)

// FilePreferences is a JSON-file-backed preference store.
type FilePreferences struct {
	path string
	mu   sync.RWMutex
}

// NewFilePreferences creates a store that reads and writes the given file.
func NewFilePreferences(path string) *FilePreferences {
	return &FilePreferences{path: path}
}

// Load returns the stored preferences, or nil when none have been saved.
func (s *FilePreferences) Load(_ context.Context) (*cognitive.Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	var prefs cognitive.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return &prefs, nil
}

// Save writes the preferences atomically.
func (s *FilePreferences) Save(_ context.Context, prefs *cognitive.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	// Atomic write: write to temp file then rename
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp preferences: %w", err)
	}
	return nil
}
