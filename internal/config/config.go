package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/user/cognitive/pkg/llm"
)

// Duration is a time.Duration written as a string ("5m", "100ms") in the
// config file and in environment variables.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("duration must be a string or number: %s", data)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	return d.UnmarshalText([]byte(s))
}

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type BackoffConfig struct {
	Initial    Duration `json:"initial" env:"COGNITIVE_BACKOFF_INITIAL"`
	Multiplier float64  `json:"multiplier" env:"COGNITIVE_BACKOFF_MULTIPLIER"`
	Max        Duration `json:"max" env:"COGNITIVE_BACKOFF_MAX"`
}

type CognitiveConfig struct {
	Timeout           Duration      `json:"timeout" env:"COGNITIVE_TIMEOUT"`
	MaxRetries        int           `json:"max_retries" env:"COGNITIVE_MAX_RETRIES"`
	Backoff           BackoffConfig `json:"backoff"`
	DowntimeThreshold Duration      `json:"downtime_threshold" env:"COGNITIVE_DOWNTIME_THRESHOLD"`
}

// PreferencesConfig selects where model preferences are persisted.
// Backend is one of "file", "sqlite" or "platform".
type PreferencesConfig struct {
	Backend string `json:"backend" env:"COGNITIVE_PREFERENCES_BACKEND"`
	Path    string `json:"path" env:"COGNITIVE_PREFERENCES_PATH"`
}

// BackendConfig configures one generation backend. The map key in
// Config.Backends is the integration name models are referenced by.
type BackendConfig struct {
	Kind        string      `json:"kind"`
	BaseURL     string      `json:"base_url,omitempty"`
	APIKey      string      `json:"api_key,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float32     `json:"temperature,omitempty"`
	Models      []llm.Model `json:"models,omitempty"`
}

type PlatformConfig struct {
	URL   string `json:"url" env:"COGNITIVE_PLATFORM_URL"`
	Token string `json:"token" env:"COGNITIVE_PLATFORM_TOKEN"`
	BotID string `json:"bot_id" env:"COGNITIVE_PLATFORM_BOT_ID"`
}

type GSheetsConfig struct {
	BaseURL       string `json:"base_url" env:"GSHEETS_BASE_URL"`
	AccessToken   string `json:"access_token" env:"GSHEETS_ACCESS_TOKEN"`
	SpreadsheetID string `json:"spreadsheet_id" env:"GSHEETS_SPREADSHEET_ID"`
}

type ServerConfig struct {
	Addr          string `json:"addr" env:"COGNITIVE_SERVER_ADDR"`
	MaxConcurrent int64  `json:"max_concurrent" env:"COGNITIVE_SERVER_MAX_CONCURRENT"`
}

type MaintenanceConfig struct {
	Schedule string `json:"schedule" env:"COGNITIVE_MAINTENANCE_SCHEDULE"`
}

type Config struct {
	DataDir     string                   `json:"data_dir" env:"COGNITIVE_DATA_DIR"`
	LogLevel    string                   `json:"log_level" env:"COGNITIVE_LOG_LEVEL"`
	Cognitive   CognitiveConfig          `json:"cognitive"`
	Preferences PreferencesConfig        `json:"preferences"`
	Backends    map[string]BackendConfig `json:"backends"`
	Platform    PlatformConfig           `json:"platform"`
	GSheets     GSheetsConfig            `json:"gsheets"`
	Server      ServerConfig             `json:"server"`
	Maintenance MaintenanceConfig        `json:"maintenance"`
}

// Default returns the configuration written on first load.
func Default() *Config {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".cognitive"),
		LogLevel: "info",
	}
	cfg.Cognitive.Timeout = Duration(5 * time.Minute)
	cfg.Cognitive.MaxRetries = 5
	cfg.Cognitive.Backoff = BackoffConfig{
		Initial:    Duration(100 * time.Millisecond),
		Multiplier: 2,
		Max:        Duration(10 * time.Second),
	}
	cfg.Cognitive.DowntimeThreshold = Duration(5 * time.Minute)
	cfg.Preferences.Backend = "file"
	cfg.Backends = map[string]BackendConfig{
		"openai": {
			Kind:    "openai",
			BaseURL: "https://api.openai.com/v1",
			Models: []llm.Model{
				{
					ID:     "gpt-4o",
					Name:   "GPT-4o",
					Tags:   []string{"recommended", "general-purpose", "vision"},
					Input:  llm.TokenLimits{MaxTokens: 128000, CostPer1MTokens: 2.5},
					Output: llm.TokenLimits{MaxTokens: 16384, CostPer1MTokens: 10},
				},
				{
					ID:     "gpt-4o-mini",
					Name:   "GPT-4o mini",
					Tags:   []string{"low-cost", "general-purpose"},
					Input:  llm.TokenLimits{MaxTokens: 128000, CostPer1MTokens: 0.15},
					Output: llm.TokenLimits{MaxTokens: 16384, CostPer1MTokens: 0.6},
				},
			},
		},
	}
	cfg.Server.Addr = "127.0.0.1:8480"
	cfg.Server.MaxConcurrent = 8
	cfg.Maintenance.Schedule = "0 */5 * * * *"
	return cfg
}

// Load reads the config file at path, writing the defaults there first when
// it does not exist, and applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		// the file's backends replace the defaults rather than merging
		cfg.Backends = nil
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from the environment (highest precedence).
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.setBackend("openai", func(b *BackendConfig) { b.APIKey = apiKey })
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.setBackend("openai", func(b *BackendConfig) { b.BaseURL = baseURL })
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.setBackend("gemini", func(b *BackendConfig) { b.APIKey = apiKey })
	}
	return nil
}

// setBackend edits the backend named after kind, creating it when absent.
func (c *Config) setBackend(kind string, edit func(*BackendConfig)) {
	if c.Backends == nil {
		c.Backends = make(map[string]BackendConfig)
	}
	b, ok := c.Backends[kind]
	if !ok {
		b = BackendConfig{Kind: kind}
	}
	edit(&b)
	c.Backends[kind] = b
}

// PreferencesPath returns the configured preference store path, defaulting
// to a file in the data directory that matches the backend.
func (c *Config) PreferencesPath() string {
	if c.Preferences.Path != "" {
		return c.Preferences.Path
	}
	if c.Preferences.Backend == "sqlite" {
		return filepath.Join(c.DataDir, "preferences.db")
	}
	return filepath.Join(c.DataDir, "preferences.json")
}

// JournalPath is where generation events are appended.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.jsonl")
}

// StaticModels returns every configured model with its integration set.
func (c *Config) StaticModels() []llm.Model {
	var models []llm.Model
	for _, name := range c.BackendNames() {
		for _, m := range c.Backends[name].Models {
			m.Integration = name
			models = append(models, m)
		}
	}
	return models
}

// BackendNames returns the configured integration names in sorted order.
func (c *Config) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for name := range c.Backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LLMConfig converts a backend entry into the config its client takes.
func (b BackendConfig) LLMConfig(integration string) *llm.Config {
	prices := make(map[string]llm.Pricing, len(b.Models))
	for _, m := range b.Models {
		prices[m.ID] = m.Pricing()
	}
	return &llm.Config{
		Integration: integration,
		BaseURL:     b.BaseURL,
		APIKey:      b.APIKey,
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
		Prices:      prices,
	}
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its nested JSON map form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every setting of cfg under its dot-separated key.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// readRaw loads the file at path as a flat map, keeping keys that Config
// does not know about.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Flatten(m), nil
}

// GetValue returns the value stored under a dot-separated key. The file is
// created with defaults when missing.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue stores value under a dot-separated key. Values that parse as JSON
// (numbers, booleans, arrays) are stored typed; anything else as a string.
func SetValue(path, key, value string) error {
	flat, err := readRaw(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	if _, isMap := parsed.(map[string]any); isMap {
		return fmt.Errorf("config key %s: objects must be set key by key", key)
	}
	for existing := range flat {
		if strings.HasPrefix(existing, key+".") {
			return fmt.Errorf("config key %s is a section", key)
		}
	}
	flat[key] = parsed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFile(path, data)
}
