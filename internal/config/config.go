// Package config loads and manages mixlab configuration.
// Configuration source priority (highest to lowest):
// 1. Environment variables (LLM_API_KEY, GEMINI_API_KEY, MIXLAB_PROVIDER, etc.)
// 2. Config file path specified via --config flag
// 3. ~/.config/mixlab/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds the default base URL and model for a provider.
type ProviderDefaults struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// LoadProviderDefaults parses the embedded defaults and merges any user
// overrides from ~/.config/mixlab/providers.yaml.
func LoadProviderDefaults() map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	dir, err := Dir()
	if err != nil {
		return defs
	}
	data, err := os.ReadFile(filepath.Join(dir, "providers.yaml"))
	if err != nil {
		return defs
	}
	userDefs := make(map[string]ProviderDefaults)
	if yaml.Unmarshal(data, &userDefs) != nil {
		return defs
	}
	for name, ud := range userDefs {
		d := defs[name]
		if ud.BaseURL != "" {
			d.BaseURL = ud.BaseURL
		}
		if ud.DefaultModel != "" {
			d.DefaultModel = ud.DefaultModel
		}
		defs[name] = d
	}
	return defs
}

// ProviderConfig holds configuration for a single completion provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	// MaxResident is the number of sessions kept in memory before the
	// oldest-created one is evicted. Default 10.
	MaxResident int `yaml:"max_resident"`

	// Label prefixes minted session ids ("Session 1", "Session 2", ...).
	Label string `yaml:"label"`
}

// TitleConfig controls how session titles are derived.
type TitleConfig struct {
	// Mode: "llm" (default) asks the completion backend for a short label,
	// "truncate" only cuts the first user message.
	Mode string `yaml:"mode"`

	// MaxChars is the truncation budget of the heuristic. Default 25.
	MaxChars int `yaml:"max_chars"`
}

// SheetsConfig points the chat log at a Google Sheets worksheet.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Sheet           string `yaml:"sheet"`
	CredentialsFile string `yaml:"credentials_file"`
}

// LogStoreConfig selects the durable chat log backend.
type LogStoreConfig struct {
	// Backend: "sqlite" (default) | "sheets" | "none"
	Backend string `yaml:"backend"`

	// SQLitePath defaults to ~/.local/share/mixlab/chatlog.db.
	SQLitePath string `yaml:"sqlite_path"`

	Sheets SheetsConfig `yaml:"sheets"`

	// QueueSize bounds the background write queue. Default 256.
	QueueSize int `yaml:"queue_size"`
}

// TimeoutConfig bounds remote calls so a stalled backend never freezes the UI.
type TimeoutConfig struct {
	Completion time.Duration `yaml:"completion"`
	LogStore   time.Duration `yaml:"log_store"`
}

// LogConfig controls the diagnostic (zap) log, not the chat log.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config is the complete configuration structure for mixlab.
type Config struct {
	// Provider is the active provider name (e.g. "gemini", "openai", "anthropic")
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	// Brand is substituted for {{brand}} in the system prompt and used as
	// the transcript file name prefix.
	Brand string `yaml:"brand"`

	// SystemPrompt is a custom persona prompt (empty uses default).
	SystemPrompt string `yaml:"system_prompt"`

	// ReferenceDocs are files handed to the backend with every request.
	ReferenceDocs []string `yaml:"reference_docs"`

	Sessions SessionConfig  `yaml:"sessions"`
	Title    TitleConfig    `yaml:"title"`
	LogStore LogStoreConfig `yaml:"log_store"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Log      LogConfig      `yaml:"log"`
}

const (
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
	BackendNone   = "none"

	TitleModeLLM      = "llm"
	TitleModeTruncate = "truncate"
)

// DefaultSystemPrompt is the beverage-innovation persona.
const DefaultSystemPrompt = `You are the beverage innovation assistant for {{brand}}.
You help business users brainstorm drink recipes: cocktails, mocktails, coffee and tea builds, seasonal menus.
Ground flavor pairings and product suggestions in the reference documents when they are provided.
For every recipe give a name, ingredient list with quantities, method, glassware and garnish.
Be concise and practical. If you are unsure whether a product exists, say so.`

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "gemini",
		Providers: make(map[string]*ProviderConfig),
		Brand:     "Mixlab",
		Sessions: SessionConfig{
			MaxResident: 10,
			Label:       "Session",
		},
		Title: TitleConfig{
			Mode:     TitleModeLLM,
			MaxChars: 25,
		},
		LogStore: LogStoreConfig{
			Backend:   BackendSQLite,
			QueueSize: 256,
			Sheets:    SheetsConfig{Sheet: "Sheet1"},
		},
		Timeouts: TimeoutConfig{
			Completion: 120 * time.Second,
			LogStore:   15 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Dir returns ~/.config/mixlab.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mixlab"), nil
}

// DataDir returns ~/.local/share/mixlab.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "mixlab"), nil
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		if dir, err := Dir(); err == nil {
			configPath = filepath.Join(dir, "config.yaml")
		}
	}

	// Read config file (use defaults if not found)
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills zero values a partial YAML file may have left behind.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Sessions.MaxResident == 0 {
		c.Sessions.MaxResident = def.Sessions.MaxResident
	}
	if c.Sessions.Label == "" {
		c.Sessions.Label = def.Sessions.Label
	}
	if c.Title.Mode == "" {
		c.Title.Mode = def.Title.Mode
	}
	if c.Title.MaxChars <= 0 {
		c.Title.MaxChars = def.Title.MaxChars
	}
	if c.LogStore.Backend == "" {
		c.LogStore.Backend = def.LogStore.Backend
	}
	if c.LogStore.QueueSize <= 0 {
		c.LogStore.QueueSize = def.LogStore.QueueSize
	}
	if c.LogStore.Sheets.Sheet == "" {
		c.LogStore.Sheets.Sheet = def.LogStore.Sheets.Sheet
	}
	if c.Timeouts.Completion <= 0 {
		c.Timeouts.Completion = def.Timeouts.Completion
	}
	if c.Timeouts.LogStore <= 0 {
		c.Timeouts.LogStore = def.Timeouts.LogStore
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Brand == "" {
		c.Brand = def.Brand
	}
}

// Validate rejects settings the rest of the program cannot honor.
func (c *Config) Validate() error {
	if c.Sessions.MaxResident < 1 {
		return fmt.Errorf("sessions.max_resident must be >= 1, got %d", c.Sessions.MaxResident)
	}
	if strings.TrimSpace(c.Sessions.Label) == "" {
		return fmt.Errorf("sessions.label must not be empty")
	}
	switch c.Title.Mode {
	case TitleModeLLM, TitleModeTruncate:
	default:
		return fmt.Errorf("unknown title.mode %q (want %q or %q)", c.Title.Mode, TitleModeLLM, TitleModeTruncate)
	}
	switch c.LogStore.Backend {
	case BackendSQLite, BackendNone:
	case BackendSheets:
		if c.LogStore.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("log_store.sheets.spreadsheet_id is required for the sheets backend")
		}
	default:
		return fmt.Errorf("unknown log_store.backend %q", c.LogStore.Backend)
	}
	return nil
}

// GetProviderConfig returns the config for the named provider, or an empty config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// RenderSystemPrompt returns the persona prompt with {{brand}} substituted.
func (c *Config) RenderSystemPrompt() string {
	prompt := c.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	return strings.ReplaceAll(prompt, "{{brand}}", c.Brand)
}

var (
	// KnownProviderBaseURLs maps well-known provider names to their base URLs.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderBaseURLs map[string]string

	// KnownProviderModels maps well-known provider names to their default models.
	KnownProviderModels map[string]string
)

func init() {
	defs := LoadProviderDefaults()
	KnownProviderBaseURLs = make(map[string]string, len(defs))
	KnownProviderModels = make(map[string]string, len(defs))
	for name, d := range defs {
		if d.BaseURL != "" {
			KnownProviderBaseURLs[name] = d.BaseURL
		}
		if d.DefaultModel != "" {
			KnownProviderModels[name] = d.DefaultModel
		}
	}
}

func ensureProvider(cfg *Config, name string) *ProviderConfig {
	if cfg.Providers[name] == nil {
		cfg.Providers[name] = &ProviderConfig{}
	}
	return cfg.Providers[name]
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Provider selection first so the generic overrides land on the right entry.
	if v := os.Getenv("MIXLAB_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("MIXLAB_MODEL"); v != "" {
		cfg.Model = v
	}

	// Vendor-specific keys
	for _, kv := range [][2]string{
		{"GOOGLE_API_KEY", "gemini"},
		{"GEMINI_API_KEY", "gemini"},
		{"OPENAI_API_KEY", "openai"},
		{"ANTHROPIC_API_KEY", "anthropic"},
	} {
		if v := os.Getenv(kv[0]); v != "" {
			ensureProvider(cfg, kv[1]).APIKey = v
		}
	}

	// Generic overrides
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		ensureProvider(cfg, cfg.Provider).APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		ensureProvider(cfg, cfg.Provider).BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}

	// Chat log
	if v := os.Getenv("MIXLAB_LOG_BACKEND"); v != "" {
		cfg.LogStore.Backend = v
	}
	if v := os.Getenv("MIXLAB_SHEET_ID"); v != "" {
		cfg.LogStore.Sheets.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" && cfg.LogStore.Sheets.CredentialsFile == "" {
		cfg.LogStore.Sheets.CredentialsFile = v
	}
}
