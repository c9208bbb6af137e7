package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv unsets every variable applyEnvOverrides reads so the host
// environment cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"MIXLAB_PROVIDER", "MIXLAB_MODEL", "GOOGLE_API_KEY", "GEMINI_API_KEY",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "LLM_API_KEY", "LLM_BASE_URL",
		"LLM_MODEL", "MIXLAB_LOG_BACKEND", "MIXLAB_SHEET_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "gemini" {
		t.Errorf("expected default provider 'gemini', got %q", cfg.Provider)
	}
	if cfg.Sessions.MaxResident != 10 {
		t.Errorf("expected default max_resident 10, got %d", cfg.Sessions.MaxResident)
	}
	if cfg.Sessions.Label != "Session" {
		t.Errorf("expected default label 'Session', got %q", cfg.Sessions.Label)
	}
	if cfg.Title.Mode != TitleModeLLM || cfg.Title.MaxChars != 25 {
		t.Errorf("unexpected title defaults: %+v", cfg.Title)
	}
	if cfg.LogStore.Backend != BackendSQLite {
		t.Errorf("expected default backend sqlite, got %q", cfg.LogStore.Backend)
	}
	if cfg.Timeouts.Completion != 120*time.Second {
		t.Errorf("expected completion timeout 120s, got %v", cfg.Timeouts.Completion)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "gemini" {
		t.Errorf("Provider = %q, want gemini", cfg.Provider)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `provider: openai
model: gpt-4o
brand: Acme Syrups
reference_docs:
  - docs/flavors.pdf
sessions:
  max_resident: 4
title:
  mode: truncate
log_store:
  backend: none
timeouts:
  completion: 30s
providers:
  openai:
    api_key: sk-test
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.Sessions.MaxResident != 4 {
		t.Errorf("MaxResident = %d, want 4", cfg.Sessions.MaxResident)
	}
	// Partial sections keep the defaults for fields they omit.
	if cfg.Sessions.Label != "Session" {
		t.Errorf("Label = %q, want default", cfg.Sessions.Label)
	}
	if cfg.Title.Mode != TitleModeTruncate || cfg.Title.MaxChars != 25 {
		t.Errorf("Title = %+v", cfg.Title)
	}
	if cfg.LogStore.Backend != BackendNone {
		t.Errorf("Backend = %q", cfg.LogStore.Backend)
	}
	if cfg.Timeouts.Completion != 30*time.Second {
		t.Errorf("Completion timeout = %v", cfg.Timeouts.Completion)
	}
	if cfg.Timeouts.LogStore != 15*time.Second {
		t.Errorf("LogStore timeout = %v, want default", cfg.Timeouts.LogStore)
	}
	if got := cfg.GetProviderConfig("openai").APIKey; got != "sk-test" {
		t.Errorf("api key = %q", got)
	}
	if len(cfg.ReferenceDocs) != 1 {
		t.Errorf("ReferenceDocs = %v", cfg.ReferenceDocs)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MIXLAB_PROVIDER", "anthropic")
	t.Setenv("LLM_API_KEY", "generic-key")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("MIXLAB_LOG_BACKEND", "sheets")
	t.Setenv("MIXLAB_SHEET_ID", "sheet-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if got := cfg.GetProviderConfig("anthropic").APIKey; got != "generic-key" {
		t.Errorf("anthropic key = %q, want generic-key", got)
	}
	if got := cfg.GetProviderConfig("gemini").APIKey; got != "gem-key" {
		t.Errorf("gemini key = %q, want gem-key", got)
	}
	if cfg.LogStore.Backend != BackendSheets || cfg.LogStore.Sheets.SpreadsheetID != "sheet-123" {
		t.Errorf("LogStore = %+v", cfg.LogStore)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero cap", func(c *Config) { c.Sessions.MaxResident = 0 }, "max_resident"},
		{"blank label", func(c *Config) { c.Sessions.Label = "  " }, "label"},
		{"bad title mode", func(c *Config) { c.Title.Mode = "magic" }, "title.mode"},
		{"bad backend", func(c *Config) { c.LogStore.Backend = "postgres" }, "backend"},
		{"sheets without id", func(c *Config) { c.LogStore.Backend = BackendSheets }, "spreadsheet_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Brand = "Acme"
	if got := cfg.RenderSystemPrompt(); !strings.Contains(got, "assistant for Acme.") {
		t.Errorf("default prompt not branded: %q", got)
	}
	cfg.SystemPrompt = "Hello from {{brand}}"
	if got := cfg.RenderSystemPrompt(); got != "Hello from Acme" {
		t.Errorf("RenderSystemPrompt = %q", got)
	}
}

func TestKnownProviderDefaults(t *testing.T) {
	if KnownProviderModels["gemini"] == "" {
		t.Error("expected embedded default model for gemini")
	}
	if KnownProviderBaseURLs["openai"] == "" {
		t.Error("expected embedded base URL for openai")
	}
}
