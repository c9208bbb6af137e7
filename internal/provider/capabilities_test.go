package provider

import "testing"

func TestDetectImageSupport(t *testing.T) {
	tests := []struct {
		provider  string
		model     string
		supported bool
		confident bool
	}{
		{"openai", "gpt-4o", true, true},
		{"anthropic", "claude-sonnet-4-20250514", true, true},
		{"gemini", "gemini-2.5-flash", true, true},
		{"qwen", "qwen-vl-max", true, true},
		{"deepseek", "deepseek-chat", false, true},
		{"deepseek", "deepseek-reasoner", false, true},
		{"groq", "llama-3.3-70b-versatile", false, true},
		{"gemini", "learnlm-experimental", true, true},
		{"openai", "my-custom-model", true, false},
	}
	for _, tt := range tests {
		got := DetectImageSupport(tt.provider, tt.model)
		if got.Supported != tt.supported || got.Confident != tt.confident {
			t.Errorf("DetectImageSupport(%q, %q) = %+v, want supported=%v confident=%v",
				tt.provider, tt.model, got, tt.supported, tt.confident)
		}
		if got.Reason == "" {
			t.Errorf("DetectImageSupport(%q, %q) has empty reason", tt.provider, tt.model)
		}
	}
}
