package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// scriptedProvider replays a fixed event sequence.
type scriptedProvider struct {
	events  []Event
	chatErr error
	last    *ChatRequest
}

func (s *scriptedProvider) Name() string         { return "scripted" }
func (s *scriptedProvider) DefaultModel() string { return "scripted-1" }

func (s *scriptedProvider) Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error) {
	s.last = req
	if s.chatErr != nil {
		return nil, s.chatErr
	}
	ch := make(chan Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func TestComplete(t *testing.T) {
	boom := errors.New("quota")
	tests := []struct {
		name    string
		p       *scriptedProvider
		want    string
		wantErr error
	}{
		{
			name: "joins deltas",
			p: &scriptedProvider{events: []Event{
				{Type: EventTextDelta, TextDelta: "Hello, "},
				{Type: EventTextDelta, TextDelta: "world"},
				{Type: EventDone, Usage: &Usage{InputTokens: 3, OutputTokens: 2}},
			}},
			want: "Hello, world",
		},
		{
			name: "stream error",
			p: &scriptedProvider{events: []Event{
				{Type: EventTextDelta, TextDelta: "partial"},
				{Type: EventError, Error: boom},
			}},
			want:    "partial",
			wantErr: boom,
		},
		{
			name:    "chat error",
			p:       &scriptedProvider{chatErr: boom},
			wantErr: boom,
		},
		{
			name:    "empty",
			p:       &scriptedProvider{events: []Event{{Type: EventDone}}},
			wantErr: ErrEmptyCompletion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deltas []string
			got, _, err := Complete(context.Background(), tt.p, &ChatRequest{}, func(s string) {
				deltas = append(deltas, s)
			})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("text = %q, want %q", got, tt.want)
			}
			if tt.wantErr == nil && strings.Join(deltas, "") != tt.want {
				t.Errorf("deltas = %q", deltas)
			}
		})
	}
}

func TestCompleteReportsUsage(t *testing.T) {
	p := &scriptedProvider{events: []Event{
		{Type: EventTextDelta, TextDelta: "ok"},
		{Type: EventDone, Usage: &Usage{InputTokens: 10, OutputTokens: 1}},
	}}
	_, usage, err := Complete(context.Background(), p, &ChatRequest{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if usage == nil || usage.InputTokens != 10 || usage.OutputTokens != 1 {
		t.Errorf("usage = %+v", usage)
	}
}

func TestOpenAIProvider_NameDetection(t *testing.T) {
	tests := []struct {
		baseURL  string
		expected string
	}{
		{"", "openai"},
		{"https://api.deepseek.com/v1", "deepseek"},
		{"https://generativelanguage.googleapis.com/v1beta/openai/", "gemini"},
		{"https://api.groq.com/openai/v1", "groq"},
		{"https://custom.api.com/v1", "openai"},
	}
	for _, tt := range tests {
		p := NewOpenAIProvider("test-key", tt.baseURL, "test-model")
		if p.Name() != tt.expected {
			t.Errorf("baseURL=%q: expected name %q, got %q", tt.baseURL, tt.expected, p.Name())
		}
	}
}

func TestProviderMetadata(t *testing.T) {
	if p := NewOpenAIProvider("k", "", ""); p.DefaultModel() != "gpt-4o-mini" {
		t.Errorf("openai default model = %q", p.DefaultModel())
	}
	p := NewAnthropicProvider("k", "")
	if p.Name() != "anthropic" || p.DefaultModel() != "claude-sonnet-4-20250514" {
		t.Errorf("anthropic metadata = %q/%q", p.Name(), p.DefaultModel())
	}
}

func TestContentClassification(t *testing.T) {
	tests := []struct {
		c       Content
		isImage bool
		isText  bool
	}{
		{Content{Type: ContentTypeAttachment, MediaType: "image/png"}, true, false},
		{Content{Type: ContentTypeAttachment, MediaType: "text/plain; charset=utf-8"}, false, true},
		{Content{Type: ContentTypeAttachment, MediaType: "application/json"}, false, true},
		{Content{Type: ContentTypeAttachment, MediaType: "application/pdf"}, false, false},
		{Content{Type: ContentTypeText, Text: "hi"}, false, false},
		{Content{Type: ContentTypeDocument, MediaType: "image/png"}, false, false},
	}
	for _, tt := range tests {
		if got := tt.c.IsImage(); got != tt.isImage {
			t.Errorf("%+v IsImage = %v", tt.c, got)
		}
		if got := tt.c.IsText(); got != tt.isText {
			t.Errorf("%+v IsText = %v", tt.c, got)
		}
	}
}

func TestInlineText(t *testing.T) {
	text := inlineText(Content{Type: ContentTypeAttachment, Name: "notes.txt", MediaType: "text/plain", Data: []byte("lime")})
	if !strings.Contains(text, `name="notes.txt"`) || !strings.Contains(text, "lime") {
		t.Errorf("text attachment = %q", text)
	}
	bin := inlineText(Content{Type: ContentTypeAttachment, Name: "a.pdf", MediaType: "application/pdf", Data: make([]byte, 7)})
	if !strings.Contains(bin, "7 bytes") {
		t.Errorf("binary attachment = %q", bin)
	}
	joined := joinText([]Content{{Type: ContentTypeText, Text: "a"}, {Type: ContentTypeText, Text: "b"}})
	if joined != "a\n\nb" {
		t.Errorf("joinText = %q", joined)
	}
}

func TestBuildGeminiContents(t *testing.T) {
	msgs := []Message{
		TextMessage(RoleUser, "hi"),
		TextMessage(RoleAssistant, "hello"),
		{Role: RoleUser, Content: []Content{
			{Type: ContentTypeDocument, URI: "https://files/abc", MediaType: "text/markdown"},
			{Type: ContentTypeAttachment, Data: []byte{1, 2}, MediaType: "image/png"},
			{Type: ContentTypeText, Text: "what is this"},
		}},
		{Role: RoleUser, Content: []Content{{Type: ContentTypeText}}},
	}
	got := buildGeminiContents(msgs)
	if len(got) != 3 {
		t.Fatalf("contents = %d, want 3 (empty message skipped)", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "model" {
		t.Errorf("roles = %q, %q", got[0].Role, got[1].Role)
	}
	if n := len(got[2].Parts); n != 3 {
		t.Fatalf("parts = %d, want 3", n)
	}
	if got[2].Parts[0].FileData == nil || got[2].Parts[0].FileData.FileURI != "https://files/abc" {
		t.Errorf("document part = %+v", got[2].Parts[0])
	}
	if got[2].Parts[1].InlineData == nil || got[2].Parts[1].InlineData.MIMEType != "image/png" {
		t.Errorf("attachment part = %+v", got[2].Parts[1])
	}
}
