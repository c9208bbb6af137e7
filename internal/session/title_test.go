package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mixlab-ai/mixlab/internal/provider"
)

func TestTruncateTitle(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Short one", 25, "Short one"},
		{"exactly twenty-five chars", 25, "exactly twenty-five chars"},
		{"This message is definitely longer than the budget", 25, "This message is definitel..."},
		{"  spaced \n\n out\ttext ", 25, "spaced out text"},
		{"Café crème brûlée syrup pairing ideas", 10, "Café crème..."},
		{"word boundary here", 5, "word..."},
		{"", 25, Untitled},
		{"   ", 25, Untitled},
		{"fallback budget applies to zero max chars!", 0, "fallback budget applies t..."},
	}
	for _, tt := range tests {
		if got := TruncateTitle(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateTitle(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"Summer Basil Mocktails"`, "Summer Basil Mocktails"},
		{"Title: Coffee Syrup Pairings", "Coffee Syrup Pairings"},
		{"title: “Autumn Spice Lattes”.", "Autumn Spice Lattes"},
		{"**Tropical Party Punch**", "Tropical Party Punch"},
		{"\n\nLow Sugar Lemonade\nExtra line", "Low Sugar Lemonade"},
		{"It's Citrus Time", "Its Citrus Time"},
		{`""`, ""},
	}
	for _, tt := range tests {
		if got := CleanTitle(tt.in); got != tt.want {
			t.Errorf("CleanTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// titleProvider answers every request with a fixed reply or error.
type titleProvider struct {
	reply string
	err   error
	reqs  []*provider.ChatRequest
}

func (p *titleProvider) Name() string         { return "fake" }
func (p *titleProvider) DefaultModel() string { return "fake-1" }

func (p *titleProvider) Chat(_ context.Context, req *provider.ChatRequest) (<-chan provider.Event, error) {
	p.reqs = append(p.reqs, req)
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan provider.Event, 2)
	ch <- provider.Event{Type: provider.EventTextDelta, TextDelta: p.reply}
	ch <- provider.Event{Type: provider.EventDone}
	close(ch)
	return ch, nil
}

func TestLLMTitler(t *testing.T) {
	msg := "Can you suggest a refreshing cucumber and mint cooler for a spa menu?"
	tests := []struct {
		name string
		p    *titleProvider
		want string
	}{
		{"clean reply", &titleProvider{reply: "Title: \"Cucumber Mint Spa Cooler\""}, "Cucumber Mint Spa Cooler"},
		{"backend error", &titleProvider{err: errors.New("quota")}, "Can you suggest a refresh..."},
		{"empty reply", &titleProvider{reply: `""`}, "Can you suggest a refresh..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			titler := &LLMTitler{Provider: tt.p, MaxChars: 25}
			if got := titler.DeriveTitle(context.Background(), msg); got != tt.want {
				t.Errorf("DeriveTitle = %q, want %q", got, tt.want)
			}
			if len(tt.p.reqs) != 1 {
				t.Fatalf("requests = %d, want 1", len(tt.p.reqs))
			}
			req := tt.p.reqs[0]
			if req.Model != "fake-1" {
				t.Errorf("model = %q", req.Model)
			}
			if !strings.Contains(req.Messages[0].Content[0].Text, msg) {
				t.Error("prompt does not contain the user message")
			}
		})
	}
}

func TestLLMTitlerCapsLongReplies(t *testing.T) {
	p := &titleProvider{reply: strings.Repeat("very long title ", 10)}
	got := (&LLMTitler{Provider: p}).DeriveTitle(context.Background(), "hello")
	if n := len([]rune(got)); n > maxLLMTitleChars+3 {
		t.Errorf("title has %d runes: %q", n, got)
	}
}

func TestLLMTitlerWithoutProvider(t *testing.T) {
	got := (&LLMTitler{}).DeriveTitle(context.Background(), "Ginger beer")
	if got != "Ginger beer" {
		t.Errorf("DeriveTitle = %q", got)
	}
}

func TestTruncateTitler(t *testing.T) {
	var d TitleDeriver = TruncateTitler{MaxChars: 5}
	if got := d.DeriveTitle(context.Background(), "Grenadine"); got != "Grena..." {
		t.Errorf("DeriveTitle = %q", got)
	}
}
