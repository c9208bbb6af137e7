package session

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mixlab-ai/mixlab/internal/provider"
	"go.uber.org/zap"
)

// TitleDeriver labels a session from its first user message. It never fails;
// callers store the result with SetTitleIfUnset.
type TitleDeriver interface {
	DeriveTitle(ctx context.Context, firstUserMessage string) string
}

// TruncateTitle collapses whitespace and cuts msg to maxChars runes, adding
// "..." when it had to cut.
func TruncateTitle(msg string, maxChars int) string {
	msg = strings.Join(strings.Fields(msg), " ")
	if msg == "" {
		return Untitled
	}
	if maxChars < 1 {
		maxChars = DefaultTitleChars
	}
	if utf8.RuneCountInString(msg) <= maxChars {
		return msg
	}
	r := []rune(msg)
	return strings.TrimRight(string(r[:maxChars]), " ") + "..."
}

// TruncateTitler is the heuristic deriver.
type TruncateTitler struct {
	MaxChars int
}

func (t TruncateTitler) DeriveTitle(_ context.Context, msg string) string {
	return TruncateTitle(msg, t.MaxChars)
}

// LLMTitler asks the completion backend for a 3–5 word label and falls back
// to TruncateTitle when the call fails or returns nothing usable.
type LLMTitler struct {
	Provider provider.Provider
	Model    string // empty = provider default
	MaxChars int    // fallback budget
	Log      *zap.Logger
}

const titlePrompt = `Summarize the following message into a short title of 3 to 5 words.
Reply with the title only, no quotes and no punctuation at the end.

Message:
%s`

// maxLLMTitleChars bounds a model-produced title.
const maxLLMTitleChars = 60

func (t *LLMTitler) DeriveTitle(ctx context.Context, msg string) string {
	fallback := TruncateTitle(msg, t.MaxChars)
	if strings.TrimSpace(msg) == "" || t.Provider == nil {
		return fallback
	}

	model := t.Model
	if model == "" {
		model = t.Provider.DefaultModel()
	}
	temp := 0.2
	req := &provider.ChatRequest{
		Model:        model,
		Messages:     []provider.Message{provider.TextMessage(provider.RoleUser, fmt.Sprintf(titlePrompt, msg))},
		SystemPrompt: "You write short, plain titles for chat conversations.",
		Temperature:  &temp,
	}
	text, _, err := provider.Complete(ctx, t.Provider, req, nil)
	if err != nil {
		t.logger().Debug("title completion failed, using truncated title", zap.Error(err))
		return fallback
	}
	title := CleanTitle(text)
	if title == "" {
		return fallback
	}
	return TruncateTitle(title, maxLLMTitleChars)
}

func (t *LLMTitler) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

// CleanTitle strips the artifacts models wrap titles in: quotes, markdown
// emphasis, a leading "Title:" and a trailing period. Only the first
// non-empty line is kept.
func CleanTitle(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '`', '“', '”', '‘', '’', '«', '»', '*':
			return -1
		}
		return r
	}, line)
	line = strings.Trim(line, "_# ")
	if len(line) >= 6 && strings.EqualFold(line[:6], "title:") {
		line = line[6:]
	}
	line = strings.TrimSpace(line)
	line = strings.TrimRight(line, ".")
	return strings.Join(strings.Fields(line), " ")
}
