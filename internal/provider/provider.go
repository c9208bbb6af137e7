// Package provider defines the unified interface and shared types for the
// completion backends. Each adapter (gemini.go, openai.go, anthropic.go)
// implements Provider, normalizing vendor-specific streaming responses into a
// unified Event sequence.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ── Message types ────────────────────────────────────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentType string

const (
	ContentTypeText ContentType = "text"
	// ContentTypeAttachment is a one-off binary or text file passed inline
	// with a single turn.
	ContentTypeAttachment ContentType = "attachment"
	// ContentTypeDocument references a document previously uploaded to the
	// backend (see DocumentUploader).
	ContentTypeDocument ContentType = "document"
)

// Content is a single content block within a message.
type Content struct {
	Type      ContentType
	Text      string
	Data      []byte // attachment: raw bytes
	MediaType string // attachment / document: MIME type
	URI       string // document: backend file URI
	Name      string // attachment / document: display name
}

// IsImage reports whether an attachment carries image data.
func (c Content) IsImage() bool {
	return c.Type == ContentTypeAttachment && strings.HasPrefix(c.MediaType, "image/")
}

// IsText reports whether an attachment can be sent as plain text.
func (c Content) IsText() bool {
	if c.Type != ContentTypeAttachment {
		return false
	}
	return strings.HasPrefix(c.MediaType, "text/") ||
		c.MediaType == "application/json" ||
		c.MediaType == "application/xml"
}

// Message is a single message in the conversation history.
type Message struct {
	Role    Role
	Content []Content
}

// TextMessage builds a single-block text message.
func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// ── Request types ────────────────────────────────────────────────────────────

// ChatRequest is the unified request format sent to a provider.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Temperature  *float64
}

// ── Event types (streaming output) ───────────────────────────────────────────

type EventType int

const (
	// EventTextDelta: incremental text output from the LLM, rendered in real time.
	EventTextDelta EventType = iota

	// EventDone: end of this message turn, includes token usage.
	EventDone

	// EventError: an error occurred.
	EventError
)

// Event is the unified streaming event emitted by a provider.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventDone
	Usage *Usage

	// EventError
	Error error
}

// Usage records token consumption for an API call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the unified interface for all completion backends.
// Implementors convert the unified ChatRequest into the vendor request and
// the vendor's streaming response into a unified Event sequence.
type Provider interface {
	// Chat initiates a streaming conversation.
	// The returned channel emits Events until EventDone or EventError, then closes.
	// The caller must fully consume the channel to avoid goroutine leaks.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "gemini", "openai", "anthropic".
	Name() string

	// DefaultModel returns the default model.
	DefaultModel() string
}

// ErrEmptyCompletion is returned by Complete when the stream ended without text.
var ErrEmptyCompletion = errors.New("completion returned no text")

// Complete runs req and drains the stream into one string. onDelta, if
// non-nil, sees every fragment as it arrives.
func Complete(ctx context.Context, p Provider, req *ChatRequest, onDelta func(string)) (string, *Usage, error) {
	ch, err := p.Chat(ctx, req)
	if err != nil {
		return "", nil, err
	}
	var (
		sb    strings.Builder
		usage *Usage
		cerr  error
	)
	// Keep draining after an error so the adapter goroutine can exit.
	for ev := range ch {
		switch ev.Type {
		case EventTextDelta:
			if cerr != nil {
				continue
			}
			sb.WriteString(ev.TextDelta)
			if onDelta != nil {
				onDelta(ev.TextDelta)
			}
		case EventDone:
			usage = ev.Usage
		case EventError:
			if cerr == nil {
				cerr = ev.Error
			}
		}
	}
	if cerr != nil {
		return sb.String(), usage, cerr
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), usage, err
	}
	if sb.Len() == 0 {
		return "", usage, ErrEmptyCompletion
	}
	return sb.String(), usage, nil
}
