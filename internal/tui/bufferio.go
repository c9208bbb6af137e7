package tui

import (
	"io"
	"strings"
	"sync"

	"github.com/mixlab-ai/mixlab/internal/session"
)

// BufferIO is a silent IO that replays scripted input and records everything
// the chat loop shows. It drives the chat loop in tests and in scripted runs.
type BufferIO struct {
	mu       sync.Mutex
	inputs   []string
	confirm  bool
	buf      strings.Builder
	system   []string
	errors   []string
	sessions []session.Summary
	replayed []string
	tokens   int
}

var _ IO = (*BufferIO)(nil)

// NewBufferIO returns a BufferIO that yields inputs in order, then io.EOF.
func NewBufferIO(inputs ...string) *BufferIO {
	return &BufferIO{inputs: inputs}
}

// SetConfirm fixes the answer to every Confirm call.
func (b *BufferIO) SetConfirm(answer bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirm = answer
}

func (b *BufferIO) ReadInput() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.inputs) == 0 {
		return "", io.EOF
	}
	in := b.inputs[0]
	b.inputs = b.inputs[1:]
	return in, nil
}

func (b *BufferIO) UserMessage(_ string) {}
func (b *BufferIO) ThinkingStart()       {}

func (b *BufferIO) TextDelta(delta string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.WriteString(delta)
}

func (b *BufferIO) TextDone(_ string) {}

func (b *BufferIO) Confirm(_ string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.confirm
}

func (b *BufferIO) SystemMessage(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.system = append(b.system, text)
}

func (b *BufferIO) Error(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors = append(b.errors, msg)
}

func (b *BufferIO) SetSessions(list []session.Summary) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = append([]session.Summary(nil), list...)
}

func (b *BufferIO) Replay(id string, _ []session.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replayed = append(b.replayed, id)
}

func (b *BufferIO) SetTokens(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = n
}

// Output returns all captured model text.
func (b *BufferIO) Output() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// SystemMessages returns every notice shown so far.
func (b *BufferIO) SystemMessages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.system...)
}

// Errors returns every error shown so far.
func (b *BufferIO) Errors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.errors...)
}

// Sessions returns the last session list pushed by SetSessions.
func (b *BufferIO) Sessions() []session.Summary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]session.Summary(nil), b.sessions...)
}

// Replayed returns the ids passed to Replay, in order.
func (b *BufferIO) Replayed() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.replayed...)
}

// Tokens returns the last token count.
func (b *BufferIO) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}
