package tui

import (
	"context"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mixlab-ai/mixlab/internal/session"
)

// TuiIO implements the IO interface by sending messages to a bubbletea Program.
// All methods are safe to call from any goroutine.
type TuiIO struct {
	program *tea.Program
	inputCh chan inputResult
	// done is closed once the program has exited; blocked readers unblock on it.
	done chan struct{}

	mu         sync.Mutex
	cancelTurn context.CancelFunc
}

var _ IO = (*TuiIO)(nil)

// send is a nil-safe helper that sends a message to the bubbletea program.
// Fire-and-forget methods use this to avoid panicking when program is nil.
func (t *TuiIO) send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TuiIO) ReadInput() (string, error) {
	if t.program == nil {
		return "", io.EOF
	}
	// Tell the TUI to activate the text input
	t.program.Send(readInputMsg{})

	// Block until the user submits or the TUI exits
	select {
	case res := <-t.inputCh:
		if res.err != nil {
			return "", io.EOF
		}
		return res.text, nil
	case <-t.done:
		return "", io.EOF
	}
}

func (t *TuiIO) UserMessage(text string) {
	t.send(userMsg{text: text})
}

func (t *TuiIO) ThinkingStart() {
	t.send(thinkingStartMsg{})
}

func (t *TuiIO) TextDelta(delta string) {
	t.send(textDeltaMsg{delta: delta})
}

func (t *TuiIO) TextDone(fullText string) {
	t.send(textDoneMsg{fullText: fullText})
}

func (t *TuiIO) Confirm(prompt string) bool {
	if t.program == nil {
		return false
	}
	replyCh := make(chan bool, 1)
	t.program.Send(confirmMsg{prompt: prompt, replyCh: replyCh})
	select {
	case ok := <-replyCh:
		return ok
	case <-t.done:
		return false
	}
}

func (t *TuiIO) SystemMessage(text string) {
	t.send(systemMsg{text: text})
}

func (t *TuiIO) Error(msg string) {
	t.send(errorMsg{text: msg})
}

func (t *TuiIO) SetSessions(list []session.Summary) {
	t.send(sessionsMsg{list: append([]session.Summary(nil), list...)})
}

func (t *TuiIO) Replay(id string, turns []session.Turn) {
	t.send(replayMsg{id: id, turns: append([]session.Turn(nil), turns...)})
}

func (t *TuiIO) SetTokens(n int) {
	t.send(tokensMsg{n: n})
}

// --- TurnCanceller implementation ---

// SetTurnCancel registers the cancel function of the in-flight completion.
func (t *TuiIO) SetTurnCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTurn = cancel
}

// ClearTurnCancel clears the cancel function when the turn ends.
func (t *TuiIO) ClearTurnCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTurn = nil
}

// CancelTurn cancels the in-flight completion. Returns true if a turn was
// actually cancelled.
func (t *TuiIO) CancelTurn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelTurn != nil {
		t.cancelTurn()
		t.cancelTurn = nil
		return true
	}
	return false
}

// TurnCanceller is implemented by IOs that let the user abort a streaming
// response. The chat loop registers each turn's cancel func through it.
type TurnCanceller interface {
	SetTurnCancel(cancel context.CancelFunc)
	ClearTurnCancel()
}

var _ TurnCanceller = (*TuiIO)(nil)
