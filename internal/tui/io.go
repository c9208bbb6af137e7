// Package tui defines the IO interface between the chat loop and the user
// interface layer, plus PlainIO (terminal fallback), PipeIO (non-interactive),
// BufferIO (scripted) and TuiIO (bubbletea).
package tui

import "github.com/mixlab-ai/mixlab/internal/session"

// IO is the contract between the chat loop and the UI layer.
// Every method maps to a distinct visual event, so the chat loop never
// depends on a specific rendering implementation.
type IO interface {
	// ReadInput blocks until the user submits a line of input.
	// Returns ("", io.EOF) when the user quits.
	ReadInput() (string, error)

	// UserMessage displays the user's submitted message in the output area.
	UserMessage(text string)

	// ThinkingStart signals that the model has started processing.
	ThinkingStart()

	// TextDelta appends an incremental text chunk from the stream.
	TextDelta(delta string)

	// TextDone signals that the current response is complete.
	// fullText contains the entire response assembled from all deltas.
	TextDone(fullText string)

	// Confirm asks a yes/no question before a destructive action.
	Confirm(prompt string) bool

	// SystemMessage displays a notice (session switched, export written...).
	SystemMessage(text string)

	// Error displays an error message with prominent styling.
	Error(msg string)

	// SetSessions refreshes the session list shown next to the input.
	SetSessions(list []session.Summary)

	// Replay shows the turns of a session that just became active.
	Replay(id string, turns []session.Turn)

	// SetTokens updates the token counter shown in the status area.
	SetTokens(n int)
}
