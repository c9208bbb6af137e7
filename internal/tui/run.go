package tui

import (
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// RunTUI starts the bubbletea program inline and runs chatFn concurrently.
// Finished messages go to the terminal scrollback through tea.Println, so the
// program does not take over the alternate screen. It blocks until either
// chatFn returns or the user quits.
func RunTUI(cfg TUIConfig, chatFn func(io IO) error) error {
	inputCh := make(chan inputResult, 1)
	model := NewModel(inputCh, cfg)

	// Create TuiIO early so the cancel hook is wired before the model
	// is copied into the tea.Program.
	tuiIO := &TuiIO{
		inputCh: inputCh,
		done:    make(chan struct{}),
	}
	model.cancelTurnFn = tuiIO.CancelTurn

	p := tea.NewProgram(model)
	tuiIO.program = p

	var (
		chatErr error
		wg      sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		chatErr = chatFn(tuiIO)
		// Signal the TUI that the chat loop is done
		p.Send(chatDoneMsg{err: chatErr})
	}()

	_, err := p.Run()
	close(tuiIO.done)
	tuiIO.CancelTurn()

	// Wait for the chat goroutine to finish after TUI exits
	wg.Wait()

	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return chatErr
}
