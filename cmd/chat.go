package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/mixlab-ai/mixlab/internal/chat"
	"github.com/mixlab-ai/mixlab/internal/tui"
)

// runChat starts the interactive chat (REPL) mode.
func runChat(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	newChat := func(ui tui.IO) *chat.Chat {
		for _, n := range a.notices {
			ui.SystemMessage(n)
		}
		return chat.New(chat.Options{
			Config:   a.cfg,
			Provider: a.backend,
			Store:    a.store,
			Writer:   a.writer,
			Docs:     a.docs,
			Titler:   a.titler,
			IO:       ui,
			Logger:   a.log,
		})
	}

	if useTUI {
		tuiCfg := tui.TUIConfig{
			Brand:       a.cfg.Brand,
			Version:     displayVersion(),
			Provider:    a.cfg.Provider,
			Model:       a.cfg.Model,
			Documents:   len(a.cfg.ReferenceDocs),
			LogBackend:  a.logBackend(),
			ShowWelcome: true,
		}
		return tui.RunTUI(tuiCfg, func(ui tui.IO) error {
			return newChat(ui).Run(ctx)
		})
	}

	// Plain IO mode: Ctrl+C ends the session.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()
	if err := newChat(tui.NewPlainIO()).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
