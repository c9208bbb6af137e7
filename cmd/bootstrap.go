package cmd

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mixlab-ai/mixlab/internal/chatlog"
	"github.com/mixlab-ai/mixlab/internal/config"
	"github.com/mixlab-ai/mixlab/internal/logging"
	"github.com/mixlab-ai/mixlab/internal/provider"
	"github.com/mixlab-ai/mixlab/internal/session"
)

// app is everything a command needs, wired in dependency order:
// config, logger, chat log, session store (rehydrated), then the backend.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	writer *chatlog.Writer
	store  *session.Store
	// backend is nil for commands that never call the model.
	backend provider.Provider
	docs    *provider.DocumentSet
	titler  session.TitleDeriver
	// notices are startup problems worth showing once in the chat.
	notices []string
}

// bootstrap wires an app. withBackend also builds the provider, loads the
// reference documents and picks the title deriver.
func bootstrap(ctx context.Context, withBackend bool) (*app, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}

	log, lerr := logging.NewOrNop(cfg.Log, verbose)
	if lerr != nil {
		fmt.Fprintf(os.Stderr, "warning: diagnostics disabled: %v\n", lerr)
	}
	a := &app{cfg: cfg, log: log}

	store, err := openLogStore(ctx, cfg, log)
	if err != nil {
		// Backend unavailable: chat keeps working, persistence is off.
		log.Warn("chat log unavailable, running local-only", zap.String("backend", cfg.LogStore.Backend), zap.Error(err))
		a.notices = append(a.notices, fmt.Sprintf("Chat log unavailable (%v); this conversation will not be saved.", err))
		store = nil
	}
	a.writer = chatlog.NewWriter(store, chatlog.WriterOptions{
		QueueSize: cfg.LogStore.QueueSize,
		Timeout:   cfg.Timeouts.LogStore,
		Logger:    log,
	})

	a.store = session.NewStore(session.Options{
		MaxResident: cfg.Sessions.MaxResident,
		Label:       cfg.Sessions.Label,
		TitleChars:  cfg.Title.MaxChars,
	})
	if a.writer.Enabled() {
		if _, err := session.RehydrateFrom(ctx, a.store, a.writer, log); err != nil {
			a.notices = append(a.notices, "Could not load earlier sessions; starting fresh.")
		}
	}

	if !withBackend {
		return a, nil
	}

	p, err := buildProvider(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.backend = p
	if cfg.Model == "" {
		cfg.Model = p.DefaultModel()
	}

	a.docs = provider.NewDocumentSet(p, cfg.ReferenceDocs, log)
	if err := a.docs.Load(ctx); err != nil {
		a.notices = append(a.notices, err.Error())
	}

	switch cfg.Title.Mode {
	case config.TitleModeLLM:
		a.titler = &session.LLMTitler{Provider: p, Model: cfg.Model, MaxChars: cfg.Title.MaxChars, Log: log}
	default:
		a.titler = session.TruncateTitler{MaxChars: cfg.Title.MaxChars}
	}
	return a, nil
}

// openLogStore opens the configured chat log backend. A nil store with a nil
// error means persistence is switched off.
func openLogStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (chatlog.Store, error) {
	switch cfg.LogStore.Backend {
	case config.BackendNone:
		log.Info("chat log disabled")
		return nil, nil
	case config.BackendSheets:
		sc := cfg.LogStore.Sheets
		octx, cancel := context.WithTimeout(ctx, cfg.Timeouts.LogStore)
		defer cancel()
		s, err := chatlog.NewSheetsStore(octx, sc.SpreadsheetID, sc.Sheet, sc.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Info("chat log opened", zap.String("backend", "sheets"), zap.String("spreadsheet", sc.SpreadsheetID))
		return s, nil
	default:
		path := cfg.LogStore.SQLitePath
		if path == "" {
			p, err := chatlog.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("chat log path: %w", err)
			}
			path = p
		}
		s, err := chatlog.NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		log.Info("chat log opened", zap.String("backend", "sqlite"), zap.String("path", path))
		return s, nil
	}
}

// close drains the chat log and flushes diagnostics.
func (a *app) close() {
	if err := a.writer.Close(); err != nil {
		a.log.Warn("close chat log", zap.Error(err))
	}
	st := a.writer.Stats()
	a.log.Info("chat log closed",
		zap.Int64("appended", st.Appended),
		zap.Int64("failed", st.Failed),
		zap.Int64("dropped", st.Dropped))
	_ = a.log.Sync()
}

// logBackend names the active chat log for status displays.
func (a *app) logBackend() string {
	if !a.writer.Enabled() {
		return config.BackendNone
	}
	return a.cfg.LogStore.Backend
}
