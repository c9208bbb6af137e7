// Package chat runs the conversation loop: it reads user input, keeps the
// session store and the chat log in step, and streams completions.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mixlab-ai/mixlab/internal/chatlog"
	"github.com/mixlab-ai/mixlab/internal/config"
	"github.com/mixlab-ai/mixlab/internal/provider"
	"github.com/mixlab-ai/mixlab/internal/session"
	"github.com/mixlab-ai/mixlab/internal/tui"
)

// Options wires a Chat. Config, Provider, Store and IO are required.
type Options struct {
	Config   *config.Config
	Provider provider.Provider
	Store    *session.Store
	// Writer mirrors turns to the chat log. nil runs local-only.
	Writer *chatlog.Writer
	// Docs are the reference documents sent with every request. May be nil.
	Docs   *provider.DocumentSet
	Titler session.TitleDeriver
	IO     tui.IO
	Logger *zap.Logger
}

// Chat orchestrates the interactive loop between the user, the session store,
// the chat log and the completion backend. All store mutations happen on the
// goroutine that calls Run (or Send); only the Writer works in the background.
type Chat struct {
	cfg      *config.Config
	provider provider.Provider
	store    *session.Store
	writer   *chatlog.Writer
	docs     *provider.DocumentSet
	titler   session.TitleDeriver
	// fallbackTitler labels sessions whose completion failed without
	// another backend call.
	fallbackTitler session.TitleDeriver
	io             tui.IO
	log            *zap.Logger

	model        string
	systemPrompt string
	timeout      time.Duration

	// pending is attached to the next request only, then dropped.
	pending *provider.Content
	tokens  int
}

// New builds a Chat from opts.
func New(opts Options) *Chat {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	writer := opts.Writer
	if writer == nil {
		writer = chatlog.NewWriter(nil, chatlog.WriterOptions{})
	}
	titler := opts.Titler
	if titler == nil {
		titler = session.TruncateTitler{MaxChars: opts.Config.Title.MaxChars}
	}
	docs := opts.Docs
	if docs == nil {
		docs = provider.NewDocumentSet(opts.Provider, nil, log)
	}
	model := opts.Config.Model
	if model == "" {
		model = opts.Provider.DefaultModel()
	}
	timeout := opts.Config.Timeouts.Completion
	if timeout <= 0 {
		timeout = config.DefaultConfig().Timeouts.Completion
	}
	return &Chat{
		timeout:        timeout,
		cfg:            opts.Config,
		provider:       opts.Provider,
		store:          opts.Store,
		writer:         writer,
		docs:           docs,
		titler:         titler,
		fallbackTitler: session.TruncateTitler{MaxChars: opts.Config.Title.MaxChars},
		io:             opts.IO,
		log:            log.Named("chat"),
		model:          model,
		systemPrompt:   opts.Config.RenderSystemPrompt(),
	}
}

// Run reads input until the user quits or the IO reports EOF.
func (c *Chat) Run(ctx context.Context) error {
	c.refreshSessions()
	if sess, err := c.store.Get(c.store.Active()); err == nil && len(sess.Turns) > 0 {
		c.io.SystemMessage(fmt.Sprintf("Resumed %s (%d messages).", sess.ID, len(sess.Turns)))
		c.io.Replay(sess.ID, sess.Turns)
	}

	for {
		input, err := c.io.ReadInput()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		// Slash commands are intercepted before sending to the model.
		if strings.HasPrefix(input, "/") {
			if c.handleSlashCommand(ctx, input) {
				return nil
			}
			continue
		}

		if err := c.Send(ctx, input); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.io.Error(err.Error())
		}
	}
}

// RunOnce sends prompt in a new session and returns (non-interactive mode).
func (c *Chat) RunOnce(ctx context.Context, prompt string) error {
	c.store.CreateSession()
	return c.Send(ctx, prompt)
}

// Send runs one interaction in the active session: the user turn is recorded
// and logged, the whole session goes to the backend, and on success the
// answer is recorded and logged as well. A failed completion leaves only the
// user turn and keeps the pending attachment, so the user can retry.
func (c *Chat) Send(ctx context.Context, text string) error {
	id := c.store.Active()
	log := c.log.With(
		zap.String("interaction", uuid.NewString()),
		zap.String("session_id", id))

	c.io.UserMessage(text)
	if err := c.appendTurn(id, session.RoleUser, text); err != nil {
		return err
	}
	c.refreshSessions()

	attachment := c.pending
	c.pending = nil

	req, err := c.buildRequest(ctx, id, attachment)
	if err != nil {
		return err
	}

	// Per-turn context: the UI may cancel this without ending the session.
	turnCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if tc, ok := c.io.(tui.TurnCanceller); ok {
		tc.SetTurnCancel(cancel)
		defer tc.ClearTurnCancel()
	}

	start := time.Now()
	c.io.ThinkingStart()
	full, usage, err := provider.Complete(turnCtx, c.provider, req, c.io.TextDelta)
	if err != nil {
		c.io.TextDone("")
		c.pending = attachment
		c.deriveTitle(ctx, id, c.fallbackTitler, log)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, context.Canceled):
			log.Info("completion interrupted", zap.Duration("elapsed", time.Since(start)))
			c.io.SystemMessage("Interrupted.")
			return nil
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn("completion timed out", zap.Duration("timeout", c.timeout))
			return fmt.Errorf("completion timed out after %s", c.timeout)
		}
		log.Warn("completion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return fmt.Errorf("completion failed: %w", err)
	}
	c.io.TextDone(full)

	if usage != nil {
		c.tokens += usage.InputTokens + usage.OutputTokens
		c.io.SetTokens(c.tokens)
	}
	log.Info("completion done",
		zap.String("model", req.Model),
		zap.Int("chars", len(full)),
		zap.Duration("elapsed", time.Since(start)))

	if err := c.appendTurn(id, session.RoleAssistant, full); err != nil {
		return err
	}
	c.deriveTitle(ctx, id, c.titler, log)
	c.refreshSessions()
	return nil
}

// appendTurn records a turn locally and queues it for the chat log.
func (c *Chat) appendTurn(id string, role session.Role, content string) error {
	turn, err := c.store.AppendTurn(id, role, content)
	if err != nil {
		return err
	}
	c.writer.LogTurn(id, string(turn.Role), turn.Content, turn.Timestamp)
	return nil
}

// buildRequest converts the session into a ChatRequest. Reference documents
// and the pending attachment ride on the last user message.
func (c *Chat) buildRequest(ctx context.Context, id string, attachment *provider.Content) (*provider.ChatRequest, error) {
	sess, err := c.store.Get(id)
	if err != nil {
		return nil, err
	}
	msgs := make([]provider.Message, 0, len(sess.Turns))
	for _, t := range sess.Turns {
		role := provider.RoleUser
		if t.Role == session.RoleAssistant {
			role = provider.RoleAssistant
		}
		msgs = append(msgs, provider.TextMessage(role, t.Content))
	}

	if n := len(msgs); n > 0 && msgs[n-1].Role == provider.RoleUser {
		var extra []provider.Content
		if c.docs.Uploads() {
			extra = append(extra, c.docs.Contents(ctx)...)
		}
		if attachment != nil {
			extra = append(extra, *attachment)
		}
		if len(extra) > 0 {
			msgs[n-1].Content = append(extra, msgs[n-1].Content...)
		}
	}

	return &provider.ChatRequest{
		Model:        c.model,
		Messages:     msgs,
		SystemPrompt: c.docs.SystemPrompt(c.systemPrompt),
	}, nil
}

// deriveTitle labels id from its first user turn unless it already has a title.
func (c *Chat) deriveTitle(ctx context.Context, id string, titler session.TitleDeriver, log *zap.Logger) {
	title, err := c.store.Title(id)
	if err != nil || title != session.Untitled {
		return
	}
	sess, err := c.store.Get(id)
	if err != nil {
		return
	}
	first, ok := sess.FirstUserTurn()
	if !ok {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	derived := titler.DeriveTitle(tctx, first)
	if applied, _ := c.store.SetTitleIfUnset(id, derived); applied {
		log.Debug("session titled", zap.String("title", derived))
	}
}

func (c *Chat) refreshSessions() {
	c.io.SetSessions(c.store.List())
}

// Tokens is the total token usage reported by the backend so far.
func (c *Chat) Tokens() int { return c.tokens }
