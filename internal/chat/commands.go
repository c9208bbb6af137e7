package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mixlab-ai/mixlab/internal/provider"
	"github.com/mixlab-ai/mixlab/internal/session"
)

// handleSlashCommand processes built-in commands and reports whether the
// loop should end.
func (c *Chat) handleSlashCommand(ctx context.Context, input string) (quit bool) {
	parts := strings.SplitN(strings.TrimSpace(input), " ", 2)
	cmd := strings.ToLower(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case "/quit", "/exit", "/q":
		c.io.SystemMessage("Bye.")
		return true
	case "/help":
		c.handleHelp()
	case "/new":
		c.handleNew()
	case "/sessions":
		c.handleSessions()
	case "/switch":
		c.handleSwitch(arg)
	case "/delete":
		c.handleDelete(ctx, arg)
	case "/wipe":
		c.handleWipe(ctx)
	case "/history":
		c.handleHistory()
	case "/export":
		c.handleExport(arg)
	case "/attach":
		c.handleAttach(arg)
	case "/refresh":
		c.handleRefresh(ctx)
	default:
		c.io.Error(fmt.Sprintf("Unknown command: %s (try /help)", cmd))
	}
	return false
}

func (c *Chat) handleHelp() {
	c.io.SystemMessage(`Commands:
  /new               Start a new session
  /sessions          List sessions in memory
  /switch <ref>      Switch session (id, number, or #position)
  /delete [ref]      Delete a session and its chat log rows (default: active)
  /history           Show the active session
  /export [path]     Write the active session as a text transcript
  /attach <path>     Attach a file to your next message
  /refresh           Reload sessions from the chat log
  /wipe              Delete every session and clear the chat log
  /quit              Exit`)
}

func (c *Chat) handleNew() {
	id, evicted := c.store.CreateSession()
	for _, old := range evicted {
		c.io.SystemMessage(fmt.Sprintf("Limit reached: archived %q (still in the chat log).", old))
	}
	c.log.Info("session created", zap.String("session_id", id), zap.Strings("evicted", evicted))
	c.io.SystemMessage("Started " + id + ".")
	c.refreshSessions()
}

func (c *Chat) handleSessions() {
	c.io.SystemMessage(FormatSessionList(c.store.List(), c.store.MaxResident()))
}

// FormatSessionList renders summaries newest first, marking the active one.
func FormatSessionList(list []session.Summary, maxResident int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sessions (%d/%d):\n", len(list), maxResident)
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		marker := " "
		if s.Active {
			marker = "●"
		}
		fmt.Fprintf(&sb, "  %s #%d  %-12s  %-28s  %3d msgs  %s\n",
			marker, i+1, s.ID, s.Title, s.Turns, humanize.Time(s.UpdatedAt))
	}
	sb.WriteString("Use /switch <ref> to change session.")
	return sb.String()
}

func (c *Chat) handleSwitch(ref string) {
	if ref == "" {
		c.io.SystemMessage("Usage: /switch <id|number|#position>")
		return
	}
	id, err := c.store.Resolve(ref)
	if err != nil {
		c.io.Error(fmt.Sprintf("No session matches %q", ref))
		return
	}
	if err := c.store.SwitchActive(id); err != nil {
		c.io.Error(err.Error())
		return
	}
	c.showActive()
	c.refreshSessions()
}

func (c *Chat) handleDelete(ctx context.Context, ref string) {
	id := c.store.Active()
	if ref != "" {
		var err error
		if id, err = c.store.Resolve(ref); err != nil {
			c.io.Error(fmt.Sprintf("No session matches %q", ref))
			return
		}
	}
	wasActive := id == c.store.Active()

	// The remote delete is attempted first; local state follows either way.
	removed, err := c.writer.DeleteSessionRemote(ctx, id)
	if err != nil {
		c.log.Warn("remote session delete failed", zap.String("session_id", id), zap.Error(err))
		c.io.Error(fmt.Sprintf("Chat log not updated: %v", err))
	}
	if err := c.store.DeleteSession(id); err != nil {
		c.io.Error(err.Error())
		return
	}

	msg := "Deleted " + id
	if c.writer.Enabled() && err == nil {
		msg += fmt.Sprintf(" (%d log rows removed)", removed)
	}
	c.io.SystemMessage(msg + ".")
	if wasActive {
		c.showActive()
	}
	c.refreshSessions()
}

func (c *Chat) handleWipe(ctx context.Context) {
	if !c.io.Confirm("Delete every session and clear the chat log? This cannot be undone.") {
		c.io.SystemMessage("Wipe cancelled.")
		return
	}
	if err := c.writer.WipeRemote(ctx); err != nil {
		c.log.Warn("remote wipe failed", zap.Error(err))
		c.io.Error(fmt.Sprintf("Chat log not cleared: %v", err))
	}
	c.store.WipeAll()
	c.pending = nil
	c.log.Info("sessions wiped")
	c.io.SystemMessage("All sessions wiped. Started " + c.store.Active() + ".")
	c.refreshSessions()
}

func (c *Chat) handleHistory() {
	c.showActive()
}

func (c *Chat) handleExport(path string) {
	sess, err := c.store.Get(c.store.Active())
	if err != nil {
		c.io.Error(err.Error())
		return
	}
	if path == "" {
		path = session.TranscriptFilename(c.cfg.Brand, sess.ID)
	}
	if err := os.WriteFile(path, []byte(session.FormatTranscript(sess.Turns)), 0o644); err != nil {
		c.io.Error(fmt.Sprintf("Export failed: %v", err))
		return
	}
	c.io.SystemMessage(fmt.Sprintf("Exported %s (%d messages) to %s.", sess.ID, len(sess.Turns), path))
}

func (c *Chat) handleAttach(path string) {
	if path == "" {
		if c.pending != nil {
			c.io.SystemMessage(fmt.Sprintf("Pending attachment: %s (%s). Use /attach clear to drop it.", c.pending.Name, c.pending.MediaType))
			return
		}
		c.io.SystemMessage("Usage: /attach <path>")
		return
	}
	if path == "clear" {
		c.pending = nil
		c.io.SystemMessage("Attachment cleared.")
		return
	}
	att, err := loadAttachment(path)
	if err != nil {
		c.io.Error(err.Error())
		return
	}
	if att.IsImage() {
		d := provider.DetectImageSupport(c.provider.Name(), c.model)
		if !d.Supported && d.Confident {
			c.io.Error(fmt.Sprintf("%s cannot read images: %s", c.model, d.Reason))
			return
		}
		if !d.Confident {
			c.io.SystemMessage(fmt.Sprintf("Warning: %s may not accept images (%s).", c.model, d.Reason))
		}
	}
	c.pending = att
	c.io.SystemMessage(fmt.Sprintf("Attached %s (%s, %s). It goes with your next message only.",
		att.Name, att.MediaType, humanize.Bytes(uint64(len(att.Data)))))
}

func (c *Chat) handleRefresh(ctx context.Context) {
	res, err := session.RehydrateFrom(ctx, c.store, c.writer, c.log)
	switch {
	case err != nil:
		c.io.Error(fmt.Sprintf("Could not read the chat log: %v", errors.Unwrap(err)))
	case !res.Replaced:
		c.io.SystemMessage("The chat log is empty; keeping the sessions in memory.")
	default:
		msg := fmt.Sprintf("Reloaded %d sessions (%d messages) from the chat log.", res.Sessions, res.Turns)
		if res.Skipped > 0 {
			msg += fmt.Sprintf(" Skipped %d malformed rows.", res.Skipped)
		}
		c.io.SystemMessage(msg)
		c.showActive()
	}
	c.docs.Revalidate(ctx)
	c.refreshSessions()
}

// showActive replays the active session.
func (c *Chat) showActive() {
	sess, err := c.store.Get(c.store.Active())
	if err != nil {
		c.io.Error(err.Error())
		return
	}
	c.io.Replay(sess.ID, sess.Turns)
}
