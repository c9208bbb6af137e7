package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mixlab-ai/mixlab/internal/session"
)

// PipeIO implements IO for non-interactive pipe/CI mode.
// Model text goes to stdout, diagnostics go to stderr.
// Confirm always returns false: nothing destructive runs unattended.
type PipeIO struct {
	format   string    // "text" or "jsonl"
	verbose  bool      // show notices on stderr
	writer   io.Writer // stdout
	errW     io.Writer // stderr
	lastText string
}

var _ IO = (*PipeIO)(nil)

// NewPipeIO creates a PipeIO instance.
func NewPipeIO(format string, verbose bool) *PipeIO {
	if format == "" {
		format = "text"
	}
	return &PipeIO{
		format:  format,
		verbose: verbose,
		writer:  os.Stdout,
		errW:    os.Stderr,
	}
}

func (p *PipeIO) ReadInput() (string, error) { return "", io.EOF }
func (p *PipeIO) UserMessage(_ string)       {}
func (p *PipeIO) ThinkingStart()             {}

func (p *PipeIO) TextDelta(delta string) {
	if p.format == "jsonl" {
		return // jsonl emits full text on TextDone
	}
	fmt.Fprint(p.writer, delta)
}

func (p *PipeIO) TextDone(fullText string) {
	p.lastText = fullText
	if p.format == "jsonl" {
		p.emitJSONL("text", map[string]string{"content": fullText})
		return
	}
	fmt.Fprintln(p.writer) // newline after streaming deltas
}

func (p *PipeIO) Confirm(_ string) bool { return false }

func (p *PipeIO) SystemMessage(text string) {
	if p.format == "jsonl" {
		p.emitJSONL("notice", map[string]string{"text": text})
		return
	}
	if p.verbose {
		fmt.Fprintln(p.errW, text)
	}
}

func (p *PipeIO) Error(msg string) {
	if p.format == "jsonl" {
		p.emitJSONL("error", map[string]string{"message": msg})
	}
	fmt.Fprintf(p.errW, "error: %s\n", msg)
}

func (p *PipeIO) SetSessions(_ []session.Summary)   {}
func (p *PipeIO) Replay(_ string, _ []session.Turn) {}
func (p *PipeIO) SetTokens(_ int)                   {}

// LastText is the most recent complete response.
func (p *PipeIO) LastText() string { return p.lastText }

// emitJSONL writes a JSON line to stdout.
func (p *PipeIO) emitJSONL(eventType string, data any) {
	line, _ := json.Marshal(map[string]any{
		"type":      eventType,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
	fmt.Fprintln(p.writer, string(line))
}
