package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mixlab-ai/mixlab/internal/session"
)

// PlainIO implements IO using plain terminal output (fmt.Print / bufio.Scanner).
// It is used when TUI mode is disabled or stdin is not a terminal.
type PlainIO struct {
	scanner *bufio.Scanner
	out     io.Writer
	errW    io.Writer
	tokens  int
}

var _ IO = (*PlainIO)(nil)

// NewPlainIO creates a PlainIO that reads from stdin.
func NewPlainIO() *PlainIO {
	return newPlainIO(os.Stdin, os.Stdout, os.Stderr)
}

func newPlainIO(in io.Reader, out, errW io.Writer) *PlainIO {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s, out: out, errW: errW}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Fprint(p.out, "\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// Plain terminal: the user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Fprintln(p.out) // blank line before model output begins
}

func (p *PlainIO) TextDelta(delta string) {
	fmt.Fprint(p.out, delta)
}

func (p *PlainIO) TextDone(_ string) {
	fmt.Fprintln(p.out)
}

func (p *PlainIO) Confirm(prompt string) bool {
	fmt.Fprintf(p.out, "\n%s [y/N] ", prompt)
	if !p.scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return answer == "y" || answer == "yes"
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Fprintln(p.out, text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(p.errW, "error: %s\n", msg)
}

func (p *PlainIO) SetSessions(_ []session.Summary) {}

func (p *PlainIO) Replay(id string, turns []session.Turn) {
	fmt.Fprintf(p.out, "── %s ──\n", id)
	if len(turns) == 0 {
		fmt.Fprintln(p.out, "(no messages yet)")
		return
	}
	fmt.Fprint(p.out, session.FormatTranscript(turns))
}

func (p *PlainIO) SetTokens(n int) {
	p.tokens = n
}

// truncate shortens s to maxLen runes, appending "..." if cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
