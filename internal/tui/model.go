package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mixlab-ai/mixlab/internal/session"
)

// ---------- messages sent from the chat goroutine via program.Send() ----------

type readInputMsg struct{}

type inputResult struct {
	text string
	err  error
}

type userMsg struct{ text string }
type thinkingStartMsg struct{}
type textDeltaMsg struct{ delta string }
type textDoneMsg struct{ fullText string }
type confirmMsg struct {
	prompt  string
	replyCh chan bool
}
type systemMsg struct{ text string }
type errorMsg struct{ text string }
type tokensMsg struct{ n int }
type sessionsMsg struct{ list []session.Summary }
type replayMsg struct {
	id    string
	turns []session.Turn
}
type chatDoneMsg struct{ err error }

// TUIConfig carries brand/provider info for the welcome page and status bar.
type TUIConfig struct {
	Brand       string
	Version     string
	Provider    string
	Model       string
	Documents   int
	LogBackend  string
	ShowWelcome bool
}

// ---------- styles ----------

var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dotRunningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	replayHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("63")).
				Bold(true)

	// Session strip
	sessionActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	sessionIdleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	// Status bar
	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238"))

	statusBarBgStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235"))

	statusModelStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("235")).
				Foreground(lipgloss.Color("2")).
				Bold(true)

	// Welcome box
	welcomeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("8")).
				Padding(0, 1)

	welcomeTitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("2")).
				Bold(true)

	welcomeLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))

	welcomeValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	welcomeHintStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	// Confirm: rounded red border, destructive actions only
	confirmBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(0, 1)

	confirmHintStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("237")).
				Foreground(lipgloss.Color("203")).
				Padding(0, 2).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("238"))
)

var mixSpinner = spinner.Spinner{
	Frames: []string{"·", "✢", "✳", "✶", "✻", "✽", "✻", "✶", "✳", "✢"},
	FPS:    120 * time.Millisecond,
}

// ---------- Model ----------

// Model is the bubbletea model managing the full TUI state.
type Model struct {
	textinput   textinput.Model
	spinner     spinner.Model
	width       int
	height      int
	liveContent *strings.Builder
	streaming   bool
	thinking    bool
	inputMode   bool

	confirming bool
	confirmCh  chan bool

	slashItems []SlashMenuItem
	slashSel   int

	inputCh chan inputResult

	noiseDropCount int

	quitting bool

	tokens   int
	sessions []session.Summary

	cancelTurnFn func() bool

	cfg TUIConfig
	now func() time.Time

	mdRenderer      *glamour.TermRenderer
	mdRendererWidth int
}

// NewModel creates the initial bubbletea model.
func NewModel(inputCh chan inputResult, cfg TUIConfig) Model {
	ti := textinput.New()
	ti.Prompt = "❯ "
	ti.CharLimit = 8192

	sp := spinner.New()
	sp.Spinner = mixSpinner
	sp.Style = spinnerStyle

	return Model{
		textinput:   ti,
		spinner:     sp,
		liveContent: &strings.Builder{},
		inputCh:     inputCh,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	if m.cfg.ShowWelcome {
		return tea.Println(renderWelcome(m.cfg))
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = m.width - 4

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.KeyMsg:
		s := msg.String()
		if isTerminalNoiseKey(s) {
			m.noiseDropCount = 4
			return m, nil
		}
		if m.noiseDropCount > 0 && len(s) <= 2 {
			m.noiseDropCount--
			return m, nil
		}
		switch s {
		case "ctrl+c":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- false
				m.confirming = false
				m.confirmCh = nil
				return m, tea.Println(systemStyle.Render("  [cancelled]"))
			}
			if m.inputMode {
				m.inputCh <- inputResult{err: fmt.Errorf("interrupted")}
				m.inputMode = false
				m.textinput.Blur()
			}
			m.quitting = true
			return m, tea.Quit
		case "y", "Y":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- true
				m.confirming = false
				m.confirmCh = nil
				return m, nil
			}
		case "n", "N", "enter":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- false
				m.confirming = false
				m.confirmCh = nil
				return m, tea.Println(systemStyle.Render("  [cancelled]"))
			}
			if s == "enter" && m.inputMode {
				text := strings.TrimSpace(m.textinput.Value())
				if len(m.slashItems) > 0 && !strings.Contains(text, " ") {
					text = m.slashItems[m.slashSel].Name
				}
				m.textinput.SetValue("")
				m.slashItems = nil
				m.inputCh <- inputResult{text: text}
				m.inputMode = false
				m.textinput.Blur()
				return m, nil
			}
		case "tab":
			if m.inputMode && len(m.slashItems) > 0 {
				m.textinput.SetValue(m.slashItems[m.slashSel].Name + " ")
				m.textinput.CursorEnd()
				m.slashItems = nil
				return m, nil
			}
		case "up":
			if len(m.slashItems) > 0 && m.slashSel > 0 {
				m.slashSel--
				return m, nil
			}
		case "down":
			if len(m.slashItems) > 0 && m.slashSel < len(m.slashItems)-1 {
				m.slashSel++
				return m, nil
			}
		case "esc":
			if m.confirming && m.confirmCh != nil {
				m.confirmCh <- false
				m.confirming = false
				m.confirmCh = nil
				return m, tea.Println(systemStyle.Render("  [cancelled]"))
			}
			if len(m.slashItems) > 0 {
				m.slashItems = nil
				return m, nil
			}
			if (m.thinking || m.streaming) && m.cancelTurnFn != nil {
				m.cancelTurnFn()
				m.thinking = false
				m.streaming = false
				m.liveContent.Reset()
				return m, tea.Println(systemStyle.Render("  [interrupted]"))
			}
			return m, nil
		}

		if m.inputMode && !m.confirming {
			if isControlKeyMsg(s) {
				return m, nil
			}
			var cmd tea.Cmd
			m.textinput, cmd = m.textinput.Update(msg)
			cmds = append(cmds, cmd)
			m.updateSlashMenu()
		}

	// ---------- custom messages from the chat goroutine ----------

	case readInputMsg:
		m.inputMode = true
		m.textinput.Focus()

	case userMsg:
		cmds = append(cmds, tea.Println(userStyle.Render("You: "+msg.text)))

	case thinkingStartMsg:
		m.thinking = true
		m.streaming = false
		cmds = append(cmds, m.spinner.Tick)

	case textDeltaMsg:
		m.thinking = false
		m.streaming = true
		m.liveContent.WriteString(msg.delta)

	case textDoneMsg:
		m.thinking = false
		m.streaming = false
		m.liveContent.Reset()
		if strings.TrimSpace(msg.fullText) != "" {
			cmds = append(cmds, tea.Println(m.renderMarkdown(msg.fullText)))
		}

	case confirmMsg:
		m.confirming = true
		m.confirmCh = msg.replyCh
		m.thinking = false
		cmds = append(cmds, tea.Println(confirmBorderStyle.Render(msg.prompt)))

	case systemMsg:
		cmds = append(cmds, tea.Println(systemStyle.Render(msg.text)))

	case errorMsg:
		cmds = append(cmds, tea.Println(errorStyle.Render("Error: "+msg.text)))

	case tokensMsg:
		m.tokens = msg.n

	case sessionsMsg:
		m.sessions = msg.list

	case replayMsg:
		cmds = append(cmds, tea.Println(m.renderReplay(msg.id, msg.turns)))

	case chatDoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, tea.Batch(cmds...)
}

// updateSlashMenu recomputes the autocomplete menu from the current input.
func (m *Model) updateSlashMenu() {
	v := m.textinput.Value()
	if !strings.HasPrefix(v, "/") || strings.Contains(v, " ") {
		m.slashItems = nil
		m.slashSel = 0
		return
	}
	m.slashItems = filterSlashItems(BuiltinSlashCommands(), v)
	if m.slashSel >= len(m.slashItems) {
		m.slashSel = 0
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var live string
	switch {
	case m.thinking:
		live = dotRunningStyle.Render(m.spinner.View()) + hintStyle.Render(" Thinking…  esc to interrupt")
	case m.streaming:
		live = m.liveContent.String()
	}

	var input string
	switch {
	case m.confirming:
		input = confirmHintStyle.Render("y confirm  n/esc cancel")
	case m.inputMode:
		input = m.textinput.View()
	default:
		input = systemStyle.Render("❯")
	}

	var parts []string
	if live != "" {
		parts = append(parts, live)
	}
	parts = append(parts, input)
	if menu := renderSlashMenu(m.slashItems, m.slashSel, m.width); menu != "" {
		parts = append(parts, menu)
	}
	parts = append(parts, m.renderStatusBar())
	return strings.Join(parts, "\n")
}

// renderStatusBar renders the bottom separator, the session strip and the
// model/tokens bar.
func (m *Model) renderStatusBar() string {
	modelName := m.cfg.Model
	if modelName == "" {
		modelName = "unknown"
	}
	status := statusModelStyle.Render(" "+modelName) +
		statusBarStyle.Render(fmt.Sprintf(" │ tokens: %d", m.tokens))
	if m.cfg.Documents > 0 {
		status += statusBarStyle.Render(fmt.Sprintf(" │ docs: %d", m.cfg.Documents))
	}
	if m.cfg.LogBackend != "" {
		status += statusBarStyle.Render(" │ log: " + m.cfg.LogBackend)
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	return separatorStyle.Width(width).Render(strings.Repeat("─", width)) + "\n" +
		renderSessionStrip(m.sessions, width, m.now()) + "\n" +
		statusBarBgStyle.Width(width).Render(status)
}

// renderSessionStrip lays the resident sessions out on one line, most recent
// first, marking the active one. Entries that do not fit are counted.
func renderSessionStrip(list []session.Summary, width int, now time.Time) string {
	if len(list) == 0 {
		return ""
	}
	var (
		out    []string
		used   int
		hidden int
	)
	for i := len(list) - 1; i >= 0; i-- {
		s := list[i]
		label := fmt.Sprintf("%s · %s", truncate(s.Title, 24), humanize.RelTime(s.UpdatedAt, now, "ago", "from now"))
		style := sessionIdleStyle
		if s.Active {
			label = "● " + label
			style = sessionActiveStyle
		}
		w := lipgloss.Width(label) + 3
		if used+w > width && len(out) > 0 {
			hidden = i + 1
			break
		}
		out = append(out, style.Render(label))
		used += w
	}
	line := strings.Join(out, sessionIdleStyle.Render(" │ "))
	if hidden > 0 {
		line += sessionIdleStyle.Render(fmt.Sprintf(" │ +%d", hidden))
	}
	return line
}

// renderReplay renders a session's turns when it becomes active.
func (m *Model) renderReplay(id string, turns []session.Turn) string {
	var sb strings.Builder
	sb.WriteString(replayHeaderStyle.Render("── " + id + " ──"))
	if len(turns) == 0 {
		sb.WriteString("\n" + hintStyle.Render("(no messages yet)"))
		return sb.String()
	}
	for _, t := range turns {
		sb.WriteString("\n")
		if t.Role == session.RoleUser {
			sb.WriteString(userStyle.Render("You: " + t.Content))
			continue
		}
		sb.WriteString(m.renderMarkdown(t.Content))
	}
	return sb.String()
}

// ---------- markdown rendering ----------

func (m *Model) getMarkdownRenderer() *glamour.TermRenderer {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrapWidth := width - 4
	if m.mdRenderer != nil && m.mdRendererWidth == wrapWidth {
		return m.mdRenderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrapWidth),
	)
	if err != nil {
		return nil
	}
	m.mdRenderer = r
	m.mdRendererWidth = wrapWidth
	return r
}

func (m *Model) renderMarkdown(text string) string {
	r := m.getMarkdownRenderer()
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(rendered, "\n")
}

// ---------- welcome page ----------

func renderWelcome(cfg TUIConfig) string {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	brand := cfg.Brand
	if brand == "" {
		brand = "mixlab"
	}

	lines := []string{
		welcomeLabelStyle.Render("Provider:  ") + welcomeValueStyle.Render(cfg.Provider),
		welcomeLabelStyle.Render("Model:     ") + welcomeValueStyle.Render(cfg.Model),
		welcomeLabelStyle.Render("Documents: ") + welcomeValueStyle.Render(fmt.Sprint(cfg.Documents)),
		welcomeLabelStyle.Render("Chat log:  ") + welcomeValueStyle.Render(cfg.LogBackend),
		"",
		welcomeHintStyle.Render("/help commands  /new session  /sessions list  /switch <n>"),
	}

	title := welcomeTitleStyle.Render(fmt.Sprintf("%s %s", brand, version))
	return title + "\n" + welcomeBorderStyle.Render(strings.Join(lines, "\n"))
}

// ---------- key event helpers ----------

func isTerminalNoiseKey(s string) bool {
	if strings.Contains(s, ";rgb:") || strings.HasPrefix(s, "]") || strings.HasPrefix(s, "alt+]") {
		return true
	}
	if (strings.HasSuffix(s, "M") || strings.HasSuffix(s, "m")) && strings.Contains(s, ";") {
		return true
	}
	if strings.HasPrefix(s, "[<") || strings.HasPrefix(s, "alt+[<") {
		return true
	}
	if strings.HasPrefix(s, "[?") || strings.HasPrefix(s, "alt+[?") {
		return true
	}
	if len(s) > 1 && s[0] == '[' && s[1] >= '0' && s[1] <= '9' {
		return true
	}
	return false
}

func isControlKeyMsg(s string) bool {
	for _, r := range s {
		if r == '\x1b' || (r < 0x20 && r != '\t' && r != '\n' && r != '\r') {
			return true
		}
	}
	return false
}
