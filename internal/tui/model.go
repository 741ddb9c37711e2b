package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"codechat/internal/app"
	"codechat/internal/chat"
	"codechat/internal/editor"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SessionUpdatedMsg is sent by the host whenever the session manager
// reports a mutation (new delta, completed stream, cleared history).
type SessionUpdatedMsg struct{}

type spinTickMsg time.Time

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model is the chat panel: transcript viewport on top, input below. It
// renders straight from the session manager's state; all chat logic lives
// in internal/chat.
type Model struct {
	app    *app.Application
	editor editor.Editor

	theme    Theme
	markdown *MarkdownRenderer

	input  textarea.Model
	chatVP viewport.Model

	width  int
	height int
	ready  bool

	statusText string
	spinnerPos int
}

func New(application *app.Application, ed editor.Editor) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about this file. Enter sends, Esc cancels."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetHeight(1)
	ta.Prompt = " "
	ta.ShowLineNumbers = false
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()

	theme := NewTheme()
	return &Model{
		app:        application,
		editor:     ed,
		theme:      theme,
		markdown:   NewMarkdownRenderer(theme),
		input:      ta,
		width:      100,
		height:     30,
		statusText: "Ready",
	}
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) spinTick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(t time.Time) tea.Msg {
		return spinTickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		chatHeight := m.height - 6
		if chatHeight < 3 {
			chatHeight = 3
		}
		if !m.ready {
			m.chatVP = viewport.New(m.width-2, chatHeight)
			m.ready = true
		} else {
			m.chatVP.Width = m.width - 2
			m.chatVP.Height = chatHeight
		}
		m.input.SetWidth(m.width - 6)
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.app.Session.CancelAll()
			return m, tea.Quit

		case "esc":
			if m.app.Session.Busy() {
				m.app.Session.CancelAll()
				m.statusText = "Cancelled"
			}
			return m, nil

		case "ctrl+l":
			m.app.Session.Clear()
			m.statusText = "History cleared"
			m.refreshTranscript()
			return m, nil

		case "ctrl+y":
			if seg, ok := m.lastCodeSegment(); ok {
				chat.CopySegment(seg)
				m.statusText = "Code copied"
			} else {
				m.statusText = "No code block to copy"
			}
			return m, nil

		case "ctrl+e":
			if seg, ok := m.lastCodeSegment(); ok {
				if err := chat.ApplySegment(seg, m.editor.ReplaceCode); err != nil {
					m.statusText = "Apply failed: " + err.Error()
				} else {
					m.statusText = "Applied to " + filepath.Base(m.app.Session.ContextID())
				}
			} else {
				m.statusText = "No code block to apply"
			}
			return m, nil

		case "enter":
			request := strings.TrimSpace(m.input.Value())
			if request == "" {
				return m, nil
			}
			m.input.Reset()
			m.app.Submit(m.editor, request)
			m.statusText = "Thinking…"
			m.refreshTranscript()
			m.chatVP.GotoBottom()
			return m, m.spinTick()

		case "up", "pgup":
			m.chatVP.LineUp(3)
			return m, nil
		case "down", "pgdown":
			m.chatVP.LineDown(3)
			return m, nil
		}

	case SessionUpdatedMsg:
		m.refreshTranscript()
		m.chatVP.GotoBottom()
		if !m.app.Session.Busy() && strings.HasPrefix(m.statusText, "Thinking") {
			m.statusText = "Ready"
		}
		return m, nil

	case spinTickMsg:
		if m.app.Session.Busy() {
			m.spinnerPos = (m.spinnerPos + 1) % len(spinnerFrames)
			m.refreshTranscript()
			return m, m.spinTick()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) lastCodeSegment() (chat.Segment, bool) {
	entries := m.app.Session.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		code := chat.CodeSegments(entries[i].Response)
		if len(code) > 0 {
			return code[len(code)-1], true
		}
	}
	return chat.Segment{}, false
}

func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}
	m.chatVP.SetContent(m.renderTranscript())
}

func (m *Model) renderTranscript() string {
	entries := m.app.Session.Entries()
	ids := m.app.Session.IDs()
	if len(entries) == 0 {
		return m.theme.RoleSys.Render("No conversation yet. Ask something about the open file.")
	}

	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.theme.RoleYou.Render("you") + "  " + entry.Prompt + "\n\n")

		header := m.theme.RoleAI.Render("assistant")
		if i < len(ids) && m.app.Session.Loading(ids[i]) {
			header += "  " + m.theme.Spinner.Render(spinnerFrames[m.spinnerPos])
		}
		b.WriteString(header + "\n")

		if entry.Response == "" {
			b.WriteString(m.theme.RoleSys.Render("…") + "\n")
			continue
		}
		for _, seg := range chat.Split(entry.Response) {
			if seg.Kind == chat.SegmentCode {
				b.WriteString(m.markdown.RenderCodeBlock(seg.Value, seg.Language, m.chatVP.Width) + "\n")
				b.WriteString(m.theme.CodeHint.Render("  ctrl+y copy · ctrl+e apply") + "\n")
				continue
			}
			b.WriteString(m.markdown.RenderProse(seg.Value, m.chatVP.Width) + "\n")
		}
	}
	return b.String()
}

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}

	fileName := filepath.Base(m.app.Session.ContextID())
	language := "plain"
	if lang := m.editor.CurrentLanguage(); lang != nil {
		language = lang.Name
	}
	title := fmt.Sprintf("codechat · %s (%s)", fileName, language)
	top := m.theme.TopBar.Render(title)
	if m.app.Session.Busy() {
		top += "  " + m.theme.StatusBusy.Render(spinnerFrames[m.spinnerPos]+" working")
	}

	inputBox := m.theme.InputBoxF.Width(m.width - 4).Render(m.input.View())
	footer := m.theme.Footer.Render(m.statusText + "  ·  enter send · esc cancel · ctrl+l clear · ctrl+y copy code · ctrl+e apply code · ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		m.chatVP.View(),
		inputBox,
		footer,
	)
}
