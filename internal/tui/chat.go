// Package tui is a terminal chat client over a loaded document session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/answer"
	"docchat/internal/session"
)

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	youStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	sourceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Model is the Bubble Tea model for the chat loop.
type Model struct {
	session     *session.Session
	input       textinput.Model
	viewport    viewport.Model
	status      string
	showSources bool
	ready       bool
	waiting     bool
}

// answerMsg reports a completed ask so the provider round-trip never blocks
// Update.
type answerMsg struct {
	err error
}

// New creates a chat model over a session that already has a document loaded.
func New(s *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about the document and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	status := "Ready. Type a question. Ctrl+S toggles sources, Ctrl+C quits."
	if stats := s.Stats(); stats != nil {
		status = fmt.Sprintf("%s loaded: %d chunks, %d words. Ctrl+S toggles sources, Ctrl+C quits.",
			stats.Filename, stats.Chunks, stats.Words)
	}
	return Model{session: s, input: ti, viewport: vp, status: status, showSources: true}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered. %d turns so far.", len(m.session.History()))
		}
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + qh + 1 + 1 // header, query box, status, spacer
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyCtrlS:
			m.showSources = !m.showSources
			m.viewport.SetContent(m.renderConversation())
			return m, nil
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			// one question in flight at a time: the session is not
			// safe for concurrent asks
			if q == "" || m.waiting {
				break
			}
			m.input.Reset()
			m.waiting = true
			m.status = "Thinking..."
			return m, m.ask(q)
		case tea.KeyUp:
			m.viewport.LineUp(1)
			return m, nil
		case tea.KeyDown:
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the question off the update loop and delivers the outcome as an
// answerMsg.
func (m Model) ask(query string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.session.Ask(context.Background(), query, 0)
		return answerMsg{err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("docchat")
	conversation := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + conversation + "\n" + input + "\n" + status
}

func (m Model) renderConversation() string {
	history := m.session.History()
	if len(history) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(youStyle.Render("You: ") + turn.Query + "\n")
		b.WriteString(assistantStyle.Render("Assistant: ") + turn.Answer + "\n")
		if m.showSources {
			b.WriteString(sourceStyle.Render(renderSources(turn)) + "\n")
		}
	}
	return b.String()
}

func renderSources(turn answer.Turn) string {
	if len(turn.Sources) == 0 {
		return "(no sources)"
	}
	parts := make([]string, len(turn.Sources))
	for i, c := range turn.Sources {
		parts[i] = fmt.Sprintf("#%d [%d:%d]", c.Ordinal, c.Start, c.End)
	}
	return "sources: " + strings.Join(parts, " ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
