// Package tui implements the interactive chat surface for a loaded contract,
// started by `lexqa chat`.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/session"
)

// Asker is the TUI-facing subset of the session manager.
type Asker interface {
	Ask(ctx context.Context, sess *session.Session, question string) (*agent.Answer, error)
}

// turn is one completed question/answer exchange.
type turn struct {
	question string
	answer   *agent.Answer
	err      error
}

// answerMsg delivers a finished answer back to the update loop.
type answerMsg struct {
	question string
	answer   *agent.Answer
	err      error
}

// Model is the Bubble Tea model for the contract chat.
type Model struct {
	asker    Asker
	sess     *session.Session
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	status   string
	busy     bool
	evidence bool
	ready    bool
}

// New creates a chat model bound to one open session.
func New(asker Asker, sess *session.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the contract and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		asker:    asker,
		sess:     sess,
		input:    ti,
		viewport: vp,
		status:   "Contract loaded. Ctrl+E toggles evidence, Ctrl+C quits.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, input frame, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil

	case answerMsg:
		m.busy = false
		m.turns = append(m.turns, turn(msg))
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Answered from %d clauses. Ctrl+E toggles evidence.", len(msg.answer.Chunks))
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Thinking..."
				m.input.SetValue("")
				return m, m.askCmd(q)
			}
		case "ctrl+e":
			m.evidence = !m.evidence
			m.viewport.SetContent(m.renderTranscript())
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// askCmd runs the question off the update loop; answers can take a full
// tool-calling round trip.
func (m Model) askCmd(question string) tea.Cmd {
	return func() tea.Msg {
		ans, err := m.asker.Ask(context.Background(), m.sess, question)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("LexQA")
	summary := summaryStyle.Render(fmt.Sprintf("%s — %d clauses", m.sess.Source, m.sess.ChunkCount()))
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.question))
		b.WriteString("\n\n")
		if t.err != nil {
			b.WriteString(errorStyle.Render(t.err.Error()))
			continue
		}
		b.WriteString(t.answer.Rendered)
		if m.evidence {
			b.WriteString("\n\n")
			b.WriteString(m.renderEvidence(t.answer))
		}
	}
	return b.String()
}

// renderEvidence lists the retrieved clauses behind one answer.
func (m Model) renderEvidence(ans *agent.Answer) string {
	var b strings.Builder
	b.WriteString(evidenceHeaderStyle.Render(fmt.Sprintf("Evidence (%d clauses)", len(ans.Chunks))))
	for _, c := range ans.Chunks {
		label := c.ID
		if c.Heading != "" {
			label = c.Heading
		}
		b.WriteString(fmt.Sprintf("\n%s  score=%.3f\n", evidenceLabelStyle.Render(label), c.Score))
		b.WriteString(strings.TrimSpace(c.Text))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	summaryStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	evidenceHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	evidenceLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
