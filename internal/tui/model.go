// Package tui is the interactive chat client.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finance-rag-be/internal/apiclient"
	"finance-rag-be/internal/dto"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Asker is the part of the API client the chat screen needs.
type Asker interface {
	Ask(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error)
	Upload(ctx context.Context, path, query, sessionID string) (*dto.ChatResponse, error)
}

type entry struct {
	role string // "you", "assistant", "error"
	text string
}

type answerMsg struct {
	res *dto.ChatResponse
	err error
}

// Model is the Bubble Tea model of the chat screen. Typing "/doc <path>"
// attaches a CSV to the next question.
type Model struct {
	client    Asker
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	history   []entry
	sessionID string
	document  string
	waiting   bool
	ready     bool
	status    string
}

func New(client Asker, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a finance question, /doc <file.csv> to attach, Ctrl+C to quit"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		client:    client,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		sessionID: sessionID,
		status:    "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		m.viewport.Width = maxInt(20, msg.Width-2)
		m.viewport.Height = maxInt(3, msg.Height-fh-ih-4)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter && !m.waiting {
			return m.submit()
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.history = append(m.history, entry{role: "error", text: describeError(msg.err)})
			m.status = "Request failed."
		} else {
			m.sessionID = msg.res.SessionID
			m.history = append(m.history, entry{role: "assistant", text: msg.res.Answer})
			m.status = fmt.Sprintf("%s · %d tool call(s) · %dms", msg.res.Route, len(msg.res.ToolCalls), msg.res.DurationMs)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m, nil
	}

	if path, ok := strings.CutPrefix(text, "/doc "); ok {
		m.document = strings.TrimSpace(path)
		m.status = "Attached " + m.document + " to the next question."
		return m, nil
	}

	m.history = append(m.history, entry{role: "you", text: text})
	m.waiting = true
	m.status = "Thinking..."
	m.refresh()

	doc := m.document
	m.document = ""
	return m, tea.Batch(m.spinner.Tick, m.ask(text, doc))
}

func (m Model) ask(query, doc string) tea.Cmd {
	client, sessionID := m.client, m.sessionID
	return func() tea.Msg {
		ctx := context.Background()
		if doc != "" {
			res, err := client.Upload(ctx, doc, query, sessionID)
			return answerMsg{res: res, err: err}
		}
		res, err := client.Ask(ctx, dto.ChatRequest{Query: query, SessionID: sessionID})
		return answerMsg{res: res, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Finance RAG")
	if m.sessionID != "" {
		header += " " + mutedStyle.Render("session "+m.sessionID)
	}
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	width := maxInt(20, m.viewport.Width-2)
	var b strings.Builder
	for i, e := range m.history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.role {
		case "you":
			b.WriteString(userStyle.Render("you"))
		case "assistant":
			b.WriteString(assistantStyle.Render("assistant"))
		default:
			b.WriteString(errorStyle.Render("error"))
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
	}
	return b.String()
}

func describeError(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		if apiErr.PartialAnswer != "" {
			msg += "\n\nPartial answer:\n" + apiErr.PartialAnswer
		}
		if apiErr.Retryable {
			msg += "\n(retryable)"
		}
		return msg
	}
	return err.Error()
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle      = lipgloss.NewStyle().Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
