package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/hitl"
	"github.com/constellahq/constellation/progress"
	"github.com/constellahq/constellation/session"
)

// chatState is which screen the client is on.
type chatState int

const (
	stateInput     chatState = iota // composing a message
	stateStreaming                  // a turn is in flight
	stateReview                     // a corrected answer awaits approval
	stateEditing                    // editing the answer before approval
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	patientStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#AAAAAA"))
	nurseStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	flagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#50C878"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// transcriptEntry is one committed line of the conversation.
type transcriptEntry struct {
	role         string
	content      string
	wasCorrected bool
}

// streamEventMsg carries one progress event from the turn goroutine.
type streamEventMsg struct {
	ev engine.Event
}

// streamDoneMsg carries the turn's terminal outcome.
type streamDoneMsg struct {
	result *engine.TurnResult
	err    error
}

// Model is the bubbletea model for the chat client.
type Model struct {
	state  chatState
	client *Client
	gate   *hitl.Gate
	store  session.Store
	sess   *session.Session

	input   textinput.Model
	editor  textinput.Model
	spin    spinner.Model
	turn    progress.State
	entries []transcriptEntry
	events  chan tea.Msg
	cancel  context.CancelFunc

	statusMsg string
	width     int
}

// NewModel creates the chat model. store may be nil to disable persistence.
func NewModel(client *Client, gateArmed bool, store session.Store) Model {
	input := textinput.New()
	input.Placeholder = "Describe your symptoms or ask a question..."
	input.CharLimit = 2000
	input.Focus()

	editor := textinput.New()
	editor.Placeholder = "Edit the answer..."
	editor.CharLimit = 4000

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		state:  stateInput,
		client: client,
		gate:   hitl.NewGate(gateArmed),
		store:  store,
		sess: &session.Session{
			ID:          uuid.NewString(),
			Title:       "New conversation",
			HITLEnabled: gateArmed,
			CreatedAt:   time.Now().UTC(),
		},
		input:  input,
		editor: editor,
		spin:   spin,
		turn:   progress.NewState(),
	}
}

// Init is called once when the program starts.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// listen waits for the next message from the turn goroutine.
func listen(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// startTurn launches the streaming request in its own goroutine and begins
// listening for its events.
func (m *Model) startTurn(message string) tea.Cmd {
	history := make([]engine.ChatMessage, 0, len(m.entries))
	for _, e := range m.entries {
		history = append(history, engine.ChatMessage{Role: e.role, Content: e.content})
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	events := make(chan tea.Msg, 64)
	m.events = events

	go func() {
		result, err := m.client.Stream(ctx, engine.Request{Message: message, History: history},
			func(ev engine.Event) { events <- streamEventMsg{ev: ev} })
		events <- streamDoneMsg{result: result, err: err}
	}()

	m.state = stateStreaming
	m.turn = progress.NewState()
	m.statusMsg = ""
	return tea.Batch(listen(events), m.spin.Tick)
}

// Update is called when a message is received.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-8)
		m.editor.Width = max(20, msg.Width-8)
		return m, nil

	case spinner.TickMsg:
		if m.state != stateStreaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamEventMsg:
		m.turn = progress.Reduce(m.turn, msg.ev)
		return m, listen(m.events)

	case streamDoneMsg:
		return m.finishTurn(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit

	case "esc":
		if m.state == stateEditing {
			m.state = stateReview
			m.editor.Blur()
			return m, nil
		}
	}

	switch m.state {
	case stateInput:
		if msg.String() == "enter" {
			message := strings.TrimSpace(m.input.Value())
			if message == "" {
				return m, nil
			}
			m.entries = append(m.entries, transcriptEntry{role: "user", content: message})
			m.input.Reset()
			return m, m.startTurn(message)
		}

	case stateReview:
		switch msg.String() {
		case "y":
			decision, err := m.gate.Approve()
			if err != nil {
				m.statusMsg = err.Error()
				return m, nil
			}
			return m.commit(decision), nil
		case "e":
			pending := m.gate.Pending()
			if pending == nil {
				return m, nil
			}
			m.editor.SetValue(pending.FinalText)
			m.editor.Focus()
			m.state = stateEditing
			return m, textinput.Blink
		case "n":
			decision, err := m.gate.Reject()
			if err != nil {
				m.statusMsg = err.Error()
				return m, nil
			}
			m.statusMsg = "Correction rejected; original draft restored."
			return m.commit(decision), nil
		}
		return m, nil

	case stateEditing:
		if msg.String() == "enter" {
			text := strings.TrimSpace(m.editor.Value())
			if text == "" {
				m.statusMsg = "Answer cannot be empty."
				return m, nil
			}
			decision, err := m.gate.ApproveWithEdit(text)
			if err != nil {
				m.statusMsg = err.Error()
				return m, nil
			}
			m.editor.Blur()
			return m.commit(decision), nil
		}
	}

	return m.updateFocused(msg)
}

// updateFocused routes input to whichever text component is active.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case stateInput:
		m.input, cmd = m.input.Update(msg)
	case stateEditing:
		m.editor, cmd = m.editor.Update(msg)
	}
	return m, cmd
}

// finishTurn offers the completed turn to the approval gate. An unarmed gate
// or an uncorrected answer commits immediately; otherwise the review screen
// takes over.
func (m Model) finishTurn(msg streamDoneMsg) (tea.Model, tea.Cmd) {
	m.cancel = nil
	if msg.err != nil {
		m.state = stateInput
		m.input.Focus()
		m.statusMsg = fmt.Sprintf("Turn failed: %v", msg.err)
		return m, textinput.Blink
	}

	decision, err := m.gate.Offer(hitl.FromTurn(msg.result))
	if err != nil {
		m.state = stateInput
		m.input.Focus()
		m.statusMsg = err.Error()
		return m, textinput.Blink
	}
	if decision != nil {
		return m.commit(*decision), textinput.Blink
	}
	m.state = stateReview
	return m, nil
}

// commit appends the approved answer to the transcript and persists the
// session.
func (m Model) commit(decision hitl.Decision) Model {
	m.entries = append(m.entries, transcriptEntry{
		role:         "assistant",
		content:      decision.FinalText,
		wasCorrected: decision.WasCorrected,
	})
	m.persist(decision)
	m.turn = progress.NewState()
	m.state = stateInput
	m.input.Focus()
	return m
}

func (m *Model) persist(decision hitl.Decision) {
	if m.store == nil {
		return
	}
	now := time.Now().UTC()
	if len(m.sess.Messages) == 0 && len(m.entries) > 1 {
		m.sess.Title = truncate(m.entries[len(m.entries)-2].content, 60)
	}
	if len(m.entries) >= 2 {
		patient := m.entries[len(m.entries)-2]
		m.sess.Messages = append(m.sess.Messages, session.Message{
			Role:      patient.role,
			Content:   patient.content,
			CreatedAt: now,
		})
	}
	m.sess.Messages = append(m.sess.Messages, session.Message{
		Role:         "assistant",
		Content:      decision.FinalText,
		WasCorrected: decision.WasCorrected,
		Audits:       m.turn.AuditorResults,
		CreatedAt:    now,
	})
	m.sess.UpdatedAt = now
	if err := m.store.Save(context.Background(), m.sess); err != nil {
		m.statusMsg = fmt.Sprintf("Failed to save session: %v", err)
	}
}

// View renders the current state to a string.
func (m Model) View() string {
	var sections []string
	sections = append(sections, titleStyle.Render("✦ CONSTELLATION"))

	if transcript := m.renderTranscript(); transcript != "" {
		sections = append(sections, transcript)
	}

	switch m.state {
	case stateInput:
		sections = append(sections, panelStyle.Render(m.input.View()))
		sections = append(sections, dimStyle.Render("Enter → send    Ctrl+C → quit"))
	case stateStreaming:
		sections = append(sections, panelStyle.Render(m.renderBoard()))
	case stateReview:
		sections = append(sections, panelStyle.Render(m.renderReview()))
		sections = append(sections, dimStyle.Render("y → approve    e → edit    n → reject (keep original draft)"))
	case stateEditing:
		sections = append(sections, panelStyle.Render(m.editor.View()))
		sections = append(sections, dimStyle.Render("Enter → approve edited answer    Esc → back"))
	}

	if m.statusMsg != "" {
		sections = append(sections, dimStyle.Render(m.statusMsg))
	}
	return strings.Join(sections, "\n\n")
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return ""
	}
	var lines []string
	for _, e := range m.entries {
		label := nurseStyle.Render("Nurse")
		if e.role == "user" {
			label = patientStyle.Render("Patient")
		}
		line := fmt.Sprintf("%s: %s", label, e.content)
		if e.wasCorrected {
			line += " " + dimStyle.Render("(revised after review)")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderBoard shows the live progress of the in-flight turn.
func (m Model) renderBoard() string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%s Processing...", m.spin.View()))
	lines = append(lines, stepLine("Drafting answer", m.turn.Drafting))

	for _, id := range m.turn.ActiveAuditors {
		status := m.turn.AuditorStates[id]
		line := stepLine(displayName(id)+" review", status)
		if status == progress.StatusComplete {
			if res, ok := m.turn.AuditorResults[id]; ok {
				if res.Safe {
					line += " " + okStyle.Render("approved")
				} else {
					line += " " + flagStyle.Render("flagged")
				}
			}
		}
		lines = append(lines, line)
	}

	lines = append(lines, stepLine("Revising answer", m.turn.Correcting))
	lines = append(lines, stepLine("Finalizing", m.turn.Finalizing))
	return strings.Join(lines, "\n")
}

func (m Model) renderReview() string {
	pending := m.gate.Pending()
	if pending == nil {
		return "Nothing awaiting review."
	}
	var b strings.Builder
	b.WriteString(flagStyle.Render("Reviewers revised this answer. Approve before it is sent."))
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("Original draft:"))
	b.WriteString("\n" + pending.Draft + "\n\n")
	b.WriteString(okStyle.Render("Revised answer:"))
	b.WriteString("\n" + pending.FinalText)
	return b.String()
}

// stepLine renders one step of the progress board.
func stepLine(label string, status progress.StepStatus) string {
	switch status {
	case progress.StatusActive:
		return "● " + label + "..."
	case progress.StatusComplete:
		return okStyle.Render("✓ ") + label
	case progress.StatusSkipped:
		return dimStyle.Render("– " + label + " (skipped)")
	default:
		return dimStyle.Render("○ " + label)
	}
}

// displayName renders an auditor id for the board without needing the
// server-side registry.
func displayName(id auditor.ID) string {
	parts := strings.Split(string(id), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
