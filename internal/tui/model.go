package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nilebyte/site/backend/internal/events"
	"github.com/nilebyte/site/backend/internal/model/assistant"
	"github.com/nilebyte/site/backend/internal/model/chat"
	"github.com/nilebyte/site/backend/internal/service/visibility"
	"github.com/nilebyte/site/backend/internal/service/widget"
)

// chrome is the number of lines taken by header, typing line, input, help
// bar and panel borders.
const chrome = 8

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// sendDoneMsg arrives when a submitted message has its reply appended.
type sendDoneMsg struct{}

// Model is the root Bubble Tea model: one chat widget in the terminal.
type Model struct {
	ctx      context.Context
	widget   *widget.Widget
	profile  assistant.Profile
	eventSub <-chan events.Event

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width    int
	height   int
	status   string
	quitting bool
}

// New creates the terminal model for w. sub should carry w's events.
func New(ctx context.Context, w *widget.Widget, profile assistant.Profile, sub <-chan events.Event) Model {
	ti := textinput.New()
	ti.Placeholder = profile.Placeholder
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleTyping

	return Model{
		ctx:      ctx,
		widget:   w,
		profile:  profile,
		eventSub: sub,
		viewport: viewport.New(0, 0),
		input:    ti,
		spinner:  sp,
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.eventSub), textinput.Blink, m.spinner.Tick)
}

// waitForEvent returns a command that waits for the next widget event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil
		}
		return event
	}
}

func (m Model) submit() tea.Cmd {
	w, ctx := m.widget, m.ctx
	return func() tea.Msg {
		w.Submit(ctx)
		return sendDoneMsg{}
	}
}

// canSend mirrors the disabled state of the send control.
func (m Model) canSend() bool {
	return strings.TrimSpace(m.input.Value()) != "" && m.widget.Phase() != widget.Sending
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sendDoneMsg:
		m.refresh()

	case events.Event:
		m.refresh()
		return m, waitForEvent(m.eventSub)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case KeyToggle:
		m.widget.Toggle()
		m.refresh()
		return m, nil

	case KeyClose:
		m.widget.Close()
		m.refresh()
		return m, nil

	case KeyCopy:
		m.status = m.copyLastReply()
		return m, nil
	}

	if !m.widget.IsOpen() {
		if msg.String() == KeyEnter {
			m.widget.Open("")
			m.refresh()
		}
		return m, nil
	}

	switch msg.String() {
	case KeyEnter:
		if !m.canSend() {
			return m, nil
		}
		m.widget.SetInput(m.input.Value())
		m.input.SetValue("")
		return m, m.submit()

	case KeyUp, KeyDown, KeyPageUp, KeyPageDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.widget.SetInput(m.input.Value())
	return m, cmd
}

func (m *Model) computeLayout() {
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = max(m.height-chrome, 3)
	m.input.Width = max(m.width-8, 10)
}

// copyLastReply puts the newest bot message on the system clipboard and
// returns a status line.
func (m Model) copyLastReply() string {
	messages := m.widget.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != chat.RoleBot {
			continue
		}
		if err := writeClipboard(messages[i].Text); err != nil {
			return "clipboard unavailable"
		}
		return "reply copied"
	}
	return ""
}

// refresh re-renders the message log into the viewport.
func (m *Model) refresh() {
	messages := m.widget.Messages()
	rendered := make([]string, 0, len(messages))
	for _, msg := range messages {
		rendered = append(rendered, RenderMessage(msg, m.viewport.Width))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n\n"))
	m.viewport.GotoBottom()
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	state := m.widget.Visibility()
	if state == visibility.Closed {
		launcher := StyleLauncher.Render("💬 Chat with " + m.profile.Name)
		return lipgloss.JoinVertical(lipgloss.Left, launcher, HelpView(false))
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		StyleTitle.Render(m.profile.Name),
		StyleOnline.Render("●"),
		StyleSubtitle.Render(m.profile.Title),
	)

	typing := StyleTyping.Render(m.status)
	if m.widget.Phase() == widget.Sending {
		typing = m.spinner.View() + StyleTyping.Render(" typing")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		typing,
		m.input.View(),
	)

	panel := StylePanel
	if state != visibility.Open {
		panel = StylePanelFaded
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		panel.Width(m.width-2).Render(body),
		HelpView(true),
	)
}
