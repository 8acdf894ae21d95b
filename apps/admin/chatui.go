package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/chatbot"
)

const chatHelp = "/new · /sessions · /load N|ID · /quit · ctrl+c"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

type (
	// controllerMsg is a chatbot.Event delivered to the program.
	controllerMsg   chatbot.Event
	eventsClosedMsg struct{}

	// commandDoneMsg ends a /sessions or /load command.
	commandDoneMsg struct {
		err error
	}
)

// chatModel renders the controller's view and turns input lines into controller commands.
type chatModel struct {
	ctx    context.Context
	ctrl   *chatbot.Controller
	events <-chan chatbot.Event

	input   textinput.Model
	spinner spinner.Model

	snap         chatbot.Snapshot
	sessions     []chat.Session
	showSessions bool
	notice       string
}

func newChatModel(ctx context.Context, ctrl *chatbot.Controller, events <-chan chatbot.Event) chatModel {
	input := textinput.New()
	input.Prompt = "> "
	input.Placeholder = "Ask about attendance, grades, teachers or school events"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return chatModel{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   events,
		input:    input,
		spinner:  sp,
		snap:     ctrl.Snapshot(),
		sessions: ctrl.Sessions(),
	}
}

func waitForEvent(events <-chan chatbot.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return controllerMsg(ev)
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(line)
		}

	case controllerMsg:
		m.snap = msg.Snapshot
		if msg.Kind == chatbot.EventSessionsRefreshed {
			m.sessions = msg.Sessions
		}
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		return m, nil

	case commandDoneMsg:
		if msg.err != nil {
			m.notice = "error: " + msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) submit(line string) (tea.Model, tea.Cmd) {
	name, arg := line, ""
	if i := strings.IndexByte(line, ' '); i > 0 {
		name, arg = line[:i], strings.TrimSpace(line[i+1:])
	}
	m.notice = ""
	ctx, ctrl := m.ctx, m.ctrl

	switch name {
	case "":
		return m, nil
	case "/quit":
		return m, tea.Quit
	case "/new":
		ctrl.NewChat()
		m.snap = ctrl.Snapshot()
		m.showSessions = false
		m.notice = "new conversation"
		return m, nil
	case "/sessions":
		m.showSessions = true
		return m, func() tea.Msg {
			return commandDoneMsg{err: ctrl.RefreshSessions(ctx)}
		}
	case "/load":
		id := sessionArg(m.sessions, arg)
		if id == "" {
			m.notice = "usage: /load N|ID"
			return m, nil
		}
		m.showSessions = false
		return m, func() tea.Msg {
			return commandDoneMsg{err: ctrl.LoadSession(ctx, id)}
		}
	}

	if !ctrl.SendMessage(line) {
		m.notice = "wait for the current answer"
		return m, nil
	}
	m.snap = ctrl.Snapshot()
	return m, nil
}

// sessionArg resolves a 1-based index into `sessions`, or returns `arg` as an ID.
func sessionArg(sessions []chat.Session, arg string) string {
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(sessions) {
			return sessions[n-1].ID
		}
		return ""
	}
	return arg
}

func (m chatModel) title() string {
	if m.snap.SessionID == "" {
		return "new conversation"
	}
	for _, s := range m.sessions {
		if s.ID == m.snap.SessionID {
			return s.Title
		}
	}
	return m.snap.SessionID
}

func (m chatModel) renderMessage(msg chatbot.Message) string {
	if msg.Role == chat.RoleUser {
		return userStyle.Render("you: ") + msg.Content
	}
	label := assistantStyle.Render("mozedu: ")
	switch {
	case msg.IsLoading:
		return label + m.spinner.View() + " a pensar..."
	case msg.IsError:
		return label + errorStyle.Render(msg.Content)
	}
	return label + msg.Content
}

func (m chatModel) renderSessions() string {
	if len(m.sessions) == 0 {
		return statusStyle.Render("(no conversations)") + "\n"
	}
	var b strings.Builder
	for i, s := range m.sessions {
		mark := " "
		if s.ID == m.snap.SessionID {
			mark = "*"
		}
		fmt.Fprintf(&b, "%s %d. %s %s\n", mark, i+1, s.Title,
			statusStyle.Render("["+s.LastMessageAt.Format("2006-01-02 15:04")+"] "+s.ID))
	}
	return b.String()
}

func (m chatModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("mozedu · "+m.title()) + "\n\n")
	if len(m.snap.Messages) == 0 {
		b.WriteString(statusStyle.Render("Type a message to start.") + "\n")
	}
	for _, msg := range m.snap.Messages {
		b.WriteString(m.renderMessage(msg) + "\n")
	}
	if m.showSessions {
		b.WriteString("\n" + m.renderSessions())
	}
	if m.notice != "" {
		b.WriteString("\n" + statusStyle.Render(m.notice) + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	b.WriteString(statusStyle.Render(chatHelp) + "\n")
	return b.String()
}
