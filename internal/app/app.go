package app

import (
	"strings"

	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/theme"
	"github.com/agent-racer/workspace/internal/views/chat"
	"github.com/agent-racer/workspace/internal/views/messages"
	"github.com/agent-racer/workspace/internal/views/status"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayLog
)

// Session is the part of the session channel the TUI drives.
// *channel.Channel implements it.
type Session interface {
	Start(creds channel.Credentials)
	Stop()
	Send(payload any) error
	Status() channel.Status
	Entries() []channel.Entry
}

// StatusMsg carries a channel status transition.
type StatusMsg struct{ Status channel.Status }

// MessageMsg carries one inbound message.
type MessageMsg struct{ Message channel.Message }

// ErrorMsg carries a transport or send error.
type ErrorMsg struct{ Err error }

type sentMsg struct{}

// Options configures the root model.
type Options struct {
	// Credentials is read on every start so a refreshed session token is
	// picked up on reconnect.
	Credentials func() channel.Credentials
	// AutoStart opens the channel as soon as the program runs.
	AutoStart bool
	// MarkdownStyle is the glamour style for agent replies.
	MarkdownStyle string
}

// Model is the root Bubble Tea model.
type Model struct {
	session Session
	opts    Options

	keys   KeyMap
	width  int
	height int

	overlay Overlay
	input   textinput.Model

	statusBar status.Model
	chat      *chat.Model
	log       messages.Model
}

// New creates the root model.
func New(session Session, opts Options) Model {
	if opts.Credentials == nil {
		opts.Credentials = func() channel.Credentials { return channel.Credentials{} }
	}
	in := textinput.New()
	in.Placeholder = "Message the agent"
	in.Prompt = "> "
	in.Focus()

	c := chat.New(opts.MarkdownStyle)
	return Model{
		session:   session,
		opts:      opts,
		keys:      DefaultKeyMap(),
		input:     in,
		statusBar: status.New(),
		chat:      &c,
		log:       messages.New(),
	}
}

// Bind forwards channel events to send, normally (*tea.Program).Send. The
// returned function unregisters the listeners.
func Bind(ch *channel.Channel, send func(tea.Msg)) func() {
	sl := channel.NewListener(func(s channel.Status) { send(StatusMsg{Status: s}) })
	ml := channel.NewListener(func(msg channel.Message) { send(MessageMsg{Message: msg}) })
	el := channel.NewListener(func(err error) { send(ErrorMsg{Err: err}) })
	ch.AddStatusListener(sl)
	ch.AddMessageListener(ml)
	ch.AddErrorListener(el)
	return func() {
		ch.RemoveStatusListener(sl)
		ch.RemoveMessageListener(ml)
		ch.RemoveErrorListener(el)
	}
}

// Init starts the cursor blink and, if configured, the session.
func (m Model) Init() tea.Cmd {
	if m.opts.AutoStart {
		return tea.Batch(textinput.Blink, m.startCmd())
	}
	return textinput.Blink
}

// Start and Stop may notify listeners on the calling goroutine and the
// listeners feed the program, so both run as commands, never inside Update.
func (m Model) startCmd() tea.Cmd {
	session, creds := m.session, m.opts.Credentials
	return func() tea.Msg {
		session.Start(creds())
		return nil
	}
}

func (m Model) stopCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		session.Stop()
		return nil
	}
}

func (m Model) sendCmd(text string) tea.Cmd {
	session := m.session
	return func() tea.Msg {
		err := session.Send(channel.Action{
			Action: channel.ActionMessage,
			Args:   map[string]any{"content": text},
		})
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return sentMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.chat.Width = msg.Width
		m.chat.Height = msg.Height - 7
		m.input.Width = msg.Width - 4
		m.log.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StatusMsg:
		m.statusBar.Status = msg.Status
		if msg.Status == channel.StatusStarting {
			m.statusBar.Alert = ""
			m.statusBar.AgentState = ""
		}
		m.refresh()
		return m, nil

	case MessageMsg:
		if state, ok := msg.Message.AgentState(); ok {
			m.statusBar.AgentState = state
		}
		if msg.Message.IsSessionExpired() {
			m.statusBar.Alert = "session expired, ctrl+r to reconnect"
		} else if msg.Message.Kind() == channel.KindServerError {
			m.statusBar.Alert = msg.Message.Text()
		}
		m.refresh()
		return m, nil

	case ErrorMsg:
		m.statusBar.Alert = msg.Err.Error()
		return m, nil

	case sentMsg:
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	entries := m.session.Entries()
	m.statusBar.Messages = len(entries)
	m.chat.Entries = entries
	if m.overlay == OverlayLog {
		m.log.SetEntries(entries)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay == OverlayLog {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Log):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.log.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.log.ScrollDown(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Toggle):
		if m.session.Status() == channel.StatusStopped {
			return m, m.startCmd()
		}
		return m, m.stopCmd()

	case key.Matches(msg, m.keys.Reconnect):
		return m, m.startCmd()

	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog
		m.log.SetEntries(m.session.Entries())
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.sendCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayLog {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.log.View(m.width, m.height))
	}

	sections := []string{
		m.statusBar.View(),
		m.chat.View(),
		m.input.View(),
		theme.StyleDimmed.Render("  enter:send  ctrl+s:start/stop  ctrl+r:reconnect  ctrl+l:log  ctrl+c:quit"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
