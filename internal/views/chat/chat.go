// Package chat renders the conversation transcript of a session: user
// messages, agent replies as markdown, and error frames.
package chat

import (
	"strings"

	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/theme"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the transcript and a markdown renderer cached per width.
type Model struct {
	Entries []channel.Entry
	Width   int
	Height  int

	style         string
	renderer      *glamour.TermRenderer
	rendererWidth int
}

// New creates a chat model. style is a glamour standard style name such as
// "dark" or "notty".
func New(style string) Model {
	if style == "" {
		style = "dark"
	}
	return Model{style: style}
}

func (m *Model) markdown(width int) *glamour.TermRenderer {
	if m.renderer != nil && m.rendererWidth == width {
		return m.renderer
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return nil
	}
	m.renderer = r
	m.rendererWidth = width
	return r
}

func (m *Model) render(text string, width int) string {
	r := m.markdown(width)
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// View renders the tail of the transcript that fits into Height lines.
func (m *Model) View() string {
	width := m.Width - 2
	if width < 20 {
		width = 20
	}

	var blocks []string
	for _, e := range m.Entries {
		if b := m.block(e, width); b != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return theme.StyleDimmed.Render("  Press ctrl+s to start a session, then type a message.")
	}

	lines := strings.Split(strings.Join(blocks, "\n"), "\n")
	if m.Height > 0 && len(lines) > m.Height {
		lines = lines[len(lines)-m.Height:]
	}
	return strings.Join(lines, "\n")
}

func (m *Model) block(e channel.Entry, width int) string {
	msg := e.Message
	switch msg.Kind() {
	case channel.KindServerError, channel.KindObservationError:
		return theme.StyleError.Render("error: " + msg.Text())
	case channel.KindStateChange:
		state, _ := msg.AgentState()
		return theme.StyleDimmed.Render("agent is " + state)
	case channel.KindToken:
		return theme.StyleDimmed.Render("session token issued")
	}

	text := msg.Text()
	if text == "" {
		return ""
	}
	if e.Direction == channel.Outbound {
		if msg["action"] != channel.ActionMessage {
			return ""
		}
		return theme.StyleUser.Render("you") + "\n" + lipgloss.NewStyle().Width(width).Render(text)
	}
	return theme.StyleAgent.Render("agent") + "\n" + m.render(text, width)
}
