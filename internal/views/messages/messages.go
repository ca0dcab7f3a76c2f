// Package messages renders the channel's message log as a scrollable
// overlay. The log itself is never truncated; only the viewport windows it.
package messages

import (
	"fmt"
	"strings"

	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/theme"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// chrome is the vertical space taken by the title, help line, border and
// padding around the viewport.
const chrome = 8

// Model is the log overlay.
type Model struct {
	entries []channel.Entry
	vp      viewport.Model
	width   int
}

// New creates an empty log overlay.
func New() Model {
	return Model{vp: viewport.New(76, 10)}
}

// Len returns the number of entries shown.
func (m Model) Len() int { return len(m.entries) }

// Offset returns how many lines the view is scrolled up from the newest
// entry.
func (m Model) Offset() int {
	bottom := m.vp.TotalLineCount() - m.vp.Height
	if bottom < 0 {
		bottom = 0
	}
	return bottom - m.vp.YOffset
}

// SetEntries replaces the entries and jumps to the newest one.
func (m *Model) SetEntries(entries []channel.Entry) {
	m.entries = entries
	m.render()
	m.vp.GotoBottom()
}

// SetSize fits the viewport into a width x height overlay.
func (m *Model) SetSize(width, height int) {
	innerW := width - 8
	if innerW < 20 {
		innerW = 20
	}
	h := height - chrome
	if h < 3 {
		h = 3
	}
	atBottom := m.vp.AtBottom()
	m.vp.Width = innerW
	m.vp.Height = h
	if innerW != m.width {
		m.width = innerW
		m.render()
	}
	if atBottom {
		m.vp.GotoBottom()
	}
}

// ScrollUp moves the view n lines towards older entries.
func (m *Model) ScrollUp(n int) {
	m.vp.SetYOffset(m.vp.YOffset - n)
}

// ScrollDown moves the view n lines towards newer entries.
func (m *Model) ScrollDown(n int) {
	m.vp.SetYOffset(m.vp.YOffset + n)
}

func (m *Model) render() {
	if len(m.entries) == 0 {
		m.vp.SetContent(theme.StyleDimmed.Render("No messages exchanged yet."))
		return
	}
	width := m.vp.Width
	lines := make([]string, len(m.entries))
	for i, e := range m.entries {
		lines[i] = line(e, width)
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
}

func line(e channel.Entry, width int) string {
	color := theme.ColorInbound
	if e.Direction == channel.Outbound {
		color = theme.ColorOutbound
	}
	dir := lipgloss.NewStyle().Foreground(color).Width(4).Render(e.Direction.String())
	kind := e.Message.Kind().String()
	tag := lipgloss.NewStyle().Foreground(theme.KindColor(kind)).Width(18).Render(kind)

	body := e.Message.String()
	if room := width - 23; room > 3 && len(body) > room {
		body = body[:room-3] + "..."
	}
	return dir + " " + tag + " " + body
}

// View renders the overlay panel.
func (m Model) View(width, height int) string {
	m.SetSize(width, height)

	title := theme.StyleHeader.Render(" MESSAGE LOG ")
	footer := fmt.Sprintf("j/k:scroll  esc:close  %d messages", len(m.entries))
	if off := m.Offset(); off > 0 {
		footer += fmt.Sprintf("  ↓ %d more", off)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		m.vp.View(),
		"",
		theme.StyleDimmed.Render(footer),
	)
	return lipgloss.NewStyle().
		Width(m.vp.Width+4).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
