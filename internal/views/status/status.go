package status

import (
	"fmt"

	"github.com/agent-racer/workspace/internal/channel"
	"github.com/agent-racer/workspace/internal/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Status     channel.Status
	AgentState string
	Messages   int

	// Alert is the latest error worth showing; cleared on the next start.
	Alert string
	Width int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var glyph string
	switch m.Status {
	case channel.StatusStarted:
		glyph = "●"
	case channel.StatusStarting:
		glyph = "◎"
	default:
		glyph = "○"
	}
	connStr := lipgloss.NewStyle().
		Foreground(theme.StatusColor(m.Status.String())).
		Render(glyph + " " + m.Status.String())

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + fmt.Sprintf("%d messages", m.Messages)
	if m.AgentState != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorState).Render("agent: "+m.AgentState)
	}
	if m.Alert != "" {
		content += sep + theme.StyleError.Render(m.Alert)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
