// Package theme provides the Lip Gloss color palette and reusable styles
// for the workspace TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection status colors.
var (
	ColorStopped  = lipgloss.Color("#6b7280")
	ColorStarting = lipgloss.Color("#7c3aed")
	ColorStarted  = lipgloss.Color("#16a34a")
)

// Message direction and kind colors.
var (
	ColorOutbound = lipgloss.Color("#2563eb")
	ColorInbound  = lipgloss.Color("#06b6d4")
	ColorState    = lipgloss.Color("#d97706")
	ColorToken    = lipgloss.Color("#a855f7")
	ColorErrored  = lipgloss.Color("#dc2626")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// Reusable styles.
var (
	StyleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDimmed)
	StyleError  = lipgloss.NewStyle().Foreground(ColorDanger)
	StyleUser   = lipgloss.NewStyle().Bold(true).Foreground(ColorOutbound)
	StyleAgent  = lipgloss.NewStyle().Bold(true).Foreground(ColorInbound)
)

// StatusColor returns the color for a channel status name.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "STARTED":
		return ColorStarted
	case "STARTING":
		return ColorStarting
	default:
		return ColorStopped
	}
}

// KindColor returns the color for a message kind name.
func KindColor(kind string) lipgloss.Color {
	switch kind {
	case "server_error", "observation_error":
		return ColorErrored
	case "state_change":
		return ColorState
	case "token":
		return ColorToken
	default:
		return ColorDimmed
	}
}
