package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/botradar/internal/domain"
)

var (
	ColorPrimary    = lipgloss.Color("#00ff41")
	ColorPrimaryDim = lipgloss.Color("#00aa2a")
	ColorAmber      = lipgloss.Color("#ffb000")
	ColorRed        = lipgloss.Color("#ff3333")
	ColorMuted      = lipgloss.Color("#707070")
	ColorDim        = lipgloss.Color("#404040")
)

var (
	TextPrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	TextAmber   = lipgloss.NewStyle().Foreground(ColorAmber)
	TextRed     = lipgloss.NewStyle().Foreground(ColorRed)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	TextDim     = lipgloss.NewStyle().Foreground(ColorDim)
	TextKey     = lipgloss.NewStyle().Foreground(ColorPrimaryDim)
)

// ForClass returns the style used to highlight a classification.
func ForClass(class domain.ActorClass) lipgloss.Style {
	switch class {
	case domain.ActorClassBad:
		return TextRed.Bold(true)
	case domain.ActorClassSuspicious:
		return TextAmber.Bold(true)
	default:
		return TextPrimary
	}
}
