package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	graph  lipgloss.Style
	help   lipgloss.Style
	panel  lipgloss.Style
	canvas lipgloss.Style
	err    lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).
			BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(t.Muted),
		label:  lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		value:  lipgloss.NewStyle().Foreground(t.Text),
		graph:  lipgloss.NewStyle().Foreground(t.Accent).Padding(1, 0),
		help:   lipgloss.NewStyle().Foreground(t.Muted).Italic(true).MarginTop(1),
		panel:  lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(t.Muted).Padding(1, 2).Width(64),
		canvas: lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 2),
		err:    lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// phase colors the phase name: green once screwing, amber while waiting
// on contact, red when stopped.
func (t Theme) phase(name string) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch name {
	case "SCREW", "REWIND":
		return s.Foreground(t.Success)
	case "ALIGN", "CHECK_ALIGN":
		return s.Foreground(t.Warning)
	case "INVALID", "":
		return s.Foreground(t.Error)
	default:
		return s.Foreground(t.Primary)
	}
}

// ProgressBar renders fraction in [0, 1] as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
