package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/codvfs/internal/session"
)

var (
	colorPrimary   = lipgloss.Color("86")  // cyan
	colorSecondary = lipgloss.Color("240") // gray
	colorSuccess   = lipgloss.Color("82")  // green
	colorWarning   = lipgloss.Color("214") // orange
	colorDanger    = lipgloss.Color("196") // red
	colorMuted     = lipgloss.Color("245")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary)

	progressBarEmptyStyle = lipgloss.NewStyle().
				Foreground(colorSecondary)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				BorderBottom(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(colorSecondary)

	tableCellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	bestRowStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)
)

// loadColor colors host load bars.
func loadColor(percent float64) lipgloss.Color {
	switch {
	case percent >= 90:
		return colorDanger
	case percent >= 70:
		return colorWarning
	default:
		return colorSuccess
	}
}

func stateStyle(s session.State) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch s {
	case session.StateRunning:
		return base.Foreground(lipgloss.Color("0")).Background(colorPrimary)
	case session.StateFinished:
		return base.Foreground(lipgloss.Color("0")).Background(colorSuccess)
	case session.StateFailed:
		return base.Foreground(lipgloss.Color("15")).Background(colorDanger)
	default:
		return base.Foreground(colorMuted)
	}
}
