package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
)

const maxVisibleRows = 10

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{m.renderTitleBar()}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.status != nil {
		sections = append(sections, m.renderSession(), m.renderBest())
		if m.status.Host != nil {
			sections = append(sections, m.renderHost())
		}
	}

	if m.observations != nil && len(m.observations.Observations) > 0 {
		sections = append(sections, m.renderObservations())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("CODVFS TUNING SESSION")

	refreshInfo := fmt.Sprintf("↻ %s", m.config.RefreshInterval)
	if m.loading {
		refreshInfo = "↻ loading..."
	}
	rightPart := fmt.Sprintf("%s | q:quit r:refresh ↑↓:scroll", refreshInfo)

	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}
	return title + strings.Repeat(" ", spacing) + helpStyle.Render(rightPart)
}

func (m Model) renderSession() string {
	p := m.status.Session

	mode := "efficiency"
	if p.QuickTest {
		mode = "quicktest"
	}
	header := fmt.Sprintf("  %s %s %s",
		stateStyle(p.State).Render(string(p.State)),
		valueStyle.Render(p.App),
		labelStyle.Render(mode),
	)

	total := p.Seeds + p.Iterations
	percent := 0.0
	if total > 0 {
		percent = float64(p.Evaluations) / float64(total) * 100
	}
	bar := renderBar(percent, 30, colorPrimary)
	line := fmt.Sprintf("  %s [%s] %d/%d  %s",
		labelStyle.Render("Progress"), bar, p.Evaluations, total,
		labelStyle.Render(phaseLabel(p.Phase)))

	lines := []string{header, line}
	if p.Error != "" {
		lines = append(lines, errorStyle.Render("  "+p.Error))
	}
	return strings.Join(lines, "\n")
}

func phaseLabel(p tuner.Phase) string {
	switch p {
	case tuner.PhaseSeed:
		return "seeding"
	case tuner.PhaseIterate:
		return "optimizing"
	default:
		return "starting"
	}
}

func (m Model) renderBest() string {
	best := m.status.Session.Best
	if best == nil {
		return labelStyle.Render("  Best: -")
	}
	return fmt.Sprintf("  %s cpu %s  gpu %s  score %s",
		labelStyle.Render("Best:"),
		valueStyle.Render(fmt.Sprintf("%.1f GHz", best.Candidate.CPU)),
		valueStyle.Render(fmt.Sprintf("%d MHz", int(math.Round(best.Candidate.GPU*1000)))),
		bestRowStyle.Render(fmt.Sprintf("%.3f", best.Score)),
	)
}

func (m Model) renderHost() string {
	h := m.status.Host
	cpu := fmt.Sprintf("%s [%s] %5.1f%%", labelStyle.Render("CPU"), renderBar(h.CPU.UsagePercent, 20, loadColor(h.CPU.UsagePercent)), h.CPU.UsagePercent)
	mem := fmt.Sprintf("%s [%s] %5.1f%%", labelStyle.Render("Memory"), renderBar(h.Memory.UsagePercent, 20, loadColor(h.Memory.UsagePercent)), h.Memory.UsagePercent)
	line := fmt.Sprintf("  %s    %s", cpu, mem)
	if h.CPU.CurrentMHz > 0 {
		line += "    " + labelStyle.Render("clock ") + valueStyle.Render(fmt.Sprintf("%.0f MHz", h.CPU.CurrentMHz))
	}
	if h.Memory.PeakSwapBytes > 0 {
		line += "    " + errorStyle.Render(fmt.Sprintf("swapped %.1f MB", float64(h.Memory.PeakSwapBytes)/1024/1024))
	}
	return line
}

func renderBar(percent float64, width int, color lipgloss.Color) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))
	return lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		progressBarEmptyStyle.Render(strings.Repeat("░", width-filled))
}

// visibleRows returns the window of observations to show, newest last.
func (m Model) visibleRows() (rows []storage.Entry, start, end int) {
	all := m.observations.Observations
	end = len(all) - m.tableOffset
	if end < 0 {
		end = 0
	}
	start = max(0, end-maxVisibleRows)
	return all[start:end], start, end
}

func (m Model) renderObservations() string {
	lines := []string{sectionHeaderStyle.Render("  Observations")}

	header := fmt.Sprintf("  %3s │ %-7s │ %5s │ %6s │ %8s │ %8s │ %8s",
		"#", "Phase", "CPU", "GPU", "Gflops", "Power W", "Score")
	lines = append(lines, tableHeaderStyle.Render(header))

	var best *tuner.Observation
	if m.status != nil {
		best = m.status.Session.Best
	}

	rows, start, end := m.visibleRows()
	for i, e := range rows {
		row := fmt.Sprintf("  %3d │ %-7s │ %5.1f │ %6d │ %8s │ %8s │ %8.3f",
			start+i+1, e.Phase, e.Candidate.CPU, e.GPUMHz,
			formatGflops(e.Gflops), formatWatts(e.PowerW), e.Score)
		style := tableCellStyle
		if best != nil && e.Observation == *best {
			style = bestRowStyle
		}
		lines = append(lines, style.Render(row))
	}

	if total := len(m.observations.Observations); total > maxVisibleRows {
		lines = append(lines, helpStyle.Render(fmt.Sprintf("  [%d-%d of %d]", start+1, end, total)))
	}
	return strings.Join(lines, "\n")
}

func formatGflops(v float64) string {
	if v < 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", v)
}

func formatWatts(w *float64) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *w)
}

func (m Model) renderFooter() string {
	if m.lastUpdated.IsZero() {
		return ""
	}
	return helpStyle.Render(fmt.Sprintf("  %s │ Updated: %s", m.config.ServerURL, m.lastUpdated.Format("15:04:05")))
}
