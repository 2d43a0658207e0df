package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchStatus(m.config),
		fetchObservations(m.config),
		tick(m.config.RefreshInterval),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statusMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = msg.data
		m.lastUpdated = time.Now()
		return m, nil

	case observationsMsg:
		if msg.err != nil {
			if m.err == nil {
				m.err = msg.err
			}
			return m, nil
		}
		m.observations = msg.data
		m.clampOffset()
		return m, nil

	case tickMsg:
		m.loading = true
		return m, tea.Batch(
			fetchStatus(m.config),
			fetchObservations(m.config),
			tick(m.config.RefreshInterval),
		)
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		m.loading = true
		return m, tea.Batch(
			fetchStatus(m.config),
			fetchObservations(m.config),
		)

	case "up", "k":
		m.tableOffset++
		m.clampOffset()
		return m, nil

	case "down", "j":
		if m.tableOffset > 0 {
			m.tableOffset--
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) clampOffset() {
	limit := 0
	if m.observations != nil {
		limit = len(m.observations.Observations) - maxVisibleRows
	}
	if limit < 0 {
		limit = 0
	}
	if m.tableOffset > limit {
		m.tableOffset = limit
	}
}
