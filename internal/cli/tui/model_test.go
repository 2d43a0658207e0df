package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/server"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
)

func observations(n int) *server.ObservationsResponse {
	resp := &server.ObservationsResponse{Total: n}
	for i := 0; i < n; i++ {
		resp.Observations = append(resp.Observations, storage.Entry{
			Phase:       tuner.PhaseIterate,
			Index:       i,
			Observation: tuner.Observation{Candidate: tuner.Candidate{CPU: 1.5, GPU: 1.0}, Score: float64(i)},
			GPUMHz:      1000,
			Gflops:      900,
			PowerW:      storage.Watts(450),
		})
	}
	return resp
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func TestUpdate_StatusAndObservations(t *testing.T) {
	m := sized(NewModel(Config{ServerURL: "http://localhost:9470"}))

	best := tuner.Observation{Candidate: tuner.Candidate{CPU: 1.8, GPU: 1.2}, Score: 4.25}
	status := &server.StatusResponse{
		Session: session.Progress{App: "hplai", State: session.StateRunning, Phase: tuner.PhaseSeed, Seeds: 4, Iterations: 6, Evaluations: 2, Best: &best},
		Host: &monitor.SystemState{
			CPU:    monitor.CPUState{UsagePercent: 75},
			Memory: monitor.MemoryState{UsagePercent: 90, PeakSwapBytes: 2 * 1024 * 1024},
		},
	}
	next, _ := m.Update(statusMsg{data: status})
	m = next.(Model)
	next, _ = m.Update(observationsMsg{data: observations(2)})
	m = next.(Model)

	if m.loading {
		t.Error("loading should clear after a status reply")
	}
	view := m.View()
	for _, want := range []string{"hplai", "running", "2/10", "seeding", "4.250", "1200 MHz", "swapped 2.0 MB", "Observations"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestUpdate_ErrorKeepsLastStatus(t *testing.T) {
	m := sized(NewModel(Config{}))
	status := &server.StatusResponse{Session: session.Progress{App: "hpl", State: session.StateRunning}}
	next, _ := m.Update(statusMsg{data: status})
	m = next.(Model)

	next, _ = m.Update(statusMsg{err: errors.New("connection refused")})
	m = next.(Model)

	if m.status == nil || m.status.Session.App != "hpl" {
		t.Error("last status should be kept on error")
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Error("view should show the error")
	}
}

func TestScrollIsClamped(t *testing.T) {
	m := sized(NewModel(Config{}))
	next, _ := m.Update(observationsMsg{data: observations(maxVisibleRows + 3)})
	m = next.(Model)

	for i := 0; i < 10; i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
		m = next.(Model)
	}
	if m.tableOffset != 3 {
		t.Errorf("offset = %d, want 3", m.tableOffset)
	}

	rows, start, end := m.visibleRows()
	if start != 0 || end != maxVisibleRows || len(rows) != maxVisibleRows {
		t.Errorf("window = [%d,%d) with %d rows", start, end, len(rows))
	}

	for i := 0; i < 10; i++ {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = next.(Model)
	}
	if m.tableOffset != 0 {
		t.Errorf("offset = %d, want 0", m.tableOffset)
	}
	if !strings.Contains(m.View(), fmt.Sprintf("[4-%d of %d]", maxVisibleRows+3, maxVisibleRows+3)) {
		t.Error("view should show the scroll window")
	}
}

func TestQuitKey(t *testing.T) {
	_, cmd := NewModel(Config{}).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestFormatters(t *testing.T) {
	if got := formatWatts(nil); got != "-" {
		t.Errorf("formatWatts(nil) = %q", got)
	}
	if got := formatWatts(storage.Watts(512.34)); got != "512.3" {
		t.Errorf("formatWatts = %q", got)
	}
	if got := formatGflops(-1); got != "-" {
		t.Errorf("formatGflops(-1) = %q", got)
	}
}
