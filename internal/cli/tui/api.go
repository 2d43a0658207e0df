package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/codvfs/internal/server"
)

type statusMsg struct {
	data *server.StatusResponse
	err  error
}

type observationsMsg struct {
	data *server.ObservationsResponse
	err  error
}

type tickMsg time.Time

type apiClient struct {
	baseURL  string
	client   *http.Client
	user     string
	password string
}

func newAPIClient(cfg Config) *apiClient {
	return &apiClient{
		baseURL:  cfg.ServerURL,
		client:   &http.Client{Timeout: 5 * time.Second},
		user:     cfg.User,
		password: cfg.Password,
	}
}

func (c *apiClient) getJSON(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if c.user != "" && c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func fetchStatus(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var status server.StatusResponse
		if err := newAPIClient(cfg).getJSON("/status", &status); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{data: &status}
	}
}

func fetchObservations(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var obs server.ObservationsResponse
		if err := newAPIClient(cfg).getJSON("/observations", &obs); err != nil {
			return observationsMsg{err: err}
		}
		return observationsMsg{data: &obs}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
