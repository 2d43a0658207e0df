package tui

import (
	"time"

	"github.com/haskel/codvfs/internal/server"
)

type Config struct {
	ServerURL       string
	RefreshInterval time.Duration
	User            string
	Password        string
}

// Model is the dashboard state.
type Model struct {
	config Config

	status       *server.StatusResponse
	observations *server.ObservationsResponse

	width       int
	height      int
	loading     bool
	err         error
	lastUpdated time.Time

	// tableOffset scrolls the observation table; 0 shows the newest rows.
	tableOffset int
}

func NewModel(cfg Config) Model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second
	}
	return Model{
		config:  cfg,
		loading: true,
	}
}
