package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
)

type InfoResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string        `json:"status"`
	State  session.State `json:"state"`
}

type StatusResponse struct {
	Session session.Progress     `json:"session"`
	Host    *monitor.SystemState `json:"host,omitempty"`
}

type ObservationsResponse struct {
	Total        int             `json:"total"`
	Observations []storage.Entry `json:"observations"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{Name: "codvfs", Version: s.version})
}

// handleHealth reports 503 once the session has failed so that an
// external supervisor can tell a dead run from a slow one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.source.Progress().State
	status := http.StatusOK
	resp := HealthResponse{Status: "ok", State: state}
	if state == session.StateFailed {
		status = http.StatusServiceUnavailable
		resp.Status = "failed"
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Session: s.source.Progress()}
	if s.host != nil {
		resp.Host = s.host.GetState()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleObservations lists evaluated points in evaluation order.
// Optional query parameters: phase=seed|iterate and since=<n> to skip
// the first n entries.
func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	entries := s.source.Entries()
	total := len(entries)

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := strconv.Atoi(v)
		if err != nil || since < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if since > len(entries) {
			since = len(entries)
		}
		entries = entries[since:]
	}

	if phase := r.URL.Query().Get("phase"); phase != "" {
		p := tuner.Phase(phase)
		if p != tuner.PhaseSeed && p != tuner.PhaseIterate {
			http.Error(w, "unknown phase", http.StatusBadRequest)
			return
		}
		filtered := make([]storage.Entry, 0, len(entries))
		for _, e := range entries {
			if e.Phase == p {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if entries == nil {
		entries = []storage.Entry{}
	}
	s.writeJSON(w, http.StatusOK, ObservationsResponse{Total: total, Observations: entries})
}

func (s *Server) handleBest(w http.ResponseWriter, r *http.Request) {
	best := s.source.Progress().Best
	if best == nil {
		http.Error(w, "no observations yet", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, best)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status,
		)
	}
}
