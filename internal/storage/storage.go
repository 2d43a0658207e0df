// Package storage keeps a human-readable summary of a tuning session on
// disk. The summary is written for people and tooling; the tuner never
// reads it back.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/tuner"
)

// Summary is the persisted session summary.
type Summary struct {
	Version    int        `json:"version"`
	App        string     `json:"app"`
	QuickTest  bool       `json:"quicktest"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Host          *monitor.HostInfo `json:"host,omitempty"`
	ClockOffsetMS *float64          `json:"clock_offset_ms,omitempty"`

	Observations []Entry            `json:"observations"`
	Best         *tuner.Observation `json:"best,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Entry is one observation with where it came from.
type Entry struct {
	Phase tuner.Phase `json:"phase"`
	Index int         `json:"index"`
	tuner.Observation
	GPUMHz int     `json:"gpu_mhz"`
	Gflops float64 `json:"gflops"`
	// PowerW is nil when no power reading backs the observation.
	PowerW      *float64  `json:"power_w,omitempty"`
	ExecSeconds float64   `json:"exec_seconds"`
	RecordedAt  time.Time `json:"recorded_at"`
}

const currentVersion = 1

var ErrUnsupportedVersion = errors.New("storage: summary version is newer than supported")

// Watts returns v as an optional reading; NaN and infinities map to
// nil since JSON cannot carry them.
func Watts(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FileName returns the summary file name of an app.
func FileName(app string) string {
	return fmt.Sprintf("summary_%s.json", app)
}

// Storage owns the summary of one session.
type Storage struct {
	path          string
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.RWMutex
	data   *Summary
	dirty  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a summary for app in dataDir.
func New(dataDir, app string, quick bool, flushInterval time.Duration, logger *slog.Logger) *Storage {
	now := time.Now()
	return &Storage{
		path:          filepath.Join(dataDir, FileName(app)),
		flushInterval: flushInterval,
		logger:        logger,
		data: &Summary{
			Version:      currentVersion,
			App:          app,
			QuickTest:    quick,
			StartedAt:    now,
			UpdatedAt:    now,
			Observations: []Entry{},
		},
		done: make(chan struct{}),
	}
}

// Path is where the summary is written.
func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) SetHost(h monitor.HostInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Host = &h
	s.dirty = true
}

func (s *Storage) SetClockOffset(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := float64(d) / float64(time.Millisecond)
	s.data.ClockOffsetMS = &ms
	s.dirty = true
}

// Record appends an entry and updates the best observation.
func (s *Storage) Record(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	s.data.Observations = append(s.data.Observations, e)
	if s.data.Best == nil || e.Score > s.data.Best.Score {
		best := e.Observation
		s.data.Best = &best
	}
	s.dirty = true
}

// Finish marks the session as ended, with the error that ended it if any.
func (s *Storage) Finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.data.FinishedAt = &now
	if err != nil {
		s.data.Error = err.Error()
	}
	s.dirty = true
}

// Snapshot returns a copy of the summary.
func (s *Storage) Snapshot() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := *s.data
	out.Observations = make([]Entry, len(s.data.Observations))
	copy(out.Observations, s.data.Observations)
	return out
}

// Save writes the summary to disk.
func (s *Storage) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveLocked()
}

func (s *Storage) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	tempPath := s.path + ".tmp"

	s.data.UpdatedAt = time.Now()

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return err
	}

	s.dirty = false
	s.logger.Debug("saved session summary", "path", s.path)

	return nil
}

// Start starts the periodic flush goroutine, so a crashed session still
// leaves a recent summary behind.
func (s *Storage) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.flushLoop(ctx)
}

// Stop stops the periodic flush and saves final state.
func (s *Storage) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
	}

	return s.Save()
}

func (s *Storage) flushLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.IsDirty() {
				if err := s.Save(); err != nil {
					s.logger.Error("failed to save session summary", "error", err)
				}
			}
		}
	}
}

// IsDirty returns whether the summary has unsaved changes.
func (s *Storage) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Load reads a summary file for display.
func Load(path string) (*Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data Summary
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	if data.Version > currentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data.Version)
	}
	return &data, nil
}
