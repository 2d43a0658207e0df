package power

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

var (
	ErrSamplerRunning = errors.New("power: sampler already started")
	ErrStopTimeout    = errors.New("power: sampler did not stop in time")
)

// Channel pairs a meter with the log file its samples are appended to.
type Channel struct {
	Meter Meter
	Path  string
}

// Recorder observes every sample the sampler takes.
type Recorder interface {
	RecordSample(meter string, watts float64, err error)
}

type SamplerConfig struct {
	Interval    time.Duration
	ReadTimeout time.Duration
	StopTimeout time.Duration
}

// Sampler reads every meter once per interval in a single background
// goroutine and appends one line per meter to its log.
type Sampler struct {
	channels []Channel
	cfg      SamplerConfig
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	done    chan struct{}
	exited  chan struct{}
	files   []*os.File
	writers []*bufio.Writer
	loopErr error
}

func NewSampler(channels []Channel, cfg SamplerConfig, recorder Recorder, logger *slog.Logger) *Sampler {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	return &Sampler{
		channels: channels,
		cfg:      cfg,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Start opens the logs in append mode and launches the sampling loop.
// The loop also exits when ctx is cancelled.
func (s *Sampler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSamplerRunning
	}

	files := make([]*os.File, 0, len(s.channels))
	writers := make([]*bufio.Writer, 0, len(s.channels))
	for _, ch := range s.channels {
		if err := os.MkdirAll(filepath.Dir(ch.Path), 0755); err != nil {
			closeAll(files)
			return fmt.Errorf("failed to create power log directory: %w", err)
		}
		f, err := os.OpenFile(ch.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			closeAll(files)
			return fmt.Errorf("failed to open power log %s: %w", ch.Path, err)
		}
		files = append(files, f)
		writers = append(writers, bufio.NewWriter(f))
	}

	s.files = files
	s.writers = writers
	s.done = make(chan struct{})
	s.exited = make(chan struct{})
	s.loopErr = nil
	s.running = true

	go s.runLoop(ctx)

	s.logger.Info("power sampler started", "interval", s.cfg.Interval, "meters", len(s.channels))
	return nil
}

// Stop signals the loop and waits up to the stop timeout for it to flush
// and close the logs. Stopping a stopped sampler is a no-op.
func (s *Sampler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.done)
	exited := s.exited
	s.mu.Unlock()

	select {
	case <-exited:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("power sampler stop timed out", "timeout", s.cfg.StopTimeout)
		return ErrStopTimeout
	}

	s.logger.Info("power sampler stopped")
	return s.loopErr
}

func (s *Sampler) runLoop(ctx context.Context) {
	defer close(s.exited)
	defer func() {
		if err := s.closeLogs(); err != nil {
			s.loopErr = err
		}
	}()

	for {
		start := s.now()
		if err := s.tick(ctx, start); err != nil {
			s.loopErr = err
			s.logger.Error("power log write failed", "error", err)
			return
		}

		wait := max(0, s.cfg.Interval-time.Since(start))
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.done:
			timer.Stop()
			return
		}
	}
}

// tick reads every meter concurrently and appends one line per meter, all
// stamped with the tick's start time.
func (s *Sampler) tick(ctx context.Context, ts time.Time) error {
	readings := make([]float64, len(s.channels))

	var wg conc.WaitGroup
	for i, ch := range s.channels {
		wg.Go(func() {
			readings[i] = s.read(ctx, ch.Meter)
		})
	}
	wg.Wait()

	for i, w := range s.writers {
		if _, err := fmt.Fprintln(w, FormatSample(Sample{Time: ts, Watts: readings[i]})); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sampler) read(ctx context.Context, m Meter) float64 {
	readCtx := ctx
	if s.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
	}

	watts, err := m.ReadWatts(readCtx)
	if err != nil {
		s.logger.Debug("meter read failed", "meter", m.Name(), "error", err)
		watts = math.NaN()
	}
	if s.recorder != nil {
		s.recorder.RecordSample(m.Name(), watts, err)
	}
	return watts
}

func (s *Sampler) closeLogs() error {
	var errs []error
	for _, w := range s.writers {
		errs = append(errs, w.Flush())
	}
	errs = append(errs, closeAll(s.files))
	return errors.Join(errs...)
}

func closeAll(files []*os.File) error {
	var errs []error
	for _, f := range files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}
