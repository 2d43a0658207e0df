// Package session runs one tuning session: it brings the machine into
// manual frequency control, drives the search, and always restores the
// hardware and closes every file afterwards.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/hardware"
	"github.com/haskel/codvfs/internal/lattice"
	"github.com/haskel/codvfs/internal/logger"
	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/results"
	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/tuner"
	"github.com/haskel/codvfs/internal/workload"
)

// cleanupTimeout bounds hardware restoration once the session context is
// gone.
const cleanupTimeout = 30 * time.Second

// Sampler is the background power sampler.
type Sampler interface {
	Start(ctx context.Context) error
	Stop() error
}

// PowerAggregator averages the meter logs over a window.
type PowerAggregator interface {
	Average(w power.Window) (power.Reading, error)
}

// ClockChecker measures the local clock offset.
type ClockChecker interface {
	Check() (time.Duration, error)
}

// Recorder receives metrics; *metrics.Registry implements it.
type Recorder interface {
	RecordEvaluation(phase string, cpuGHz float64, gpuMHz int, score, best float64)
	RecordRun(duration time.Duration, windowWatts float64, parsed bool)
}

type Options struct {
	Config    *config.Config
	Kind      workload.Kind
	Lattice   *lattice.Lattice
	Artifacts *Artifacts

	Setter     hardware.FrequencySetter
	Governor   hardware.Governor
	Runner     workload.Runner
	Sampler    Sampler
	Aggregator PowerAggregator
	Parser     workload.Parser

	// Optional collaborators.
	Summary  *storage.Storage
	Metrics  Recorder
	Clock    ClockChecker
	Describe func(ctx context.Context) (monitor.HostInfo, error)

	Logger *slog.Logger
	// Sleep waits for the settle delay; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Report is the outcome of a session.
type Report struct {
	History  []tuner.Observation
	Best     tuner.Observation
	Duration time.Duration
}

type Session struct {
	cfg       *config.Config
	kind      workload.Kind
	lattice   *lattice.Lattice
	artifacts *Artifacts

	setter     hardware.FrequencySetter
	governor   hardware.Governor
	runner     workload.Runner
	sampler    Sampler
	aggregator PowerAggregator
	parser     workload.Parser
	summary    *storage.Storage
	metrics    Recorder
	clock      ClockChecker
	describe   func(ctx context.Context) (monitor.HostInfo, error)
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger

	progress    tracker
	cleanupOnce sync.Once
	cleanupErr  error

	// details of the evaluation in flight, consumed by the tuner observer
	pending results.Record
}

func New(opts Options) (*Session, error) {
	if opts.Config == nil || opts.Lattice == nil || opts.Artifacts == nil {
		return nil, errors.New("session: config, lattice and artifacts are required")
	}
	if opts.Setter == nil || opts.Governor == nil || opts.Runner == nil || opts.Sampler == nil || opts.Aggregator == nil {
		return nil, errors.New("session: hardware, runner, sampler and aggregator are required")
	}

	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	log := base
	if opts.Artifacts.Raw != nil {
		log = logger.Tee(base, opts.Artifacts.Raw, opts.Config.Logging.Level)
	}

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	s := &Session{
		cfg:        opts.Config,
		kind:       opts.Kind,
		lattice:    opts.Lattice,
		artifacts:  opts.Artifacts,
		setter:     opts.Setter,
		governor:   opts.Governor,
		runner:     opts.Runner,
		sampler:    opts.Sampler,
		aggregator: opts.Aggregator,
		parser:     opts.Parser,
		summary:    opts.Summary,
		metrics:    opts.Metrics,
		clock:      opts.Clock,
		describe:   opts.Describe,
		sleep:      sleep,
		logger:     log,
	}
	s.progress.p = Progress{
		App:        opts.Kind.String(),
		QuickTest:  opts.Config.Session.QuickTest,
		State:      StatePending,
		Iterations: opts.Config.Session.Iterations,
	}
	return s, nil
}

// Progress returns the current progress.
func (s *Session) Progress() Progress {
	return s.progress.snapshot()
}

// Entries returns every observation recorded so far.
func (s *Session) Entries() []storage.Entry {
	return s.progress.entries()
}

// Run executes the session. Cleanup runs exactly once however Run ends,
// including by panic. Cleanup errors are logged, and returned only when
// the session itself succeeded.
func (s *Session) Run(ctx context.Context) (report *Report, err error) {
	start := time.Now()
	s.progress.update(func(p *Progress) {
		p.State = StateRunning
		p.StartedAt = start
	})

	defer func() {
		if r := recover(); r != nil {
			s.cleanup(ctx, fmt.Errorf("panic: %v", r))
			panic(r)
		}
		cleanupErr := s.cleanup(ctx, err)
		if err == nil && cleanupErr != nil {
			err = cleanupErr
		}
	}()

	history, err := s.run(ctx)
	if err != nil {
		return nil, err
	}

	best, _ := tuner.BestOf(history)
	return &Report{History: history, Best: best, Duration: time.Since(start)}, nil
}

func (s *Session) run(ctx context.Context) ([]tuner.Observation, error) {
	cfg := s.cfg
	s.logger.Info("starting session",
		"app", s.kind,
		"iterations", cfg.Session.Iterations,
		"quicktest", cfg.Session.QuickTest,
		"output", s.artifacts.Dir,
	)

	s.inspectHost(ctx)
	s.checkClock()

	if s.summary != nil {
		s.summary.Start(ctx)
	}

	if err := s.sampler.Start(ctx); err != nil {
		return nil, fmt.Errorf("start power sampler: %w", err)
	}

	if err := s.governor.Manual(ctx); err != nil {
		s.logger.Warn("failed to set manual governor", "error", err)
	}

	if cfg.Session.Warmup && !cfg.Session.QuickTest {
		s.logger.Info("warm-up run")
		if err := s.runner.Warmup(ctx, s.kind, cfg.Workload.N, cfg.Workload.NB, s.artifacts.Raw); err != nil {
			return nil, fmt.Errorf("warm-up run: %w", err)
		}
	}

	t, err := s.newTuner()
	if err != nil {
		return nil, err
	}

	seeds, err := s.seeds(t)
	if err != nil {
		return nil, err
	}
	s.progress.update(func(p *Progress) { p.Seeds = len(seeds) })

	objective := s.evaluate
	if cfg.Session.QuickTest {
		objective = s.quickScore
	}

	s.logger.Info("bayesian optimization start", "seeds", len(seeds))
	return t.Run(ctx, objective, seeds, cfg.Session.Iterations)
}

func (s *Session) newTuner() (*tuner.Tuner, error) {
	opt := s.cfg.Optimizer

	seed := opt.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.logger.Debug("optimizer random seed", "seed", seed)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	strategy, err := tuner.NewStrategy(tuner.StrategyType(opt.Strategy), tuner.StrategyConfig{
		Restarts: opt.Restarts,
		Samples:  opt.RandomSearch,
	})
	if err != nil {
		return nil, err
	}

	lower, upper := s.lattice.Bounds()
	return tuner.New(tuner.Options{
		Bounds:    tuner.Bounds{Lower: lower[:], Upper: upper[:]},
		Projector: s.lattice,
		Surrogate: tuner.NewGaussianProcess(tuner.GPConfig{
			Nu:          opt.Nu,
			Alpha:       opt.Alpha,
			FitRestarts: opt.FitRestarts,
		}, rng),
		Strategy: strategy,
		Rand:     rng,
		Logger:   s.logger,
		Observer: s.observe,
	})
}

func (s *Session) seeds(t *tuner.Tuner) ([]tuner.Candidate, error) {
	opt := s.cfg.Optimizer
	switch opt.Seeds {
	case "", "corners":
		var out []tuner.Candidate
		for _, c := range s.lattice.Corners() {
			out = append(out, tuner.Candidate{CPU: c[0], GPU: c[1]})
		}
		return out, nil
	case "random":
		return t.RandomSeeds(opt.PreSamples), nil
	case "points":
		out := make([]tuner.Candidate, 0, len(opt.SeedPoints))
		for _, p := range opt.SeedPoints {
			out = append(out, tuner.Candidate{CPU: p[0], GPU: p[1]})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown seed mode: %s", opt.Seeds)
	}
}

func (s *Session) observe(obs tuner.Observation, phase tuner.Phase, index int) {
	rec := s.pending
	s.pending = results.Record{}

	e := storage.Entry{
		Phase:       phase,
		Index:       index,
		Observation: obs,
		GPUMHz:      gpuMHz(obs.Candidate.GPU),
		Gflops:      rec.Gflops,
		PowerW:      storage.Watts(rec.PowerW),
		ExecSeconds: rec.ExecSeconds,
		RecordedAt:  time.Now(),
	}
	s.progress.record(e)
	if s.summary != nil {
		s.summary.Record(e)
	}

	p := s.progress.snapshot()
	if s.metrics != nil {
		s.metrics.RecordEvaluation(string(phase), obs.Candidate.CPU, e.GPUMHz, obs.Score, p.Best.Score)
	}

	s.logger.Info("observation",
		"phase", phase,
		"index", index,
		"cpu_ghz", obs.Candidate.CPU,
		"gpu_mhz", e.GPUMHz,
		"score", obs.Score,
		"best", p.Best.Score,
	)
}

func (s *Session) inspectHost(ctx context.Context) {
	if s.describe == nil {
		return
	}
	info, err := s.describe(ctx)
	if err != nil {
		s.logger.Warn("failed to describe host", "error", err)
		return
	}
	if err := info.CheckCPURange(s.cfg.Hardware.CPU.MaxGHz); err != nil {
		s.logger.Warn("cpu lattice may be out of range", "error", err)
	}
	if s.summary != nil {
		s.summary.SetHost(info)
	}
}

func (s *Session) checkClock() {
	if s.clock == nil {
		return
	}
	offset, err := s.clock.Check()
	if err != nil && offset == 0 {
		s.logger.Warn("clock check failed", "error", err)
		return
	}
	if err != nil {
		s.logger.Warn("local clock is skewed; power windows may be shifted", "offset", offset, "error", err)
	} else {
		s.logger.Info("clock offset", "offset", offset)
	}
	if s.summary != nil {
		s.summary.SetClockOffset(offset)
	}
}

// cleanup restores the hardware and releases every resource, once. Every
// step runs even when earlier steps fail.
func (s *Session) cleanup(ctx context.Context, cause error) error {
	s.cleanupOnce.Do(func() {
		s.logger.Info("session finished, restoring cpu/gpu frequency")

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()

		var errs []error
		if err := s.governor.Automatic(rctx); err != nil {
			errs = append(errs, fmt.Errorf("restore governor: %w", err))
		}
		if err := s.setter.Reset(rctx); err != nil {
			errs = append(errs, fmt.Errorf("reset gpu clocks: %w", err))
		}
		if err := s.sampler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop power sampler: %w", err))
		}
		if s.summary != nil {
			s.summary.Finish(cause)
			if err := s.summary.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("save summary: %w", err))
			}
		}

		s.cleanupErr = errors.Join(errs...)
		if s.cleanupErr != nil {
			s.logger.Error("cleanup incomplete", "error", s.cleanupErr)
		}

		s.progress.update(func(p *Progress) {
			switch {
			case cause != nil:
				p.State = StateFailed
				p.Error = cause.Error()
			case s.cleanupErr != nil:
				p.State = StateFailed
				p.Error = s.cleanupErr.Error()
			default:
				p.State = StateFinished
			}
		})
		s.logger.Info("session closed", "duration", time.Since(s.progress.snapshot().StartedAt).Round(time.Second))

		// last: the logger tees into the raw log
		if err := s.artifacts.Close(); err != nil {
			s.cleanupErr = errors.Join(s.cleanupErr, fmt.Errorf("close artifacts: %w", err))
		}
	})
	return s.cleanupErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
