package session

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/results"
	"github.com/haskel/codvfs/internal/tuner"
	"github.com/haskel/codvfs/internal/workload"
)

func gpuMHz(ghz float64) int {
	return int(math.Round(ghz * 1000))
}

// quickScore is a synthetic objective for pipeline checks: the sum of the
// normalized CPU and GPU positions in their ranges, 2 at the upper corner
// and 0 at the lower one. It never touches the hardware.
func (s *Session) quickScore(ctx context.Context, c tuner.Candidate) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	hw := s.cfg.Hardware
	score := normalize(c.CPU, hw.CPU.MinGHz, hw.CPU.MaxGHz) + normalize(c.GPU, hw.GPU.MinGHz, hw.GPU.MaxGHz)
	s.pending = results.Record{Gflops: -1, PowerW: math.NaN(), ExecSeconds: -1}

	s.logger.Info("quick test", "cpu_ghz", c.CPU, "gpu_mhz", gpuMHz(c.GPU), "score", score)
	return score, nil
}

func normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

// evaluate applies the candidate, runs the workload and scores it in
// Gflops/W. Unparseable output scores the configured failure score
// instead of failing the session.
func (s *Session) evaluate(ctx context.Context, c tuner.Candidate) (float64, error) {
	cfg := s.cfg
	mhz := gpuMHz(c.GPU)

	if err := s.setter.Apply(ctx, c.CPU, cfg.Hardware.GPU.MemClockMHz, mhz); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		s.logger.Warn("failed to apply frequencies", "cpu_ghz", c.CPU, "gpu_mhz", mhz, "error", err)
	}

	start := time.Now()
	lines, err := s.runner.Run(ctx, s.kind, cfg.Workload.N, cfg.Workload.NB)
	if err != nil {
		return 0, fmt.Errorf("run workload: %w", err)
	}
	elapsed := time.Since(start)

	// the last samples of the run must reach the meter logs first
	if err := s.sleep(ctx, cfg.SettleDelay()); err != nil {
		return 0, err
	}

	rec := results.Record{
		Time:   time.Now(),
		App:    s.kind.String(),
		CPUGHz: c.CPU,
		GPUMHz: mhz,
		N:      cfg.Workload.N,
		NB:     cfg.Workload.NB,
	}

	score, err := s.score(lines, &rec)
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.RecordRun(elapsed, rec.PowerW, !math.IsNaN(rec.PowerW))
	}
	if err := s.artifacts.Results.Write(ctx, rec); err != nil {
		s.logger.Warn("failed to write result", "error", err)
	}
	s.pending = rec

	s.logger.Info("tested frequencies",
		"cpu_ghz", c.CPU,
		"gpu_mhz", mhz,
		"gflops", rec.Gflops,
		"power_w", rec.PowerW,
		"gflops_per_w", rec.GflopsPerW,
	)
	return score, nil
}

// score fills rec from the workload output and returns the objective value.
func (s *Session) score(lines []string, rec *results.Record) (float64, error) {
	res, err := s.parser.Parse(s.kind, lines)
	rec.Gflops = res.Gflops
	rec.ExecSeconds = res.ExecSeconds

	if err != nil {
		if !workload.ParseFailure(err) {
			return 0, err
		}
		s.logger.Warn("failed to parse workload output", "error", err)
		rec.PowerW = math.NaN()
		rec.GflopsPerW = 0
		return s.cfg.Session.ParseFailureScore, nil
	}

	reading, err := s.aggregator.Average(power.Window(res.Window))
	if err != nil {
		return 0, fmt.Errorf("aggregate power: %w", err)
	}
	rec.PowerW = reading.Total
	rec.GflopsPerW = efficiency(res.Gflops, reading.Total)

	for _, m := range reading.Meters {
		if m.Samples == 0 {
			s.logger.Warn("no power samples in window", "log", m.Path, "failed", m.Failed)
		}
	}
	return rec.GflopsPerW, nil
}

// efficiency is Gflops per watt, 0 for unusable power.
func efficiency(gflops, watts float64) float64 {
	if math.IsNaN(watts) || watts <= 0 {
		return 0
	}
	return gflops / watts
}
