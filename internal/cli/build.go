package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haskel/codvfs/internal/clock"
	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/hardware"
	"github.com/haskel/codvfs/internal/lattice"
	"github.com/haskel/codvfs/internal/metrics"
	"github.com/haskel/codvfs/internal/monitor"
	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/storage"
	"github.com/haskel/codvfs/internal/workload"
)

const (
	summaryFlushInterval = 10 * time.Second
	hostMonitorInterval  = 2 * time.Second
)

// powerChannels pairs every configured meter with its log path.
func powerChannels(cfg *config.Config, paths []string) ([]power.Channel, error) {
	meters, err := power.NewMeters(cfg.Power.Meters, cfg.MeterReadTimeout())
	if err != nil {
		return nil, err
	}
	if len(meters) != len(paths) {
		return nil, fmt.Errorf("have %d meters but %d power log paths", len(meters), len(paths))
	}
	channels := make([]power.Channel, len(meters))
	for i, m := range meters {
		channels[i] = power.Channel{Meter: m, Path: paths[i]}
	}
	return channels, nil
}

func newSampler(cfg *config.Config, channels []power.Channel, rec power.Recorder, log *slog.Logger) *power.Sampler {
	return power.NewSampler(channels, power.SamplerConfig{
		Interval:    cfg.SampleInterval(),
		ReadTimeout: cfg.MeterReadTimeout(),
		StopTimeout: cfg.SamplerStopTimeout(),
	}, rec, log)
}

func newParser(cfg *config.Config) workload.Parser {
	return workload.Parser{
		TimingPrefix: cfg.Workload.TimingPrefix,
		Offset:       cfg.TimestampOffset(),
	}
}

func newLattice(cfg *config.Config) (*lattice.Lattice, error) {
	lat, err := lattice.New(session.LatticeSpec(cfg.Hardware))
	if err != nil {
		return nil, fmt.Errorf("invalid frequency lattice: %w", err)
	}
	return lat, nil
}

// buildSession wires a session from config. The session takes ownership
// of art only once it is returned.
func buildSession(cfg *config.Config, kind workload.Kind, lat *lattice.Lattice, art *session.Artifacts, reg *metrics.Registry, log *slog.Logger) (*session.Session, error) {
	var exec hardware.Executor = hardware.NewCommandExecutor(cfg.Hardware.Sudo, art.Raw)
	if cfg.Hardware.DryRun {
		exec = hardware.NewDryRunExecutor(log)
	}
	ctl := hardware.NewController(exec, hardware.Options{
		ManualGovernor: cfg.Hardware.CPU.ManualGovernor,
		AutoGovernor:   cfg.Hardware.CPU.AutoGovernor,
	}, log)

	commands, err := workload.NewCommandBuilder(cfg.Workload, art.Dir)
	if err != nil {
		return nil, err
	}

	channels, err := powerChannels(cfg, art.PowerPaths)
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		Config:     cfg,
		Kind:       kind,
		Lattice:    lat,
		Artifacts:  art,
		Setter:     ctl,
		Governor:   ctl,
		Runner:     workload.NewExecRunner(commands, art.TempPath, log),
		Sampler:    newSampler(cfg, channels, reg, log),
		Aggregator: power.NewWindowAggregator(art.PowerPaths, nil),
		Parser:     newParser(cfg),
		Metrics:    reg,
		Describe:   monitor.Describe,
		Logger:     log,
	}
	if cfg.Results.Summary {
		opts.Summary = storage.New(art.Dir, kind.String(), cfg.Session.QuickTest, summaryFlushInterval, log)
	}
	if cfg.Clock.NTPServer != "" {
		opts.Clock = clock.Checker{
			Server:  cfg.Clock.NTPServer,
			Timeout: cfg.ClockTimeout(),
			MaxSkew: cfg.MaxClockSkew(),
		}
	}

	return session.New(opts)
}

// startHostMonitor samples host load for the status server.
func startHostMonitor(ctx context.Context, log *slog.Logger) (*monitor.Aggregator, error) {
	agg := monitor.NewAggregator([]monitor.Monitor{
		monitor.NewCPUMonitor(),
		monitor.NewMemoryMonitor(),
	}, hostMonitorInterval, log)
	if err := agg.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start host monitor: %w", err)
	}
	return agg, nil
}
