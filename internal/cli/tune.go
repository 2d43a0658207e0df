package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/config"
	"github.com/haskel/codvfs/internal/logger"
	"github.com/haskel/codvfs/internal/metrics"
	"github.com/haskel/codvfs/internal/server"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/workload"
)

var tuneFlags struct {
	app       string
	iters     int
	quickTest bool
	dryRun    bool
	output    string
	serve     bool
	noWarmup  bool
}

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Run a tuning session",
	Long: `Run a tuning session: seed the search with the corners of the frequency
lattice, then let the Bayesian optimizer propose --iters more candidates.
Frequencies, governor and GPU clocks are restored however the session ends.

Examples:
  codvfs tune --app hplai --iters 32
  codvfs tune --quicktest --dry-run     # exercise the pipeline without touching hardware
  codvfs tune -c codvfs.yaml --serve    # expose /status and /metrics while tuning`,
	RunE: runTune,
}

func init() {
	f := tuneCmd.Flags()
	f.StringVar(&tuneFlags.app, "app", "", "workload: hplai or hpl")
	f.IntVar(&tuneFlags.iters, "iters", 0, "optimizer iterations after seeding")
	f.BoolVar(&tuneFlags.quickTest, "quicktest", false, "score candidates synthetically without running the workload")
	f.BoolVar(&tuneFlags.dryRun, "dry-run", false, "log frequency commands instead of executing them")
	f.StringVarP(&tuneFlags.output, "output", "o", "", "output directory")
	f.BoolVar(&tuneFlags.serve, "serve", false, "start the status server")
	f.BoolVar(&tuneFlags.noWarmup, "no-warmup", false, "skip the warm-up run")
	rootCmd.AddCommand(tuneCmd)
}

// applyTuneFlags overrides config with the flags the user set.
func applyTuneFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("app") {
		cfg.Session.App = tuneFlags.app
	}
	if f.Changed("iters") {
		cfg.Session.Iterations = tuneFlags.iters
	}
	if f.Changed("quicktest") {
		cfg.Session.QuickTest = tuneFlags.quickTest
	}
	if f.Changed("dry-run") {
		cfg.Hardware.DryRun = tuneFlags.dryRun
	}
	if f.Changed("output") {
		cfg.Session.OutputDir = tuneFlags.output
	}
	if f.Changed("serve") {
		cfg.Server.Enabled = tuneFlags.serve
	}
	if f.Changed("no-warmup") {
		cfg.Session.Warmup = !tuneFlags.noWarmup
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyTuneFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	kind, err := workload.ParseKind(cfg.Session.App)
	if err != nil {
		return err
	}
	lat, err := newLattice(cfg)
	if err != nil {
		return err
	}

	log := logger.New(logLevel(cfg), cfg.Logging.Format)
	log.Info("codvfs starting",
		"version", Version,
		"app", kind,
		"iterations", cfg.Session.Iterations,
		"quicktest", cfg.Session.QuickTest,
		"dry_run", cfg.Hardware.DryRun,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	art, err := session.OpenArtifacts(ctx, cfg, kind.String(), log)
	if err != nil {
		return err
	}

	reg := metrics.New()
	sess, err := buildSession(cfg, kind, lat, art, reg, log)
	if err != nil {
		art.Close()
		return err
	}

	if cfg.Server.Enabled {
		shutdown, err := serveStatus(ctx, cfg, sess, reg, log)
		if err != nil {
			art.Close()
			return err
		}
		defer shutdown()
	}

	report, err := sess.Run(ctx)
	if err != nil {
		return fmt.Errorf("tuning session failed: %w", err)
	}

	return printReport(cmd.OutOrStdout(), report, art)
}

// serveStatus runs the status server next to the session. SIGHUP reloads
// the auth credentials from the config file.
func serveStatus(ctx context.Context, cfg *config.Config, sess *session.Session, reg *metrics.Registry, log *slog.Logger) (func(), error) {
	hostAgg, err := startHostMonitor(ctx, log)
	if err != nil {
		return nil, err
	}
	srv := server.New(cfg, sess, hostAgg, reg.Handler(), log, Version)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("status server error", "error", err)
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-hup:
				if cfgFile == "" {
					continue
				}
				newCfg, err := config.Load(cfgFile)
				if err != nil {
					log.Error("config reload failed", "error", err)
					continue
				}
				srv.ReloadAuth(newCfg.Auth)
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(hup)
		close(done)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("status server shutdown failed", "error", err)
		}
		hostAgg.Stop()
	}, nil
}

type reportJSON struct {
	Evaluations int     `json:"evaluations"`
	BestCPUGHz  float64 `json:"best_cpu_ghz"`
	BestGPUMHz  int     `json:"best_gpu_mhz"`
	BestScore   float64 `json:"best_score"`
	Duration    string  `json:"duration"`
	Results     string  `json:"results"`
}

func printReport(w io.Writer, report *session.Report, art *session.Artifacts) error {
	out := reportJSON{
		Evaluations: len(report.History),
		BestCPUGHz:  report.Best.Candidate.CPU,
		BestGPUMHz:  int(math.Round(report.Best.Candidate.GPU * 1000)),
		BestScore:   report.Best.Score,
		Duration:    report.Duration.Round(time.Second).String(),
		Results:     art.ResultPath,
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintf(w, "Best after %d evaluations (%s):\n", out.Evaluations, out.Duration)
	fmt.Fprintf(w, "  CPU:   %.1f GHz\n", out.BestCPUGHz)
	fmt.Fprintf(w, "  GPU:   %d MHz\n", out.BestGPUMHz)
	fmt.Fprintf(w, "  Score: %.4f\n", out.BestScore)
	fmt.Fprintf(w, "Results: %s\n", out.Results)
	return nil
}
