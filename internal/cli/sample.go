package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/logger"
	"github.com/haskel/codvfs/internal/session"
)

var sampleFlags struct {
	app      string
	output   string
	duration time.Duration
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Log PDU power until interrupted",
	Long: `Run the power sampler on its own. Samples are appended to the same
per-meter logs a tuning session writes, and the combined power of every
tick is printed.

Examples:
  codvfs sample --app hplai
  codvfs sample --duration 10m -o /data/power`,
	RunE: runSample,
}

func init() {
	f := sampleCmd.Flags()
	f.StringVar(&sampleFlags.app, "app", "", "workload name used in the log file names (default from config)")
	f.StringVarP(&sampleFlags.output, "output", "o", "", "output directory")
	f.DurationVar(&sampleFlags.duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(sampleCmd)
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sampleFlags.app != "" {
		cfg.Session.App = sampleFlags.app
	}
	if sampleFlags.output != "" {
		cfg.Session.OutputDir = sampleFlags.output
	}
	if err := cfg.Power.Validate(); err != nil {
		return fmt.Errorf("invalid power configuration: %w", err)
	}

	log := logger.New(logLevel(cfg), cfg.Logging.Format)

	channels, err := powerChannels(cfg, session.PowerLogPaths(cfg, cfg.Session.App))
	if err != nil {
		return err
	}
	printer := newTickPrinter(cmd.OutOrStdout(), len(channels))
	sampler := newSampler(cfg, channels, printer, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if sampleFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sampleFlags.duration)
		defer cancel()
	}

	if err := sampler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return sampler.Stop()
}

// tickPrinter prints one line per sampler tick once every meter has
// reported. Failed reads are left out of the total and counted.
type tickPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	meters  int
	pending map[string]float64
	now     func() time.Time
}

func newTickPrinter(w io.Writer, meters int) *tickPrinter {
	return &tickPrinter{w: w, meters: meters, pending: make(map[string]float64), now: time.Now}
}

func (p *tickPrinter) RecordSample(meter string, watts float64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		watts = math.NaN()
	}
	p.pending[meter] = watts
	if len(p.pending) < p.meters {
		return
	}

	total, failed := 0.0, 0
	for _, w := range p.pending {
		if math.IsNaN(w) {
			failed++
			continue
		}
		total += w
	}
	clear(p.pending)

	line := fmt.Sprintf("%s total %.1f W", p.now().Format("15:04:05.000"), total)
	if failed > 0 {
		line += fmt.Sprintf(" (%d/%d meters failed)", failed, p.meters)
	}
	fmt.Fprintln(p.w, line)
}
