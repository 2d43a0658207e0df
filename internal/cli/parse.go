package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/session"
	"github.com/haskel/codvfs/internal/workload"
)

var parseFlags struct {
	app       string
	withPower bool
}

var parseCmd = &cobra.Command{
	Use:   "parse <output-file>",
	Short: "Parse a saved benchmark output",
	Long: `Parse a saved benchmark output the way a tuning session does and print
the result and its execution window. With --power, the configured meter
logs are averaged over that window and the efficiency is printed too.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseFlags.app, "app", "", "workload: hplai or hpl (default from config)")
	parseCmd.Flags().BoolVar(&parseFlags.withPower, "power", false, "aggregate the meter logs over the execution window")
	rootCmd.AddCommand(parseCmd)
}

type parseJSON struct {
	workload.Result
	Power      *power.Reading `json:"power,omitempty"`
	GflopsPerW *float64       `json:"gflops_per_w,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if parseFlags.app != "" {
		cfg.Session.App = parseFlags.app
	}
	kind, err := workload.ParseKind(cfg.Session.App)
	if err != nil {
		return err
	}

	lines, err := readLines(args[0])
	if err != nil {
		return err
	}

	res, err := newParser(cfg).Parse(kind, lines)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := parseJSON{Result: res}
	if parseFlags.withPower {
		agg := power.NewWindowAggregator(session.PowerLogPaths(cfg, kind.String()), nil)
		reading, err := agg.Average(power.Window(res.Window))
		if err != nil {
			return err
		}
		out.Power = &reading
		if reading.Total > 0 {
			eff := res.Gflops / reading.Total
			out.GflopsPerW = &eff
		}
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(out)
	}

	fmt.Fprintf(w, "Workload:  %s\n", res.Kind)
	fmt.Fprintf(w, "Gflops:    %.0f\n", res.Gflops)
	fmt.Fprintf(w, "Exec time: %.2f s\n", res.ExecSeconds)
	fmt.Fprintf(w, "Window:    %s .. %s\n", res.Window.Start.Format(power.TimeLayout), res.Window.End.Format(power.TimeLayout))
	if out.Power != nil {
		fmt.Fprintf(w, "Power:     %.1f W\n", out.Power.Total)
		for _, m := range out.Power.Meters {
			fmt.Fprintf(w, "  %s: %.1f W (%d samples, %d failed)\n", m.Path, m.Watts, m.Samples, m.Failed)
		}
	}
	if out.GflopsPerW != nil {
		fmt.Fprintf(w, "Gflops/W:  %.2f\n", *out.GflopsPerW)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
