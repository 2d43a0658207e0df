package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/power"
	"github.com/haskel/codvfs/internal/session"
)

// windowLayout accepts the power log timestamp format with an optional
// fraction.
const windowLayout = "2006-01-02 15:04:05.999999"

var powerFlags struct {
	app  string
	from string
	to   string
}

var powerCmd = &cobra.Command{
	Use:   "power [log...]",
	Short: "Average power logs over a time window",
	Long: `Average power logs over [--from, --to] and print the per-meter and
combined watts. Without arguments the configured meter logs of --app are
used.

Example:
  codvfs power --from "2024-03-01 10:00:00" --to "2024-03-01 10:05:00"`,
	RunE: runPower,
}

func init() {
	f := powerCmd.Flags()
	f.StringVar(&powerFlags.app, "app", "", "workload name of the logs (default from config)")
	f.StringVar(&powerFlags.from, "from", "", "window start, local time")
	f.StringVar(&powerFlags.to, "to", "", "window end, local time")
	powerCmd.MarkFlagRequired("from")
	powerCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(powerCmd)
}

func runPower(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if powerFlags.app != "" {
		cfg.Session.App = powerFlags.app
	}

	from, err := time.ParseInLocation(windowLayout, powerFlags.from, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.ParseInLocation(windowLayout, powerFlags.to, time.Local)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	paths := args
	if len(paths) == 0 {
		paths = session.PowerLogPaths(cfg, cfg.Session.App)
	}

	reading, err := power.NewWindowAggregator(paths, time.Local).Average(power.Window{Start: from, End: to})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(reading)
	}
	for _, m := range reading.Meters {
		fmt.Fprintf(w, "%s: %.1f W (%d samples, %d failed)\n", m.Path, m.Watts, m.Samples, m.Failed)
	}
	fmt.Fprintf(w, "Total: %.1f W\n", reading.Total)
	return nil
}
