package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/cli/tui"
)

var refreshInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live dashboard of a running session",
	Long: `Open a terminal dashboard polling the status server of a running
tuning session.

Examples:
  codvfs watch
  codvfs watch --refresh 5s --host gpu01`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&refreshInterval, "refresh", 2*time.Second, "dashboard refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	return tui.Run(tui.Config{
		ServerURL:       GetServerURL(),
		RefreshInterval: refreshInterval,
		User:            user,
		Password:        password,
	})
}
