package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/config"
)

var (
	cfgFile  string
	host     string
	port     int
	jsonOut  bool
	verbose  bool
	user     string
	password string

	// Version is set from main.
	Version = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "codvfs",
	Short: "CPU/GPU frequency autotuner for HPC benchmark energy efficiency",
	Long: `codvfs searches the CPU and GPU clock lattice of a GPU server for the
frequency pair with the best Gflops per watt on HPL-AI or HPL. Each candidate
is applied, benchmarked and scored from PDU power samples taken inside the
benchmark's own execution window; a Gaussian-process model picks the next
candidate.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&host, "host", "localhost", "status server host")
	rootCmd.PersistentFlags().IntVarP(&port, "port", "p", 9470, "status server port")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "status server auth username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "status server auth password")
}

func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// GetServerURL returns the status server URL from the flags.
func GetServerURL() string {
	return fmt.Sprintf("http://%s:%d", host, port)
}

// loadConfig reads the config file when one is given. Unlike
// config.LoadOrDefault it reports a broken file instead of silently
// tuning with defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

// logLevel lets --verbose override the configured level.
func logLevel(cfg *config.Config) string {
	if verbose {
		return "debug"
	}
	return cfg.Logging.Level
}
