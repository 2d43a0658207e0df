package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/haskel/codvfs/internal/server"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of a running session",
	Long:  `Query the status server of a running tuning session.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	data, code, err := NewClient().Get("/status")
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("server returned status %d: %s", code, string(data))
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		fmt.Fprintln(w, string(data))
		return nil
	}

	var st server.StatusResponse
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	p := st.Session
	fmt.Fprintln(w, "=== Tuning Session ===")
	fmt.Fprintf(w, "App:         %s", p.App)
	if p.QuickTest {
		fmt.Fprint(w, " (quicktest)")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "State:       %s\n", p.State)
	if p.Phase != "" {
		fmt.Fprintf(w, "Phase:       %s\n", p.Phase)
	}
	fmt.Fprintf(w, "Evaluations: %d of %d\n", p.Evaluations, p.Seeds+p.Iterations)
	if !p.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:     %s\n", p.StartedAt.Format("2006-01-02 15:04:05"))
	}
	if p.Best != nil {
		fmt.Fprintf(w, "Best:        %.1f GHz / %d MHz, score %.4f\n",
			p.Best.Candidate.CPU, int(math.Round(p.Best.Candidate.GPU*1000)), p.Best.Score)
	}
	if p.Last != nil {
		fmt.Fprintf(w, "Last:        %.1f GHz / %d MHz, score %.4f\n",
			p.Last.Candidate.CPU, p.Last.GPUMHz, p.Last.Score)
	}
	if p.Error != "" {
		fmt.Fprintf(w, "Error:       %s\n", p.Error)
	}

	if st.Host != nil {
		fmt.Fprintln(w, "\n=== Host ===")
		fmt.Fprintf(w, "CPU:    %.1f%%", st.Host.CPU.UsagePercent)
		if st.Host.CPU.CurrentMHz > 0 {
			fmt.Fprintf(w, " at %.0f MHz", st.Host.CPU.CurrentMHz)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Memory: %.1f%% (%.1f / %.1f GB)\n", st.Host.Memory.UsagePercent,
			float64(st.Host.Memory.UsedBytes)/1024/1024/1024,
			float64(st.Host.Memory.TotalBytes)/1024/1024/1024)
		if st.Host.Memory.PeakSwapBytes > 0 {
			fmt.Fprintf(w, "Swap:   %.2f GB (peak %.2f GB), timings may be skewed\n",
				float64(st.Host.Memory.SwapUsedBytes)/1024/1024/1024,
				float64(st.Host.Memory.PeakSwapBytes)/1024/1024/1024)
		}
	}
	return nil
}
