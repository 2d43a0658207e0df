package cli

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
)

var latticeCmd = &cobra.Command{
	Use:   "lattice",
	Short: "Print the legal CPU and GPU frequencies",
	RunE:  runLattice,
}

func init() {
	rootCmd.AddCommand(latticeCmd)
}

type latticeJSON struct {
	CPUGHz []float64 `json:"cpu_ghz"`
	GPUMHz []int     `json:"gpu_mhz"`
}

func runLattice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lat, err := newLattice(cfg)
	if err != nil {
		return err
	}

	out := latticeJSON{CPUGHz: lat.CPU()}
	for _, g := range lat.GPU() {
		out.GPUMHz = append(out.GPUMHz, int(math.Round(g*1000)))
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return json.NewEncoder(w).Encode(out)
	}

	cpu := make([]string, len(out.CPUGHz))
	for i, c := range out.CPUGHz {
		cpu[i] = fmt.Sprintf("%.1f", c)
	}
	gpu := make([]string, len(out.GPUMHz))
	for i, g := range out.GPUMHz {
		gpu[i] = fmt.Sprint(g)
	}
	fmt.Fprintf(w, "CPU (%d values, GHz): %s\n", len(cpu), strings.Join(cpu, " "))
	fmt.Fprintf(w, "GPU (%d values, MHz): %s\n", len(gpu), strings.Join(gpu, " "))
	return nil
}
