// Package monitor watches host load while a tuning session runs and
// describes the machine the session ran on.
package monitor

import (
	"context"
	"time"
)

type Monitor interface {
	Name() string
	Collect(ctx context.Context) (any, error)
}

type CPUState struct {
	UsagePercent float64   `json:"usage_percent"`
	Cores        []float64 `json:"cores"`
	// CurrentMHz is the mean reported clock over all logical CPUs.
	CurrentMHz float64 `json:"current_mhz"`
}

type MemoryState struct {
	UsedBytes     uint64  `json:"used_bytes"`
	TotalBytes    uint64  `json:"total_bytes"`
	UsagePercent  float64 `json:"usage_percent"`
	SwapUsedBytes uint64  `json:"swap_used_bytes"`
	// PeakSwapBytes is the highest swap use seen since the monitor started.
	PeakSwapBytes uint64 `json:"peak_swap_bytes"`
}

type SystemState struct {
	CPU       CPUState    `json:"cpu"`
	Memory    MemoryState `json:"memory"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *SystemState) Clone() *SystemState {
	clone := *s
	clone.CPU.Cores = make([]float64, len(s.CPU.Cores))
	copy(clone.CPU.Cores, s.CPU.Cores)
	return &clone
}
