package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo is the static description of a machine.
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform"`
	PlatformVersion string `json:"platform_version"`
	KernelVersion   string `json:"kernel_version"`
	CPUModel        string `json:"cpu_model"`
	PhysicalCores   int    `json:"physical_cores"`
	LogicalCores    int    `json:"logical_cores"`
	// MaxMHz is the highest clock any CPU reports, 0 if unknown.
	MaxMHz      float64 `json:"max_mhz"`
	MemoryBytes uint64  `json:"memory_bytes"`
}

// Describe collects HostInfo. Missing CPU details are left empty.
func Describe(ctx context.Context) (HostInfo, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, fmt.Errorf("host info: %w", err)
	}

	info := HostInfo{
		Hostname:        h.Hostname,
		OS:              h.OS,
		Platform:        h.Platform,
		PlatformVersion: h.PlatformVersion,
		KernelVersion:   h.KernelVersion,
	}

	if cpus, err := cpu.InfoWithContext(ctx); err == nil && len(cpus) > 0 {
		info.CPUModel = cpus[0].ModelName
		for _, c := range cpus {
			info.MaxMHz = max(info.MaxMHz, c.Mhz)
		}
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.PhysicalCores = n
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.LogicalCores = n
	}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryBytes = v.Total
	}

	return info, nil
}

// CheckCPURange reports whether the configured ceiling exceeds what the
// host says its CPUs can reach. Unknown limits always pass.
func (h HostInfo) CheckCPURange(maxGHz float64) error {
	if h.MaxMHz <= 0 {
		return nil
	}
	if maxGHz*1000 > h.MaxMHz+0.5 {
		return fmt.Errorf("configured cpu max %.1f GHz exceeds host maximum %.0f MHz", maxGHz, h.MaxMHz)
	}
	return nil
}
