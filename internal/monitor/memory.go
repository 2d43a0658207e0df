package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryMonitor samples RAM and swap. The benchmark sizes its problem to
// fill memory, so any swap seen during a session is kept as a peak that
// later polls still report.
type MemoryMonitor struct {
	virtual func(context.Context) (*mem.VirtualMemoryStat, error)
	swap    func(context.Context) (*mem.SwapMemoryStat, error)

	mu       sync.Mutex
	peakSwap uint64
}

func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{
		virtual: mem.VirtualMemoryWithContext,
		swap:    mem.SwapMemoryWithContext,
	}
}

func (m *MemoryMonitor) Name() string {
	return "memory"
}

func (m *MemoryMonitor) Collect(ctx context.Context) (any, error) {
	v, err := m.virtual(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	state := &MemoryState{
		UsedBytes:    v.Used,
		TotalBytes:   v.Total,
		UsagePercent: v.UsedPercent,
	}

	// Hosts without swap report an error on some platforms; that is zero swap.
	if s, err := m.swap(ctx); err == nil {
		state.SwapUsedBytes = s.Used
	}

	m.mu.Lock()
	m.peakSwap = max(m.peakSwap, state.SwapUsedBytes)
	state.PeakSwapBytes = m.peakSwap
	m.mu.Unlock()

	return state, nil
}
