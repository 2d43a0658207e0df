package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/mem"
)

func TestMemoryMonitor_Collect(t *testing.T) {
	m := NewMemoryMonitor()
	if m.Name() != "memory" {
		t.Errorf("Name() = %q, want memory", m.Name())
	}

	data, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	state, ok := data.(*MemoryState)
	if !ok {
		t.Fatalf("Collect() = %T, want *MemoryState", data)
	}
	if state.TotalBytes == 0 || state.UsedBytes > state.TotalBytes {
		t.Errorf("used/total = %d/%d", state.UsedBytes, state.TotalBytes)
	}
	if state.PeakSwapBytes < state.SwapUsedBytes {
		t.Errorf("peak swap %d below current %d", state.PeakSwapBytes, state.SwapUsedBytes)
	}
}

func TestMemoryMonitor_PeakSwap(t *testing.T) {
	swapUsed := []uint64{0, 4096, 1024}
	var calls int
	m := &MemoryMonitor{
		virtual: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Used: 6, Total: 8, UsedPercent: 75}, nil
		},
		swap: func(context.Context) (*mem.SwapMemoryStat, error) {
			s := &mem.SwapMemoryStat{Used: swapUsed[calls]}
			calls++
			return s, nil
		},
	}

	want := []struct{ used, peak uint64 }{{0, 0}, {4096, 4096}, {1024, 4096}}
	for i, w := range want {
		data, err := m.Collect(context.Background())
		if err != nil {
			t.Fatalf("poll %d: Collect() error = %v", i, err)
		}
		state := data.(*MemoryState)
		if state.SwapUsedBytes != w.used || state.PeakSwapBytes != w.peak {
			t.Errorf("poll %d: swap = %d peak = %d, want %d/%d", i, state.SwapUsedBytes, state.PeakSwapBytes, w.used, w.peak)
		}
	}
}

func TestMemoryMonitor_Errors(t *testing.T) {
	m := &MemoryMonitor{
		virtual: func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{Used: 1, Total: 2, UsedPercent: 50}, nil
		},
		swap: func(context.Context) (*mem.SwapMemoryStat, error) {
			return nil, errors.New("no swap devices")
		},
	}
	data, err := m.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() without swap error = %v", err)
	}
	if s := data.(*MemoryState); s.SwapUsedBytes != 0 || s.UsagePercent != 50 {
		t.Errorf("Collect() = %+v", s)
	}

	m.virtual = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("proc unavailable")
	}
	if _, err := m.Collect(context.Background()); err == nil {
		t.Error("Collect() should fail when virtual memory cannot be read")
	}
}
