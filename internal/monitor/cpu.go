package monitor

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
)

type CPUMonitor struct{}

func NewCPUMonitor() *CPUMonitor {
	return &CPUMonitor{}
}

func (m *CPUMonitor) Name() string {
	return "cpu"
}

func (m *CPUMonitor) Collect(ctx context.Context) (any, error) {
	percentages, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, err
	}

	var overall float64
	if len(percentages) > 0 {
		overall = percentages[0]
	}

	corePercentages, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, err
	}

	state := &CPUState{
		UsagePercent: overall,
		Cores:        corePercentages,
	}

	// clock readings are best effort; some virtualized hosts report none
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		var sum float64
		for _, info := range infos {
			sum += info.Mhz
		}
		state.CurrentMHz = sum / float64(len(infos))
	}

	return state, nil
}
