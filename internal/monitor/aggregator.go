package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Aggregator periodically collects host load into one snapshot.
type Aggregator struct {
	monitors []Monitor
	state    *SystemState
	interval time.Duration
	mu       sync.RWMutex
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

func NewAggregator(monitors []Monitor, interval time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		monitors: monitors,
		state:    &SystemState{},
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (a *Aggregator) Start(ctx context.Context) error {
	a.collect(ctx)

	go a.runLoop(ctx)

	a.logger.Info("host monitor started", "interval", a.interval, "monitors", len(a.monitors))
	return nil
}

func (a *Aggregator) Stop() error {
	a.stopOnce.Do(func() {
		close(a.done)
		a.logger.Info("host monitor stopped")
	})
	return nil
}

func (a *Aggregator) GetState() *SystemState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Clone()
}

func (a *Aggregator) runLoop(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.collect(ctx)
		case <-ctx.Done():
			return
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) collect(ctx context.Context) {
	newState := &SystemState{Timestamp: time.Now()}

	for _, m := range a.monitors {
		data, err := m.Collect(ctx)
		if err != nil {
			a.logger.Warn("monitor collection failed",
				"monitor", m.Name(),
				"error", err,
			)
			continue
		}

		switch state := data.(type) {
		case *CPUState:
			newState.CPU = *state
		case *MemoryState:
			newState.Memory = *state
		}
	}

	a.mu.Lock()
	a.state = newState
	a.mu.Unlock()
}
