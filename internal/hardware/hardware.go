// Package hardware applies CPU and GPU clock settings through the vendor
// command-line tools.
package hardware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// FrequencySetter applies and resets a CPU/GPU frequency pair. Both calls
// are idempotent.
type FrequencySetter interface {
	Apply(ctx context.Context, cpuGHz float64, memMHz, gfxMHz int) error
	Reset(ctx context.Context) error
}

// Governor switches the CPU frequency governor between manual control
// and the automatic default.
type Governor interface {
	Manual(ctx context.Context) error
	Automatic(ctx context.Context) error
}

type Options struct {
	ManualGovernor string
	AutoGovernor   string
}

// Controller drives cpupower and nvidia-smi through an Executor.
type Controller struct {
	exec   Executor
	opts   Options
	logger *slog.Logger
}

func NewController(exec Executor, opts Options, logger *slog.Logger) *Controller {
	return &Controller{exec: exec, opts: opts, logger: logger}
}

func (c *Controller) Apply(ctx context.Context, cpuGHz float64, memMHz, gfxMHz int) error {
	c.logger.Debug("applying frequencies", "cpu_ghz", cpuGHz, "mem_mhz", memMHz, "gfx_mhz", gfxMHz)

	// The two settings are independent; a CPU failure must not leave the
	// GPU on the previous candidate's clocks.
	var errs []error
	if err := c.exec.Exec(ctx, "cpupower", "--cpu", "all", "frequency-set", "--freq", fmt.Sprintf("%.1fGHz", cpuGHz)); err != nil {
		errs = append(errs, fmt.Errorf("set cpu frequency: %w", err))
	}
	if err := c.exec.Exec(ctx, "nvidia-smi", fmt.Sprintf("--applications-clocks=%d,%d", memMHz, gfxMHz)); err != nil {
		errs = append(errs, fmt.Errorf("set gpu clocks: %w", err))
	}
	return errors.Join(errs...)
}

func (c *Controller) Reset(ctx context.Context) error {
	c.logger.Info("resetting gpu application clocks")
	if err := c.exec.Exec(ctx, "nvidia-smi", "-rac"); err != nil {
		return fmt.Errorf("reset gpu clocks: %w", err)
	}
	return nil
}

func (c *Controller) Manual(ctx context.Context) error {
	return c.setGovernor(ctx, c.opts.ManualGovernor)
}

func (c *Controller) Automatic(ctx context.Context) error {
	return c.setGovernor(ctx, c.opts.AutoGovernor)
}

func (c *Controller) setGovernor(ctx context.Context, governor string) error {
	c.logger.Info("setting cpufreq governor", "governor", governor)
	if err := c.exec.Exec(ctx, "cpupower", "frequency-set", "--governor", governor); err != nil {
		return fmt.Errorf("set governor %s: %w", governor, err)
	}
	return nil
}
