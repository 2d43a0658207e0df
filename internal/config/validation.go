package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}

	if err := c.Hardware.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hardware: %w", err))
	}

	if err := c.Power.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("power: %w", err))
	}

	if err := c.Workload.Validate(c.Session.App); err != nil {
		errs = append(errs, fmt.Errorf("workload: %w", err))
	}

	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("optimizer: %w", err))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	return errors.Join(errs...)
}

var validApps = map[string]bool{
	"hplai": true,
	"hpl":   true,
}

func (s *SessionConfig) Validate() error {
	var errs []error

	if !validApps[s.App] {
		errs = append(errs, fmt.Errorf("invalid app: %s (valid: hplai, hpl)", s.App))
	}
	if s.Iterations < 0 {
		errs = append(errs, fmt.Errorf("iterations must be non-negative, got %d", s.Iterations))
	}
	if s.OutputDir == "" {
		errs = append(errs, fmt.Errorf("output_dir cannot be empty"))
	}
	if s.SettleDelayMS < 0 {
		errs = append(errs, fmt.Errorf("settle_delay_ms must be non-negative"))
	}

	return errors.Join(errs...)
}

func (h *HardwareConfig) Validate() error {
	var errs []error

	cpu := h.CPU
	if cpu.MinGHz <= 0 || cpu.MaxGHz <= cpu.MinGHz {
		errs = append(errs, fmt.Errorf("cpu range must satisfy 0 < min_ghz < max_ghz, got [%g, %g]", cpu.MinGHz, cpu.MaxGHz))
	}
	if cpu.StepMHz <= 0 {
		errs = append(errs, fmt.Errorf("cpu.step_mhz must be positive"))
	}
	if cpu.ManualGovernor == "" || cpu.AutoGovernor == "" {
		errs = append(errs, fmt.Errorf("cpu governors cannot be empty"))
	}

	gpu := h.GPU
	if gpu.MinGHz <= 0 || gpu.MaxGHz <= gpu.MinGHz {
		errs = append(errs, fmt.Errorf("gpu range must satisfy 0 < min_ghz < max_ghz, got [%g, %g]", gpu.MinGHz, gpu.MaxGHz))
	}
	if len(gpu.StepsMHz) == 0 {
		errs = append(errs, fmt.Errorf("gpu.steps_mhz cannot be empty"))
	}
	for _, step := range gpu.StepsMHz {
		if step <= 0 {
			errs = append(errs, fmt.Errorf("gpu.steps_mhz must be positive, got %d", step))
			break
		}
	}
	if gpu.MemClockMHz <= 0 {
		errs = append(errs, fmt.Errorf("gpu.mem_clock_mhz must be positive"))
	}

	return errors.Join(errs...)
}

var validMeterTypes = map[string]bool{
	"snmp":   true,
	"static": true,
}

func (p *PowerConfig) Validate() error {
	var errs []error

	if p.IntervalMS < 100 {
		errs = append(errs, fmt.Errorf("interval_ms must be at least 100, got %d", p.IntervalMS))
	}
	if p.StopTimeoutMS < 1 {
		errs = append(errs, fmt.Errorf("stop_timeout_ms must be positive"))
	}
	if p.ReadTimeoutMS < 1 {
		errs = append(errs, fmt.Errorf("read_timeout_ms must be positive"))
	}
	if len(p.Meters) == 0 {
		errs = append(errs, fmt.Errorf("at least one meter is required"))
	}

	seen := make(map[string]bool)
	for i, m := range p.Meters {
		if !validMeterTypes[m.Type] {
			errs = append(errs, fmt.Errorf("meters[%d]: invalid type: %s (valid: snmp, static)", i, m.Type))
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("meters[%d]: duplicate name %q", i, m.Name))
		}
		seen[m.Name] = true
		if m.Type == "snmp" {
			if m.Address == "" {
				errs = append(errs, fmt.Errorf("meters[%d]: address cannot be empty", i))
			}
			if m.OID == "" {
				errs = append(errs, fmt.Errorf("meters[%d]: oid cannot be empty", i))
			}
			if m.Version != "1" && m.Version != "2c" {
				errs = append(errs, fmt.Errorf("meters[%d]: invalid snmp version: %s (valid: 1, 2c)", i, m.Version))
			}
		}
	}

	return errors.Join(errs...)
}

func (w *WorkloadConfig) Validate(app string) error {
	var errs []error

	if w.N <= 0 || w.NB <= 0 {
		errs = append(errs, fmt.Errorf("n and nb must be positive"))
	}
	if w.TimingPrefix == "" {
		errs = append(errs, fmt.Errorf("timing_prefix cannot be empty"))
	}
	spec, ok := w.Apps[app]
	if !ok {
		errs = append(errs, fmt.Errorf("no apps entry for %s", app))
	} else if spec.Command == "" && spec.Binary == "" {
		errs = append(errs, fmt.Errorf("apps.%s needs a binary or a command", app))
	} else if spec.Command == "" && w.Docker && spec.Image == "" {
		errs = append(errs, fmt.Errorf("apps.%s needs an image when docker is enabled", app))
	}

	return errors.Join(errs...)
}

var validSeeds = map[string]bool{
	"corners": true,
	"random":  true,
	"points":  true,
}

var validStrategies = map[string]bool{
	"multistart": true,
	"random":     true,
}

func (o *OptimizerConfig) Validate() error {
	var errs []error

	if !validSeeds[o.Seeds] {
		errs = append(errs, fmt.Errorf("invalid seeds: %s (valid: corners, random, points)", o.Seeds))
	}
	if o.Seeds == "random" && o.PreSamples < 1 {
		errs = append(errs, fmt.Errorf("pre_samples must be at least 1 for random seeds"))
	}
	if o.Seeds == "points" && len(o.SeedPoints) == 0 {
		errs = append(errs, fmt.Errorf("seed_points cannot be empty for points seeds"))
	}
	if !validStrategies[o.Strategy] {
		errs = append(errs, fmt.Errorf("invalid strategy: %s (valid: multistart, random)", o.Strategy))
	}
	if o.Strategy == "multistart" && o.Restarts < 1 {
		errs = append(errs, fmt.Errorf("restarts must be at least 1"))
	}
	if o.Strategy == "random" && o.RandomSearch < 1 {
		errs = append(errs, fmt.Errorf("random_search must be at least 1"))
	}
	if o.Alpha < 0 {
		errs = append(errs, fmt.Errorf("alpha must be non-negative"))
	}
	if o.Nu != 0.5 && o.Nu != 1.5 && o.Nu != 2.5 {
		errs = append(errs, fmt.Errorf("nu must be one of 0.5, 1.5, 2.5, got %g", o.Nu))
	}
	if o.FitRestarts < 0 {
		errs = append(errs, fmt.Errorf("fit_restarts must be non-negative"))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.RateLimit.Enabled && (s.RateLimit.RequestsPerSecond <= 0 || s.RateLimit.Burst < 1) {
		return fmt.Errorf("rate_limit needs positive requests_per_second and burst")
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}

func (a *AuthConfig) Validate() error {
	if a.Enabled {
		if a.User == "" {
			return fmt.Errorf("user cannot be empty when auth is enabled")
		}
		if a.Password == "" {
			return fmt.Errorf("password cannot be empty when auth is enabled")
		}
	}
	return nil
}
