// Package results persists one record per scored workload run.
package results

import (
	"context"
	"errors"
	"time"
)

// Record is one evaluated frequency pair. Gflops and ExecSeconds are -1
// and PowerW is NaN when the run could not be parsed.
type Record struct {
	Time        time.Time `json:"time"`
	App         string    `json:"app"`
	CPUGHz      float64   `json:"cpu_ghz"`
	GPUMHz      int       `json:"gpu_mhz"`
	Gflops      float64   `json:"gflops"`
	PowerW      float64   `json:"power_w"`
	GflopsPerW  float64   `json:"gflops_per_w"`
	ExecSeconds float64   `json:"exec_seconds"`
	N           int       `json:"n"`
	NB          int       `json:"nb"`
}

// Sink receives records in evaluation order.
type Sink interface {
	Write(ctx context.Context, r Record) error
	Close() error
}

// Multi fans records out to several sinks. Every sink sees every record
// even when an earlier one fails.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Write(ctx, r))
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
