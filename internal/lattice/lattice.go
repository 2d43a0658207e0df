// Package lattice holds the clock frequencies the hardware accepts and
// snaps continuous proposals onto them.
package lattice

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyRange = errors.New("lattice: empty frequency range")
	ErrBadStep    = errors.New("lattice: step must be positive")
)

// Lattice is the legal CPU/GPU frequency grid. Values are kept in MHz
// internally so generation never drifts; the public API speaks GHz.
type Lattice struct {
	cpuMHz []int
	gpuMHz []int
}

// Spec describes how the grid is generated.
type Spec struct {
	CPUMinGHz  float64
	CPUMaxGHz  float64
	CPUStepMHz int

	GPUMinGHz float64
	GPUMaxGHz float64
	// GPUStepsMHz are applied in turn, e.g. 7,8,7,8...
	GPUStepsMHz []int
}

func New(spec Spec) (*Lattice, error) {
	cpu, err := fixedGrid(ghzToMHz(spec.CPUMinGHz), ghzToMHz(spec.CPUMaxGHz), spec.CPUStepMHz)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}

	gpu, err := alternatingGrid(ghzToMHz(spec.GPUMinGHz), ghzToMHz(spec.GPUMaxGHz), spec.GPUStepsMHz)
	if err != nil {
		return nil, fmt.Errorf("gpu: %w", err)
	}

	return &Lattice{cpuMHz: cpu, gpuMHz: gpu}, nil
}

func fixedGrid(minMHz, maxMHz, step int) ([]int, error) {
	if step <= 0 {
		return nil, ErrBadStep
	}
	if maxMHz < minMHz {
		return nil, ErrEmptyRange
	}

	var grid []int
	for f := minMHz; f <= maxMHz; f += step {
		grid = append(grid, f)
	}
	return grid, nil
}

func alternatingGrid(minMHz, maxMHz int, steps []int) ([]int, error) {
	if len(steps) == 0 {
		return nil, ErrBadStep
	}
	for _, s := range steps {
		if s <= 0 {
			return nil, ErrBadStep
		}
	}
	if maxMHz < minMHz {
		return nil, ErrEmptyRange
	}

	grid := []int{minMHz}
	f := minMHz
	for i := 0; ; i++ {
		f += steps[i%len(steps)]
		if f > maxMHz {
			break
		}
		grid = append(grid, f)
	}
	return grid, nil
}

func ghzToMHz(ghz float64) int {
	return int(math.Round(ghz * 1000))
}

func mhzToGHz(mhz int) float64 {
	return float64(mhz) / 1000
}

// CPU returns the legal CPU frequencies in GHz, ascending.
func (l *Lattice) CPU() []float64 {
	return toGHz(l.cpuMHz)
}

// GPU returns the legal GPU graphics clocks in GHz, ascending.
func (l *Lattice) GPU() []float64 {
	return toGHz(l.gpuMHz)
}

func toGHz(mhz []int) []float64 {
	out := make([]float64, len(mhz))
	for i, v := range mhz {
		out[i] = mhzToGHz(v)
	}
	return out
}

// Bounds returns the continuous search box [cpuMin, cpuMax], [gpuMin, gpuMax].
func (l *Lattice) Bounds() (lower, upper [2]float64) {
	lower = [2]float64{mhzToGHz(l.cpuMHz[0]), mhzToGHz(l.gpuMHz[0])}
	upper = [2]float64{mhzToGHz(l.cpuMHz[len(l.cpuMHz)-1]), mhzToGHz(l.gpuMHz[len(l.gpuMHz)-1])}
	return lower, upper
}

// Corners returns the four extreme points, max/max first.
func (l *Lattice) Corners() [][2]float64 {
	lo, hi := l.Bounds()
	return [][2]float64{
		{hi[0], hi[1]},
		{hi[0], lo[1]},
		{lo[0], hi[1]},
		{lo[0], lo[1]},
	}
}

// Project snaps a continuous (cpu, gpu) pair to the nearest lattice point,
// each axis on its own.
func (l *Lattice) Project(cpuGHz, gpuGHz float64) (float64, float64) {
	return l.ProjectCPU(cpuGHz), l.ProjectGPU(gpuGHz)
}

// ProjectCPU rounds to the nearest step of the fixed grid, clamped to range.
func (l *Lattice) ProjectCPU(ghz float64) float64 {
	first := l.cpuMHz[0]
	step := 1
	if len(l.cpuMHz) > 1 {
		step = l.cpuMHz[1] - first
	}

	i := int(math.Round((ghz*1000 - float64(first)) / float64(step)))
	i = max(0, min(i, len(l.cpuMHz)-1))
	return mhzToGHz(l.cpuMHz[i])
}

// ProjectGPU picks the closest legal clock by absolute difference; on a
// tie the lower clock, found first, wins.
func (l *Lattice) ProjectGPU(ghz float64) float64 {
	best := l.gpuMHz[0]
	bestDiff := math.Inf(1)
	for _, f := range l.gpuMHz {
		diff := math.Abs(mhzToGHz(f) - ghz)
		if diff < bestDiff {
			best, bestDiff = f, diff
		}
	}
	return mhzToGHz(best)
}

// ContainsGPU reports whether ghz is a legal GPU clock.
func (l *Lattice) ContainsGPU(ghz float64) bool {
	mhz := ghzToMHz(ghz)
	for _, f := range l.gpuMHz {
		if f == mhz {
			return true
		}
	}
	return false
}
