package tuner

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	ErrNoObservations      = errors.New("tuner: no observations to fit")
	ErrNotPositiveDefinite = errors.New("tuner: covariance matrix is not positive definite")
	ErrNonFinite           = errors.New("tuner: non-finite value")
	ErrNoCandidate         = errors.New("tuner: acquisition search found no candidate")
)

// Candidate is a CPU/GPU frequency pair in GHz.
type Candidate struct {
	CPU float64 `json:"cpu_ghz"`
	GPU float64 `json:"gpu_ghz"`
}

func (c Candidate) Vector() []float64 {
	return []float64{c.CPU, c.GPU}
}

func candidateFromVector(x []float64) Candidate {
	return Candidate{CPU: x[0], GPU: x[1]}
}

func (c Candidate) String() string {
	return fmt.Sprintf("(cpu=%.3f GHz, gpu=%.3f GHz)", c.CPU, c.GPU)
}

// Observation is one evaluated candidate and its score. Observations are
// never modified once recorded.
type Observation struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// Objective evaluates a candidate. Higher scores are better.
type Objective func(ctx context.Context, c Candidate) (float64, error)

// Bounds is the continuous search box, one entry per dimension.
type Bounds struct {
	Lower []float64
	Upper []float64
}

func (b Bounds) Dim() int {
	return len(b.Lower)
}

func (b Bounds) Validate() error {
	if len(b.Lower) == 0 || len(b.Lower) != len(b.Upper) {
		return fmt.Errorf("tuner: bounds need matching non-empty lower/upper, got %d/%d", len(b.Lower), len(b.Upper))
	}
	for i := range b.Lower {
		if !(b.Lower[i] < b.Upper[i]) {
			return fmt.Errorf("tuner: bounds dimension %d is empty: [%g, %g]", i, b.Lower[i], b.Upper[i])
		}
	}
	return nil
}

// Sample draws a point uniformly inside the box.
func (b Bounds) Sample(rng *rand.Rand) []float64 {
	x := make([]float64, b.Dim())
	for i := range x {
		x[i] = b.Lower[i] + rng.Float64()*(b.Upper[i]-b.Lower[i])
	}
	return x
}

// Clamp returns a copy of x moved inside the box.
func (b Bounds) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = min(max(v, b.Lower[i]), b.Upper[i])
	}
	return out
}

// outside is the squared distance from x to the box.
func (b Bounds) outside(x []float64) float64 {
	var d float64
	for i, v := range x {
		if v < b.Lower[i] {
			d += (b.Lower[i] - v) * (b.Lower[i] - v)
		} else if v > b.Upper[i] {
			d += (v - b.Upper[i]) * (v - b.Upper[i])
		}
	}
	return d
}
