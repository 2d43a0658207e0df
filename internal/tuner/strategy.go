package tuner

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/optimize"
)

// StrategyType names an acquisition search strategy.
type StrategyType string

const (
	StrategyMultiStart StrategyType = "multistart"
	StrategyRandom     StrategyType = "random"
)

// IsValid checks if the strategy type is known.
func (s StrategyType) IsValid() bool {
	switch s {
	case StrategyMultiStart, StrategyRandom:
		return true
	}
	return false
}

// Strategy searches the bounds for the point maximizing f.
type Strategy interface {
	Name() string
	Maximize(f func(x []float64) float64, b Bounds, rng *rand.Rand) ([]float64, error)
}

// StrategyConfig carries the knobs of every strategy.
type StrategyConfig struct {
	Restarts      int
	Samples       int
	EvalsPerStart int
}

// NewStrategy creates the strategy of the given type.
func NewStrategy(t StrategyType, cfg StrategyConfig) (Strategy, error) {
	switch t {
	case StrategyMultiStart:
		return &MultiStart{Restarts: cfg.Restarts, EvalsPerStart: cfg.EvalsPerStart}, nil
	case StrategyRandom:
		return &RandomSearch{Samples: cfg.Samples}, nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", t)
	}
}

// MultiStart runs a bounded Nelder-Mead search from Restarts uniform
// starting points and keeps the best end point.
type MultiStart struct {
	Restarts      int
	EvalsPerStart int
}

func (m *MultiStart) Name() string {
	return string(StrategyMultiStart)
}

func (m *MultiStart) Maximize(f func(x []float64) float64, b Bounds, rng *rand.Rand) ([]float64, error) {
	restarts := max(m.Restarts, 1)
	evals := m.EvalsPerStart
	if evals <= 0 {
		evals = 100
	}

	var failed error
	// Points outside the box are scored at the nearest face and pushed
	// back by a quadratic penalty.
	objective := func(x []float64) float64 {
		v := f(b.Clamp(x))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			failed = fmt.Errorf("%w: acquisition %v at %v", ErrNonFinite, v, x)
			return 0
		}
		return -v + 1e3*b.outside(x)
	}

	var best []float64
	bestValue := math.Inf(-1)
	for i := 0; i < restarts; i++ {
		res, err := optimize.Minimize(
			optimize.Problem{Func: objective},
			b.Sample(rng),
			&optimize.Settings{FuncEvaluations: evals},
			&optimize.NelderMead{},
		)
		if failed != nil {
			return nil, failed
		}
		if res == nil {
			return nil, fmt.Errorf("tuner: acquisition search: %w", err)
		}

		x := b.Clamp(res.X)
		if v := f(x); v > bestValue {
			best, bestValue = x, v
		}
	}

	if best == nil {
		return nil, ErrNoCandidate
	}
	return best, nil
}

// RandomSearch scores Samples uniform points and returns the best one.
type RandomSearch struct {
	Samples int
}

func (r *RandomSearch) Name() string {
	return string(StrategyRandom)
}

func (r *RandomSearch) Maximize(f func(x []float64) float64, b Bounds, rng *rand.Rand) ([]float64, error) {
	var best []float64
	bestValue := math.Inf(-1)
	for i := 0; i < max(r.Samples, 1); i++ {
		x := b.Sample(rng)
		v := f(x)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: acquisition %v at %v", ErrNonFinite, v, x)
		}
		if v > bestValue {
			best, bestValue = x, v
		}
	}

	if best == nil {
		return nil, ErrNoCandidate
	}
	return best, nil
}
