// Package tuner implements the sequential model-based search: a Gaussian
// process surrogate, expected improvement, and projection of every
// proposal onto the legal frequency lattice before it is evaluated.
package tuner

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
)

// Phase tells an observer where an observation came from.
type Phase string

const (
	PhaseSeed    Phase = "seed"
	PhaseIterate Phase = "iterate"
)

// Projector snaps a continuous candidate onto the legal lattice.
type Projector interface {
	Project(cpuGHz, gpuGHz float64) (float64, float64)
}

// Observer is called after every recorded observation.
type Observer func(obs Observation, phase Phase, index int)

type Options struct {
	Bounds    Bounds
	Projector Projector
	Surrogate Surrogate
	Strategy  Strategy
	Rand      *rand.Rand
	Logger    *slog.Logger
	Observer  Observer
}

// Tuner owns the observation history of one search. It is not safe for
// concurrent use; the search evaluates one candidate at a time.
type Tuner struct {
	bounds    Bounds
	projector Projector
	surrogate Surrogate
	strategy  Strategy
	rng       *rand.Rand
	logger    *slog.Logger
	observer  Observer

	history []Observation
}

func New(opts Options) (*Tuner, error) {
	if err := opts.Bounds.Validate(); err != nil {
		return nil, err
	}
	if opts.Bounds.Dim() != 2 {
		return nil, fmt.Errorf("tuner: expected 2 dimensions (cpu, gpu), got %d", opts.Bounds.Dim())
	}
	if opts.Surrogate == nil || opts.Strategy == nil || opts.Rand == nil {
		return nil, fmt.Errorf("tuner: surrogate, strategy and rand are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Tuner{
		bounds:    opts.Bounds,
		projector: opts.Projector,
		surrogate: opts.Surrogate,
		strategy:  opts.Strategy,
		rng:       opts.Rand,
		logger:    logger,
		observer:  opts.Observer,
	}, nil
}

// RandomSeeds draws n candidates uniformly inside the bounds.
func (t *Tuner) RandomSeeds(n int) []Candidate {
	seeds := make([]Candidate, n)
	for i := range seeds {
		seeds[i] = candidateFromVector(t.bounds.Sample(t.rng))
	}
	return seeds
}

// Run evaluates the seeds, then proposes and evaluates iterations more
// candidates. The history so far is returned with any error.
func (t *Tuner) Run(ctx context.Context, objective Objective, seeds []Candidate, iterations int) ([]Observation, error) {
	t.logger.Info("seed phase", "seeds", len(seeds))
	for i, seed := range seeds {
		if err := ctx.Err(); err != nil {
			return t.History(), err
		}
		if _, err := t.evaluate(ctx, objective, t.project(seed), PhaseSeed, i); err != nil {
			return t.History(), err
		}
	}

	t.logger.Info("iterate phase", "iterations", iterations)
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return t.History(), err
		}

		next, err := t.Suggest()
		if err != nil {
			return t.History(), fmt.Errorf("iteration %d: %w", i, err)
		}

		if _, err := t.evaluate(ctx, objective, next, PhaseIterate, i); err != nil {
			return t.History(), err
		}
	}

	return t.History(), nil
}

// Suggest fits the surrogate to the history and returns the projected
// candidate with the highest expected improvement.
func (t *Tuner) Suggest() (Candidate, error) {
	if len(t.history) == 0 {
		return Candidate{}, ErrNoObservations
	}

	x := make([][]float64, len(t.history))
	y := make([]float64, len(t.history))
	for i, obs := range t.history {
		x[i] = obs.Candidate.Vector()
		y[i] = obs.Score
	}

	if err := t.surrogate.Fit(x, y); err != nil {
		return Candidate{}, fmt.Errorf("surrogate fit: %w", err)
	}

	best, _ := t.Best()
	raw, err := t.strategy.Maximize(Acquisition(t.surrogate, best.Score), t.bounds, t.rng)
	if err != nil {
		return Candidate{}, fmt.Errorf("acquisition (%s): %w", t.strategy.Name(), err)
	}

	proposed := candidateFromVector(raw)
	projected := t.project(proposed)
	t.logger.Debug("candidate proposed",
		"raw", proposed.String(),
		"projected", projected.String(),
		"incumbent", best.Score,
	)
	return projected, nil
}

// Evaluate scores one candidate as-is and appends the observation.
func (t *Tuner) Evaluate(ctx context.Context, objective Objective, c Candidate) (Observation, error) {
	return t.evaluate(ctx, objective, c, PhaseIterate, len(t.history))
}

func (t *Tuner) evaluate(ctx context.Context, objective Objective, c Candidate, phase Phase, index int) (Observation, error) {
	score, err := objective(ctx, c)
	if err != nil {
		return Observation{}, fmt.Errorf("evaluate %s: %w", c, err)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Observation{}, fmt.Errorf("evaluate %s: %w: score %v", c, ErrNonFinite, score)
	}

	obs := Observation{Candidate: c, Score: score}
	t.history = append(t.history, obs)

	if t.observer != nil {
		t.observer(obs, phase, index)
	}
	return obs, nil
}

func (t *Tuner) project(c Candidate) Candidate {
	if t.projector == nil {
		return c
	}
	cpu, gpu := t.projector.Project(c.CPU, c.GPU)
	return Candidate{CPU: cpu, GPU: gpu}
}

// History returns a copy of all observations in evaluation order.
func (t *Tuner) History() []Observation {
	out := make([]Observation, len(t.history))
	copy(out, t.history)
	return out
}

// Best returns the highest-scoring observation; the earliest wins ties.
func (t *Tuner) Best() (Observation, bool) {
	return BestOf(t.history)
}

// BestOf returns the highest-scoring observation of a history.
func BestOf(history []Observation) (Observation, bool) {
	if len(history) == 0 {
		return Observation{}, false
	}
	best := history[0]
	for _, obs := range history[1:] {
		if obs.Score > best.Score {
			best = obs
		}
	}
	return best, true
}
