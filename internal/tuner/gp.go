package tuner

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	minLengthScale = 1e-5
	maxLengthScale = 1e5

	// returned by the likelihood objective for length scales whose
	// covariance cannot be factorized, so the simplex backs away
	badLikelihood = 1e25
)

// Surrogate predicts the objective from past observations.
type Surrogate interface {
	Fit(x [][]float64, y []float64) error
	Predict(x []float64) (mean, std float64)
}

// GaussianProcess is a zero-mean GP regressor on normalized targets with a
// Matérn kernel. Fit selects the length scale by maximizing the log
// marginal likelihood.
type GaussianProcess struct {
	kernel      Matern
	alpha       float64
	fitRestarts int
	rng         *rand.Rand

	x       [][]float64
	yMean   float64
	yStd    float64
	chol    mat.Cholesky
	weights *mat.VecDense
}

type GPConfig struct {
	Nu float64
	// Alpha is added to the kernel diagonal.
	Alpha float64
	// FitRestarts is the number of extra random starts for the length
	// scale search; 0 keeps the search to a single start.
	FitRestarts int
}

func NewGaussianProcess(cfg GPConfig, rng *rand.Rand) *GaussianProcess {
	nu := cfg.Nu
	if nu == 0 {
		nu = 1.5
	}
	return &GaussianProcess{
		kernel:      Matern{Nu: nu, LengthScale: 1},
		alpha:       cfg.Alpha,
		fitRestarts: cfg.FitRestarts,
		rng:         rng,
	}
}

// LengthScale returns the fitted length scale.
func (g *GaussianProcess) LengthScale() float64 {
	return g.kernel.LengthScale
}

func (g *GaussianProcess) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return ErrNoObservations
	}
	if len(x) != len(y) {
		return fmt.Errorf("tuner: %d inputs but %d targets", len(x), len(y))
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: target %v", ErrNonFinite, v)
		}
	}

	g.x = x
	g.yMean, g.yStd = stat.PopMeanStdDev(y, nil)
	if len(y) < 2 || g.yStd == 0 || math.IsNaN(g.yStd) {
		g.yStd = 1
	}
	yn := make([]float64, len(y))
	for i, v := range y {
		yn[i] = (v - g.yMean) / g.yStd
	}
	yvec := mat.NewVecDense(len(yn), yn)

	scale, err := g.fitLengthScale(yvec)
	if err != nil {
		return err
	}
	g.kernel.LengthScale = scale

	if _, err := g.factorize(yvec); err != nil {
		return err
	}
	return nil
}

// fitLengthScale runs Nelder-Mead on log(length scale) from the current
// value and fitRestarts random starts, keeping the best likelihood.
func (g *GaussianProcess) fitLengthScale(y *mat.VecDense) (float64, error) {
	lo, hi := math.Log(minLengthScale), math.Log(maxLengthScale)
	clamp := func(theta float64) float64 { return min(max(theta, lo), hi) }

	negLML := func(theta []float64) float64 {
		gp := *g
		gp.kernel.LengthScale = math.Exp(clamp(theta[0]))
		lml, err := gp.factorize(y)
		if err != nil || math.IsNaN(lml) {
			return badLikelihood
		}
		return -lml
	}

	starts := [][]float64{{math.Log(g.kernel.LengthScale)}}
	for i := 0; i < g.fitRestarts; i++ {
		starts = append(starts, []float64{lo + g.rng.Float64()*(hi-lo)})
	}

	bestTheta := starts[0][0]
	bestValue := math.Inf(1)
	for _, start := range starts {
		res, err := optimize.Minimize(
			optimize.Problem{Func: negLML},
			start,
			&optimize.Settings{FuncEvaluations: 200},
			&optimize.NelderMead{},
		)
		// hitting the evaluation limit still reports the best location
		if res == nil {
			return 0, fmt.Errorf("tuner: length scale fit: %w", err)
		}
		if res.F < bestValue {
			bestValue = res.F
			bestTheta = clamp(res.X[0])
		}
	}

	if bestValue >= badLikelihood {
		return 0, ErrNotPositiveDefinite
	}
	return math.Exp(bestTheta), nil
}

// factorize builds K + alpha*I for the stored inputs, keeps its Cholesky
// factor and K^-1 y, and returns the log marginal likelihood.
func (g *GaussianProcess) factorize(y *mat.VecDense) (float64, error) {
	n := len(g.x)
	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := g.kernel.Eval(g.x[i], g.x[j])
			if i == j {
				v += g.alpha
			}
			k.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return 0, ErrNotPositiveDefinite
	}

	weights := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(weights, y); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPositiveDefinite, err)
	}

	g.chol = chol
	g.weights = weights

	lml := -0.5*mat.Dot(y, weights) - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
	return lml, nil
}

// Predict returns the posterior mean and standard deviation at x in the
// original target units.
func (g *GaussianProcess) Predict(x []float64) (float64, float64) {
	n := len(g.x)
	if n == 0 || g.weights == nil {
		return math.NaN(), math.NaN()
	}

	kstar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		kstar.SetVec(i, g.kernel.Eval(x, g.x[i]))
	}

	mean := mat.Dot(kstar, g.weights)

	v := mat.NewVecDense(n, nil)
	if err := g.chol.SolveVecTo(v, kstar); err != nil {
		return math.NaN(), math.NaN()
	}
	variance := g.kernel.Eval(x, x) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}

	return mean*g.yStd + g.yMean, math.Sqrt(variance) * g.yStd
}
