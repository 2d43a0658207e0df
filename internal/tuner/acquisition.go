package tuner

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// ExpectedImprovement is the expected gain over best under a normal
// predictive distribution with the given mean and standard deviation,
// for a maximization objective. It is zero when there is no uncertainty.
func ExpectedImprovement(mean, std, best float64) float64 {
	if std <= 0 {
		return 0
	}
	improvement := mean - best
	z := improvement / std
	return improvement*distuv.UnitNormal.CDF(z) + std*distuv.UnitNormal.Prob(z)
}

// Acquisition returns the expected-improvement surface of a fitted
// surrogate against the incumbent best score.
func Acquisition(s Surrogate, best float64) func(x []float64) float64 {
	return func(x []float64) float64 {
		mean, std := s.Predict(x)
		return ExpectedImprovement(mean, std, best)
	}
}
