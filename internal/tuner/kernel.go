package tuner

import "math"

// Matern is the Matérn covariance with unit amplitude and an isotropic
// length scale. Nu must be 0.5, 1.5 or 2.5.
type Matern struct {
	Nu          float64
	LengthScale float64
}

func (k Matern) Eval(a, b []float64) float64 {
	var sq float64
	for i := range a {
		d := a[i] - b[i]
		sq += d * d
	}
	r := math.Sqrt(sq) / k.LengthScale

	switch k.Nu {
	case 0.5:
		return math.Exp(-r)
	case 2.5:
		s := math.Sqrt(5) * r
		return (1 + s + s*s/3) * math.Exp(-s)
	default:
		s := math.Sqrt(3) * r
		return (1 + s) * math.Exp(-s)
	}
}
