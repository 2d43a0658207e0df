package tuner

import (
	"math"
	"testing"
)

func TestExpectedImprovement(t *testing.T) {
	// phi(0) = 1/sqrt(2*pi)
	phi0 := 1 / math.Sqrt(2*math.Pi)

	tests := []struct {
		name string
		mean float64
		std  float64
		best float64
		want float64
	}{
		{name: "no uncertainty", mean: 10, std: 0, best: 1, want: 0},
		{name: "negative std", mean: 10, std: -1, best: 1, want: 0},
		{name: "mean at incumbent", mean: 1, std: 1, best: 1, want: phi0},
		{name: "scaled std", mean: 1, std: 2, best: 1, want: 2 * phi0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedImprovement(tt.mean, tt.std, tt.best)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ExpectedImprovement(%v, %v, %v) = %v, want %v", tt.mean, tt.std, tt.best, got, tt.want)
			}
		})
	}
}

func TestExpectedImprovement_Monotone(t *testing.T) {
	low := ExpectedImprovement(0, 1, 1)
	high := ExpectedImprovement(2, 1, 1)
	if !(high > low) {
		t.Errorf("higher mean should improve EI: low=%v high=%v", low, high)
	}
	if low <= 0 {
		t.Errorf("EI with uncertainty should be positive, got %v", low)
	}

	// far above the incumbent EI approaches the plain improvement
	if got := ExpectedImprovement(101, 1, 1); math.Abs(got-100) > 1e-9 {
		t.Errorf("EI = %v, want ~100", got)
	}
}

type fixedSurrogate struct {
	mean, std float64
}

func (f fixedSurrogate) Fit([][]float64, []float64) error { return nil }
func (f fixedSurrogate) Predict([]float64) (float64, float64) {
	return f.mean, f.std
}

func TestAcquisition(t *testing.T) {
	acq := Acquisition(fixedSurrogate{mean: 1, std: 0}, 0)
	if got := acq([]float64{0, 0}); got != 0 {
		t.Errorf("acquisition with zero std = %v, want 0", got)
	}

	acq = Acquisition(fixedSurrogate{mean: 3, std: 1}, 1)
	if got, want := acq([]float64{0, 0}), ExpectedImprovement(3, 1, 1); got != want {
		t.Errorf("acquisition = %v, want %v", got, want)
	}
}
