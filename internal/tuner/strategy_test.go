package tuner

import (
	"errors"
	"math"
	"testing"
)

var testBounds = Bounds{Lower: []float64{1.2, 0.135}, Upper: []float64{2.2, 1.44}}

func inBounds(b Bounds, x []float64) bool {
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

func TestNewStrategy(t *testing.T) {
	tests := []struct {
		typ     StrategyType
		want    string
		wantErr bool
	}{
		{typ: StrategyMultiStart, want: "multistart"},
		{typ: StrategyRandom, want: "random"},
		{typ: "annealing", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			s, err := NewStrategy(tt.typ, StrategyConfig{Restarts: 3, Samples: 10})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStrategy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && s.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.want)
			}
			if tt.typ.IsValid() == tt.wantErr {
				t.Errorf("IsValid() = %v", tt.typ.IsValid())
			}
		})
	}
}

func TestStrategies_FindPeakInsideBounds(t *testing.T) {
	// smooth peak at (1.7, 0.8)
	peak := func(x []float64) float64 {
		return -((x[0]-1.7)*(x[0]-1.7) + (x[1]-0.8)*(x[1]-0.8))
	}

	strategies := []Strategy{
		&MultiStart{Restarts: 5, EvalsPerStart: 200},
		&RandomSearch{Samples: 2000},
	}

	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			x, err := s.Maximize(peak, testBounds, testRand())
			if err != nil {
				t.Fatalf("Maximize() error = %v", err)
			}
			if !inBounds(testBounds, x) {
				t.Fatalf("Maximize() = %v outside bounds", x)
			}
			if math.Abs(x[0]-1.7) > 0.05 || math.Abs(x[1]-0.8) > 0.05 {
				t.Errorf("Maximize() = %v, want near (1.7, 0.8)", x)
			}
		})
	}
}

func TestStrategies_PeakOutsideBoundsClamped(t *testing.T) {
	// increasing in both coordinates, so the best legal point is the upper corner
	slope := func(x []float64) float64 { return x[0] + x[1] }

	for _, s := range []Strategy{&MultiStart{Restarts: 3}, &RandomSearch{Samples: 500}} {
		t.Run(s.Name(), func(t *testing.T) {
			x, err := s.Maximize(slope, testBounds, testRand())
			if err != nil {
				t.Fatalf("Maximize() error = %v", err)
			}
			if !inBounds(testBounds, x) {
				t.Errorf("Maximize() = %v outside bounds", x)
			}
		})
	}
}

func TestStrategies_NonFiniteAcquisition(t *testing.T) {
	nan := func([]float64) float64 { return math.NaN() }

	for _, s := range []Strategy{&MultiStart{Restarts: 2}, &RandomSearch{Samples: 5}} {
		t.Run(s.Name(), func(t *testing.T) {
			_, err := s.Maximize(nan, testBounds, testRand())
			if !errors.Is(err, ErrNonFinite) {
				t.Errorf("Maximize() error = %v, want %v", err, ErrNonFinite)
			}
		})
	}
}
