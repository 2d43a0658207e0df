package power

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrInvalidWindow = errors.New("power: invalid time window")

// Window is a closed time interval [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both ends are set and Start precedes End.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// MeterAverage is the window average of one meter log.
type MeterAverage struct {
	Path    string  `json:"path"`
	Watts   float64 `json:"watts"`
	Samples int     `json:"samples"`
	// Failed counts NaN samples inside the window.
	Failed int `json:"failed"`
}

// Reading is the aggregate power over a window.
type Reading struct {
	Total  float64        `json:"total_watts"`
	Meters []MeterAverage `json:"meters"`
}

// WindowAggregator averages meter logs over a time window. Logs are
// expected in time order, as the sampler writes them.
type WindowAggregator struct {
	paths    []string
	location *time.Location
}

func NewWindowAggregator(paths []string, loc *time.Location) *WindowAggregator {
	if loc == nil {
		loc = time.Local
	}
	return &WindowAggregator{paths: paths, location: loc}
}

// Average returns the sum over meters of each meter's mean power inside
// the window. A meter with no usable samples contributes 0.
func (a *WindowAggregator) Average(w Window) (Reading, error) {
	if !w.Valid() {
		return Reading{}, fmt.Errorf("%w: [%s, %s]", ErrInvalidWindow, w.Start, w.End)
	}

	reading := Reading{Meters: make([]MeterAverage, 0, len(a.paths))}
	for _, path := range a.paths {
		avg, err := a.averageFile(path, w)
		if err != nil {
			return Reading{}, err
		}
		reading.Total += avg.Watts
		reading.Meters = append(reading.Meters, avg)
	}
	return reading, nil
}

func (a *WindowAggregator) averageFile(path string, w Window) (MeterAverage, error) {
	avg := MeterAverage{Path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return avg, nil
		}
		return avg, fmt.Errorf("failed to open power log: %w", err)
	}
	defer f.Close()

	var sum float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		s, err := ParseSample(scanner.Text(), a.location)
		if err != nil {
			continue
		}
		if s.Time.Before(w.Start) {
			continue
		}
		if s.Time.After(w.End) {
			break
		}
		if !s.finite() {
			avg.Failed++
			continue
		}
		sum += s.Watts
		avg.Samples++
	}
	if err := scanner.Err(); err != nil {
		return avg, fmt.Errorf("failed to read power log: %w", err)
	}

	if avg.Samples > 0 {
		avg.Watts = sum / float64(avg.Samples)
	}
	return avg, nil
}
