package workload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// markerLayout is the timing marker layout; the fraction is optional.
const markerLayout = "2006-01-02 15:04:05.999999"

var (
	ErrNoResultLine  = errors.New("workload: no result line in output")
	ErrInvalidWindow = errors.New("workload: no valid execution window")
)

// Window is the execution interval bracketed by the last two timing
// markers before the result.
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether both ends are set and Start precedes End.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Result is what one benchmark run reports. Gflops and ExecSeconds are -1
// when no result line was found.
type Result struct {
	Kind        Kind    `json:"kind"`
	Gflops      float64 `json:"gflops"`
	ExecSeconds float64 `json:"exec_seconds"`
	Window      Window  `json:"window"`
}

// Parser extracts a Result from benchmark output.
type Parser struct {
	// TimingPrefix selects timing marker lines.
	TimingPrefix string
	// Offset is added to every marker.
	Offset time.Duration
	// Location the markers are read in; nil means local time.
	Location *time.Location
}

// Parse scans the output once. Each timing marker demotes the current
// marker to the previous one; the last result line wins. Without a result
// line every field keeps its sentinel, the window included; with one, the
// Result is filled even when the window turns out invalid.
func (p Parser) Parse(kind Kind, lines []string) (Result, error) {
	l, ok := layouts[kind]
	if !ok {
		return Result{}, fmt.Errorf("unknown workload: %q", kind)
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}

	res := Result{Kind: kind, Gflops: -1, ExecSeconds: -1}
	var previous, current time.Time
	found := false

	for _, line := range lines {
		if p.TimingPrefix != "" && strings.HasPrefix(line, p.TimingPrefix) {
			if t, err := time.ParseInLocation(markerLayout, strings.TrimSpace(line), loc); err == nil {
				previous, current = current, t.Add(p.Offset)
			}
		}

		if strings.HasPrefix(line, l.resultPrefix) {
			fields := strings.Fields(line)
			if len(fields) <= max(l.execColumn, l.gflopsColumn) {
				continue
			}
			exec, err := strconv.ParseFloat(fields[l.execColumn], 64)
			if err != nil {
				continue
			}
			gflops, err := strconv.ParseFloat(fields[l.gflopsColumn], 64)
			if err != nil {
				continue
			}
			res.ExecSeconds, res.Gflops = exec, gflops
			found = true
		}
	}

	if !found {
		return res, ErrNoResultLine
	}

	res.Window = Window{Start: previous, End: current}
	if !res.Window.Valid() {
		return res, fmt.Errorf("%w: [%s, %s]", ErrInvalidWindow, previous, current)
	}
	return res, nil
}

// ParseFailure reports whether err is a parse failure rather than an
// operational error.
func ParseFailure(err error) bool {
	return errors.Is(err, ErrNoResultLine) || errors.Is(err, ErrInvalidWindow)
}
