package power

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout of meter log lines.
const TimeLayout = "2006-01-02 15:04:05.000000"

// parseLayout accepts the fractional part being shorter or absent.
const parseLayout = "2006-01-02 15:04:05.999999"

var ErrMalformedLine = errors.New("power: malformed log line")

// Sample is one meter reading. Watts is NaN when the read failed.
type Sample struct {
	Time  time.Time
	Watts float64
}

// FormatSample renders a sample as a log line without the newline.
func FormatSample(s Sample) string {
	return fmt.Sprintf("%s,%.1f", s.Time.Format(TimeLayout), s.Watts)
}

// ParseSample parses a log line written by FormatSample; times are read in loc.
func ParseSample(line string, loc *time.Location) (Sample, error) {
	ts, value, ok := strings.Cut(strings.TrimSpace(line), ",")
	if !ok || strings.Contains(value, ",") {
		return Sample{}, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	t, err := time.ParseInLocation(parseLayout, ts, loc)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	watts, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	return Sample{Time: t, Watts: watts}, nil
}

// finite reports whether a sample carries a usable reading.
func (s Sample) finite() bool {
	return !math.IsNaN(s.Watts) && !math.IsInf(s.Watts, 0)
}
