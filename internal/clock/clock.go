// Package clock checks the local clock against an NTP server. Power
// samples and workload markers are matched by wall time, so a drifting
// clock shifts every scoring window.
package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

var ErrClockSkew = errors.New("clock: local clock skew exceeds limit")

// QueryFunc returns the offset of the local clock from the server.
type QueryFunc func(server string, timeout time.Duration) (time.Duration, error)

// NTPQuery asks an NTP server for the local clock offset.
func NTPQuery(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return 0, fmt.Errorf("ntp response from %s: %w", server, err)
	}
	return resp.ClockOffset, nil
}

type Checker struct {
	Server  string
	Timeout time.Duration
	MaxSkew time.Duration
	Query   QueryFunc
}

// Check returns the measured offset. The error wraps ErrClockSkew when the
// offset is larger than MaxSkew in either direction; the offset is still
// returned in that case.
func (c Checker) Check() (time.Duration, error) {
	query := c.Query
	if query == nil {
		query = NTPQuery
	}

	offset, err := query(c.Server, c.Timeout)
	if err != nil {
		return 0, err
	}

	if c.MaxSkew > 0 && offset.Abs() > c.MaxSkew {
		return offset, fmt.Errorf("%w: offset %s, limit %s", ErrClockSkew, offset, c.MaxSkew)
	}
	return offset, nil
}
