// Package power samples PDU power meters into append-only logs and
// averages those logs over a workload's execution window.
package power

import (
	"context"
	"fmt"
	"time"

	"github.com/haskel/codvfs/internal/config"
)

// Meter reads the instantaneous power draw of one outlet group.
type Meter interface {
	Name() string
	ReadWatts(ctx context.Context) (float64, error)
}

// StaticMeter always reports the same draw. It stands in for a PDU in dry
// runs and on machines without networked meters.
type StaticMeter struct {
	name  string
	watts float64
}

func NewStaticMeter(name string, watts float64) *StaticMeter {
	return &StaticMeter{name: name, watts: watts}
}

func (m *StaticMeter) Name() string {
	return m.name
}

func (m *StaticMeter) ReadWatts(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.watts, nil
}

// NewMeters builds one meter per configured entry, in order.
func NewMeters(cfgs []config.MeterConfig, timeout time.Duration) ([]Meter, error) {
	meters := make([]Meter, 0, len(cfgs))
	for _, mc := range cfgs {
		switch mc.Type {
		case "snmp":
			m, err := NewSNMPMeter(mc, timeout)
			if err != nil {
				return nil, err
			}
			meters = append(meters, m)
		case "static":
			meters = append(meters, NewStaticMeter(mc.Name, mc.Watts))
		default:
			return nil, fmt.Errorf("meter %q: unknown type %q", mc.Name, mc.Type)
		}
	}
	return meters, nil
}
