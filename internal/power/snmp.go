package power

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/haskel/codvfs/internal/config"
)

// SNMPMeter reads a PDU power gauge with a single SNMP GET. The raw
// integer is multiplied by Scale to get watts.
type SNMPMeter struct {
	name      string
	target    string
	port      uint16
	community string
	oid       string
	version   gosnmp.SnmpVersion
	scale     float64
	retries   int
	timeout   time.Duration
}

func NewSNMPMeter(cfg config.MeterConfig, timeout time.Duration) (*SNMPMeter, error) {
	var version gosnmp.SnmpVersion
	switch cfg.Version {
	case "", "1":
		version = gosnmp.Version1
	case "2c":
		version = gosnmp.Version2c
	default:
		return nil, fmt.Errorf("meter %q: unsupported snmp version %q", cfg.Name, cfg.Version)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("meter %q: invalid port %d", cfg.Name, cfg.Port)
	}

	return &SNMPMeter{
		name:      cfg.Name,
		target:    cfg.Address,
		port:      uint16(cfg.Port),
		community: cfg.Community,
		oid:       cfg.OID,
		version:   version,
		scale:     cfg.Scale,
		retries:   cfg.Retries,
		timeout:   timeout,
	}, nil
}

func (m *SNMPMeter) Name() string {
	return m.name
}

func (m *SNMPMeter) ReadWatts(ctx context.Context) (float64, error) {
	client := &gosnmp.GoSNMP{
		Target:    m.target,
		Port:      m.port,
		Community: m.community,
		Version:   m.version,
		Timeout:   m.timeout,
		Retries:   m.retries,
		Context:   ctx,
	}
	if err := client.Connect(); err != nil {
		return 0, fmt.Errorf("snmp connect %s: %w", m.target, err)
	}
	defer client.Conn.Close()

	packet, err := client.Get([]string{m.oid})
	if err != nil {
		return 0, fmt.Errorf("snmp get %s %s: %w", m.target, m.oid, err)
	}
	if packet.Error != gosnmp.NoError {
		return 0, fmt.Errorf("snmp get %s %s: %v", m.target, m.oid, packet.Error)
	}
	if len(packet.Variables) == 0 {
		return 0, fmt.Errorf("snmp get %s %s: empty response", m.target, m.oid)
	}

	return m.decode(packet.Variables[0])
}

func (m *SNMPMeter) decode(pdu gosnmp.SnmpPDU) (float64, error) {
	var raw float64
	switch pdu.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.Counter64, gosnmp.Uinteger32:
		raw, _ = new(big.Float).SetInt(gosnmp.ToBigInt(pdu.Value)).Float64()
	case gosnmp.OpaqueFloat:
		v, ok := pdu.Value.(float32)
		if !ok {
			return 0, fmt.Errorf("snmp %s: %s: unexpected float value %T", m.target, pdu.Name, pdu.Value)
		}
		raw = float64(v)
	case gosnmp.OpaqueDouble:
		v, ok := pdu.Value.(float64)
		if !ok {
			return 0, fmt.Errorf("snmp %s: %s: unexpected double value %T", m.target, pdu.Name, pdu.Value)
		}
		raw = v
	case gosnmp.OctetString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return 0, fmt.Errorf("snmp %s: %s: unexpected string value %T", m.target, pdu.Name, pdu.Value)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
		if err != nil {
			return 0, fmt.Errorf("snmp %s: %s: parse %q: %w", m.target, pdu.Name, b, err)
		}
		raw = v
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return 0, fmt.Errorf("snmp %s: no value for %s (%v)", m.target, pdu.Name, pdu.Type)
	default:
		return 0, fmt.Errorf("snmp %s: %s: unsupported type %v", m.target, pdu.Name, pdu.Type)
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("snmp %s: %s: non-finite value", m.target, pdu.Name)
	}
	return raw * m.scale, nil
}
