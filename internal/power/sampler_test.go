package power

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/haskel/codvfs/internal/config"
)

type brokenMeter struct{}

func (brokenMeter) Name() string { return "broken" }
func (brokenMeter) ReadWatts(context.Context) (float64, error) {
	return 0, errors.New("pdu unreachable")
}

type countingRecorder struct {
	mu       sync.Mutex
	samples  map[string]int
	failures map[string]int
}

func (r *countingRecorder) RecordSample(meter string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[meter]++
	if err != nil {
		r.failures[meter]++
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func readSamples(t *testing.T, path string) []Sample {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out []Sample
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		s, err := ParseSample(scanner.Text(), time.Local)
		if err != nil {
			t.Fatalf("bad line %q: %v", scanner.Text(), err)
		}
		out = append(out, s)
	}
	return out
}

func TestSampler_WritesEveryMeterAndSurvivesFailures(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "logs", "power_0.out")
	bad := filepath.Join(dir, "logs", "power_1.out")

	rec := &countingRecorder{samples: map[string]int{}, failures: map[string]int{}}
	s := NewSampler([]Channel{
		{Meter: NewStaticMeter("pdu0", 250), Path: good},
		{Meter: brokenMeter{}, Path: bad},
	}, SamplerConfig{Interval: 10 * time.Millisecond, ReadTimeout: time.Second}, rec, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrSamplerRunning) {
		t.Errorf("second Start() error = %v, want %v", err, ErrSamplerRunning)
	}

	time.Sleep(80 * time.Millisecond)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	goodSamples := readSamples(t, good)
	badSamples := readSamples(t, bad)
	if len(goodSamples) < 2 {
		t.Fatalf("got %d samples, want several", len(goodSamples))
	}
	if len(goodSamples) != len(badSamples) {
		t.Errorf("meters logged %d and %d lines, want equal", len(goodSamples), len(badSamples))
	}

	for i, s := range goodSamples {
		if s.Watts != 250 {
			t.Errorf("sample %d = %v, want 250", i, s.Watts)
		}
		if !math.IsNaN(badSamples[i].Watts) {
			t.Errorf("failed read %d = %v, want NaN", i, badSamples[i].Watts)
		}
		if !s.Time.Equal(badSamples[i].Time) {
			t.Errorf("sample %d timestamps differ: %v vs %v", i, s.Time, badSamples[i].Time)
		}
		if i > 0 && s.Time.Before(goodSamples[i-1].Time) {
			t.Errorf("sample %d is out of order", i)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.failures["broken"] != rec.samples["broken"] || rec.failures["pdu0"] != 0 {
		t.Errorf("recorder = %+v / %+v", rec.samples, rec.failures)
	}
}

func TestSampler_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "power.out")
	s := NewSampler([]Channel{{Meter: NewStaticMeter("pdu", 1), Path: path}},
		SamplerConfig{Interval: 5 * time.Millisecond}, nil, testLogger())

	for range 2 {
		if err := s.Start(context.Background()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
		if err := s.Stop(); err != nil {
			t.Fatal(err)
		}
	}

	if n := len(readSamples(t, path)); n < 2 {
		t.Errorf("got %d samples after two runs", n)
	}
}

func TestSampler_ContextCancelStopsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "power.out")
	s := NewSampler([]Channel{{Meter: NewStaticMeter("pdu", 1), Path: path}},
		SamplerConfig{Interval: 5 * time.Millisecond}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := s.Stop(); err != nil {
		t.Errorf("Stop() after cancel error = %v", err)
	}
}

func TestNewMeters(t *testing.T) {
	meters, err := NewMeters([]config.MeterConfig{
		{Name: "a", Type: "static", Watts: 12},
		{Name: "b", Type: "snmp", Address: "192.0.2.1", Port: 161, Community: "public", OID: "1.3.6.1.4.1.23273.4.4.0", Version: "1", Scale: 0.1},
	}, time.Second)
	if err != nil {
		t.Fatalf("NewMeters() error = %v", err)
	}
	if meters[0].Name() != "a" || meters[1].Name() != "b" {
		t.Errorf("names = %s, %s", meters[0].Name(), meters[1].Name())
	}
	w, err := meters[0].ReadWatts(context.Background())
	if err != nil || w != 12 {
		t.Errorf("static ReadWatts() = %v, %v", w, err)
	}

	if _, err := NewMeters([]config.MeterConfig{{Name: "x", Type: "modbus"}}, time.Second); err == nil {
		t.Error("unknown meter type should fail")
	}
	if _, err := NewMeters([]config.MeterConfig{{Name: "x", Type: "snmp", Port: 161, Version: "3"}}, time.Second); err == nil {
		t.Error("snmp v3 should be rejected")
	}
}
