package metrics

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the single sample of a counter or gauge.
func value(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var pb dto.Metric
	if err := (<-ch).Write(&pb); err != nil {
		t.Fatal(err)
	}
	if pb.Counter != nil {
		return pb.Counter.GetValue()
	}
	return pb.Gauge.GetValue()
}

func TestRegistry_RecordSample(t *testing.T) {
	r := New()

	r.RecordSample("pdu0", 512.5, nil)
	r.RecordSample("pdu0", math.NaN(), errors.New("timeout"))
	r.RecordSample("pdu1", 100, nil)

	if got := value(t, r.samples.WithLabelValues("pdu0")); got != 2 {
		t.Errorf("pdu0 samples = %v, want 2", got)
	}
	if got := value(t, r.readFailures.WithLabelValues("pdu0")); got != 1 {
		t.Errorf("pdu0 failures = %v, want 1", got)
	}
	if got := value(t, r.meterWatts.WithLabelValues("pdu0")); got != 512.5 {
		t.Errorf("pdu0 watts = %v, want the last good reading", got)
	}
}

func TestRegistry_RecordEvaluationAndRun(t *testing.T) {
	r := New()

	r.RecordEvaluation("seed", 2.2, 1440, 40, 40)
	r.RecordEvaluation("iterate", 1.7, 997, 52, 52)
	r.RecordRun(90*time.Second, 1200, true)
	r.RecordRun(5*time.Second, math.NaN(), false)

	if got := value(t, r.evaluations.WithLabelValues("iterate")); got != 1 {
		t.Errorf("iterate evaluations = %v", got)
	}
	if got := value(t, r.gpuMHz); got != 997 {
		t.Errorf("gpu mhz = %v", got)
	}
	if got := value(t, r.bestScore); got != 52 {
		t.Errorf("best = %v", got)
	}
	if got := value(t, r.parseFailures); got != 1 {
		t.Errorf("parse failures = %v", got)
	}
	if got := value(t, r.windowWatts); got != 1200 {
		t.Errorf("window watts = %v, NaN must not overwrite", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.RecordSample("pdu0", 10, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `codvfs_power_samples_total{meter="pdu0"} 1`) {
		t.Errorf("exposition missing sample counter:\n%s", rec.Body.String())
	}
}
