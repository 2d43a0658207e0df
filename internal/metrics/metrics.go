// Package metrics exposes tuning progress and power sampling as
// Prometheus collectors on a private registry.
package metrics

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codvfs"

type Registry struct {
	reg *prometheus.Registry

	samples       *prometheus.CounterVec
	readFailures  *prometheus.CounterVec
	meterWatts    *prometheus.GaugeVec
	evaluations   *prometheus.CounterVec
	parseFailures prometheus.Counter
	lastScore     prometheus.Gauge
	bestScore     prometheus.Gauge
	cpuGHz        prometheus.Gauge
	gpuMHz        prometheus.Gauge
	windowWatts   prometheus.Gauge
	runDuration   prometheus.Histogram
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "power_samples_total",
			Help:      "Power meter reads, successful or not.",
		}, []string{"meter"}),
		readFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "power_read_failures_total",
			Help:      "Power meter reads that failed and were logged as NaN.",
		}, []string{"meter"}),
		meterWatts: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "power_watts",
			Help:      "Last successful reading of each power meter.",
		}, []string{"meter"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluated candidates by search phase.",
		}, []string{"phase"}),
		parseFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "Workload runs whose output could not be scored.",
		}),
		lastScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_score",
			Help:      "Score of the most recent evaluation (Gflops/W).",
		}),
		bestScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "best_score",
			Help:      "Best score seen in this session (Gflops/W).",
		}),
		cpuGHz: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_cpu_ghz",
			Help:      "CPU frequency of the most recent candidate.",
		}),
		gpuMHz: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "candidate_gpu_mhz",
			Help:      "GPU graphics clock of the most recent candidate.",
		}),
		windowWatts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_power_watts",
			Help:      "Total power averaged over the most recent execution window.",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workload_duration_seconds",
			Help:      "Wall-clock duration of scored workload runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

// RecordSample implements power.Recorder.
func (r *Registry) RecordSample(meter string, watts float64, err error) {
	r.samples.WithLabelValues(meter).Inc()
	if err != nil || math.IsNaN(watts) {
		r.readFailures.WithLabelValues(meter).Inc()
		return
	}
	r.meterWatts.WithLabelValues(meter).Set(watts)
}

// RecordEvaluation tracks one scored candidate.
func (r *Registry) RecordEvaluation(phase string, cpuGHz float64, gpuMHz int, score, best float64) {
	r.evaluations.WithLabelValues(phase).Inc()
	r.cpuGHz.Set(cpuGHz)
	r.gpuMHz.Set(float64(gpuMHz))
	r.lastScore.Set(score)
	r.bestScore.Set(best)
}

// RecordRun tracks one workload run and the power of its window; NaN
// power is skipped.
func (r *Registry) RecordRun(duration time.Duration, windowWatts float64, parsed bool) {
	r.runDuration.Observe(duration.Seconds())
	if !parsed {
		r.parseFailures.Inc()
	}
	if !math.IsNaN(windowWatts) {
		r.windowWatts.Set(windowWatts)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the registry for tests and embedding.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
