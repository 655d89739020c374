package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ChartLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pricelens",
			Subsystem: "chart",
			Name:      "latency_seconds",
			Help:      "Latency of chart endpoints",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint"},
	)

	ChartErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "chart",
			Name:      "errors_total",
			Help:      "Errors by chart endpoint",
		},
		[]string{"endpoint"},
	)

	// DroppedPoints counts samples rejected while preparing a series,
	// labeled series or benchmark.
	DroppedPoints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "series",
			Name:      "dropped_points_total",
			Help:      "Input samples dropped for a missing time or invalid price",
		},
		[]string{"role"},
	)

	MemoLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricelens",
			Subsystem: "analysis",
			Name:      "memo_lookups_total",
			Help:      "Analysis memo lookups by result",
		},
		[]string{"result"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pricelens",
			Subsystem: "analysis",
			Name:      "compute_seconds",
			Help:      "Time to prepare, classify and project a series",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(ChartLatency, ChartErrors, DroppedPoints, MemoLookups, AnalysisDuration)
	})
}
