package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_runs_started_total",
			Help: "Reservation runs started",
		},
		[]string{"run_type"}, // manual|autorun
	)

	RunOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_run_outcomes_total",
			Help: "Terminal run outcomes",
		},
		[]string{"state"}, // success|failed|stopped
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courtbook_run_duration_seconds",
			Help:    "Duration of a full reservation run",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(RunsStarted)
	prometheus.MustRegister(RunOutcomes)
	prometheus.MustRegister(RunDuration)
}

func Register(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
