// Package metrics exposes Prometheus instrumentation for the liveness
// service's HTTP surface and verification pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liveness_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})

	ChallengesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "liveness_challenges_generated_total",
		Help: "Total challenges generated.",
	})

	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liveness_verifications_total",
		Help: "Total verify and attack_sim calls by result.",
	}, []string{"result"})

	LivenessScoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liveness_score",
		Help:    "Distribution of computed liveness scores.",
		Buckets: []float64{0, 20, 40, 50, 60, 70, 80, 90, 100},
	})
)

// ObserveRequest records one completed HTTP request.
func ObserveRequest(route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveVerification records the outcome of one verify or attack_sim call.
func ObserveVerification(passed bool, score float64) {
	result := "fail"
	if passed {
		result = "pass"
	}
	VerificationsTotal.WithLabelValues(result).Inc()
	LivenessScoreHistogram.Observe(score)
}
