package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "forum"

// VoteMetrics holds Prometheus metrics for the vote ledger.
type VoteMetrics struct {
	VotesApplied  *prometheus.CounterVec
	VoteFailures  *prometheus.CounterVec
	VoteRetries   prometheus.Counter
	ApplyDuration prometheus.Histogram
}

// NewVoteMetrics creates and registers vote metrics on the given registry.
func NewVoteMetrics(reg prometheus.Registerer) *VoteMetrics {
	m := &VoteMetrics{
		VotesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_applied_total",
			Help:      "Total number of votes applied, by target kind and outcome.",
		}, []string{"target", "outcome"}),
		VoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_failures_total",
			Help:      "Total number of rejected or failed votes, by error type.",
		}, []string{"type"}),
		VoteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vote_retries_total",
			Help:      "Total number of vote transactions retried after a write conflict.",
		}),
		ApplyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "vote_apply_duration_seconds",
			Help:      "Duration of vote application including retries.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
	}

	reg.MustRegister(m.VotesApplied, m.VoteFailures, m.VoteRetries, m.ApplyDuration)
	return m
}

func (m *VoteMetrics) ObserveApplied(target, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.VotesApplied.WithLabelValues(target, outcome).Inc()
	m.ApplyDuration.Observe(d.Seconds())
}

func (m *VoteMetrics) ObserveFailure(errType string) {
	if m == nil {
		return
	}
	m.VoteFailures.WithLabelValues(errType).Inc()
}

func (m *VoteMetrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.VoteRetries.Inc()
}

// HTTPMetrics holds Prometheus metrics for the HTTP layer.
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics creates and registers HTTP metrics on the given registry.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests, by route, method and status.",
		}, []string{"route", "method", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}
