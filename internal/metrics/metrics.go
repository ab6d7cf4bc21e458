// Package metrics exposes Prometheus counters for ledger activity and HTTP traffic.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Outcome labels for ledger mutations.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Recorder struct {
	registry *prometheus.Registry

	mutations      *prometheus.CounterVec
	conflicts      *prometheus.CounterVec
	lowBalance     prometheus.Counter
	escrowEvents   *prometheus.CounterVec
	payoutStatuses *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New builds a Recorder on its own registry, including Go runtime and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Balance mutations by operation, balance target and outcome.",
		}, []string{"operation", "target", "outcome"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Transactions retried after a lock or serialization conflict.",
		}, []string{"operation"}),
		lowBalance: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "low_balance_total",
			Help:      "Debits that left a wallet under its low balance threshold.",
		}),
		escrowEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_events_total",
			Help:      "Escrow lifecycle events.",
		}, []string{"event"}),
		payoutStatuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_status_total",
			Help:      "Payouts entering each status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.mutations, r.conflicts, r.lowBalance, r.escrowEvents,
		r.payoutStatuses, r.httpRequests, r.httpDuration,
	)
	return r
}

func (r *Recorder) Mutation(operation, target, outcome string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(operation, target, outcome).Inc()
}

func (r *Recorder) ConflictRetry(operation string) {
	if r == nil {
		return
	}
	r.conflicts.WithLabelValues(operation).Inc()
}

func (r *Recorder) LowBalance() {
	if r == nil {
		return
	}
	r.lowBalance.Inc()
}

func (r *Recorder) EscrowEvent(event string) {
	if r == nil {
		return
	}
	r.escrowEvents.WithLabelValues(event).Inc()
}

func (r *Recorder) PayoutStatus(status string) {
	if r == nil {
		return
	}
	r.payoutStatuses.WithLabelValues(status).Inc()
}

// ObserveHTTP records one served request. route is the matched route pattern, not the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
