// Package metrics defines the prometheus collectors exported by the wallet
// processes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lnwallet"

// Payment outcomes.
const (
	OutcomeSettled     = "settled"
	OutcomeFailed      = "failed"
	OutcomePending     = "pending"
	OutcomeAlreadyPaid = "already_paid"
	OutcomeFeeExceeded = "fee_exceeded"
	OutcomeIntraLedger = "intraledger"
)

// Metrics groups every collector. Build one per process with New and pass it
// to the components that record into it.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsTotal       *prometheus.CounterVec
	PaymentFeeSats      prometheus.Histogram
	LedgerPostsTotal    *prometheus.CounterVec
	LedgerPostDuration  prometheus.Histogram
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	JobRunsTotal        *prometheus.CounterVec
	MessagesTotal       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PaymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Outgoing payments by outcome.",
		}, []string{"outcome"}),
		PaymentFeeSats: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_fee_sats",
			Help:      "Routing fee paid per settled payment.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1_000, 5_000, 50_000},
		}),
		LedgerPostsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_posts_total",
			Help:      "Ledger transactions posted by type and result.",
		}, []string{"type", "result"}),
		LedgerPostDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_post_duration_seconds",
			Help:      "Time spent posting a ledger transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		JobRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result.",
		}, []string{"job", "result"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Kafka messages handled by topic and result.",
		}, []string{"topic", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PaymentsTotal,
		m.PaymentFeeSats,
		m.LedgerPostsTotal,
		m.LedgerPostDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.JobRunsTotal,
		m.MessagesTotal,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePayment counts a payment outcome; fee is recorded for settled payments only.
func (m *Metrics) ObservePayment(outcome string, feeSats int64) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSettled {
		m.PaymentFeeSats.Observe(float64(feeSats))
	}
}

// ObserveLedgerPost records one posting attempt.
func (m *Metrics) ObserveLedgerPost(kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LedgerPostsTotal.WithLabelValues(kind, result(err)).Inc()
	m.LedgerPostDuration.Observe(elapsed.Seconds())
}

// ObserveJob records one scheduled job run.
func (m *Metrics) ObserveJob(job string, err error) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, result(err)).Inc()
}

// ObserveMessage records one consumed or published message.
func (m *Metrics) ObserveMessage(topic string, err error) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(topic, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
