package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes Prometheus instruments for the desk.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	claims          *prometheus.CounterVec
	fulfillments    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	creditsGranted  prometheus.Counter
	creditsConsumed prometheus.Counter
	payments        *prometheus.CounterVec
	notifyFailures  *prometheus.CounterVec
	rateLimit       *prometheus.CounterVec
	ticketBackend   *prometheus.GaugeVec
	dispatchEvents  *prometheus.CounterVec
	dispatchTime    *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	jobRuns         *prometheus.CounterVec
	jobErrors       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec

	otel *otelInstruments
}

// New registers the desk collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_submissions_total",
			Help: "Submissions by result.",
		}, []string{"result"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_claims_total",
			Help: "Claim attempts by result.",
		}, []string{"result"}),
		fulfillments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_fulfillments_total",
			Help: "Fulfillment attempts by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_ticket_transitions_total",
			Help: "Ticket status transitions.",
		}, []string{"from", "to"}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vindesk_credits_granted_total",
			Help: "Report credits granted by completed payments.",
		}),
		creditsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vindesk_credits_consumed_total",
			Help: "Report credits consumed by submissions.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_payments_total",
			Help: "Payment records by status change.",
		}, []string{"status", "tier"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_notify_failures_total",
			Help: "Outbound notification failures by channel.",
		}, []string{"channel"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_rate_limit_decisions_total",
			Help: "Submission rate limit decisions.",
		}, []string{"decision"}),
		ticketBackend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vindesk_ticket_backend",
			Help: "Active ticket backend (1 for the backend in use).",
		}, []string{"backend"}),
		dispatchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_dispatch_events_total",
			Help: "Inbound events handled by kind and status.",
		}, []string{"kind", "status"}),
		dispatchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vindesk_dispatch_duration_seconds",
			Help:    "Inbound event handling latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vindesk_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_scheduler_job_runs_total",
			Help: "Scheduler job runs.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vindesk_scheduler_job_errors_total",
			Help: "Scheduler job failures by reason.",
		}, []string{"job", "reason"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vindesk_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.claims,
		m.fulfillments,
		m.transitions,
		m.creditsGranted,
		m.creditsConsumed,
		m.payments,
		m.notifyFailures,
		m.rateLimit,
		m.ticketBackend,
		m.dispatchEvents,
		m.dispatchTime,
		m.httpRequests,
		m.httpDuration,
		m.jobRuns,
		m.jobErrors,
		m.jobDuration,
	)
	return m
}

// Registry returns the gatherer served on /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordSubmission(result string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) RecordClaim(result string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) RecordFulfillment(result string) {
	if m == nil {
		return
	}
	m.fulfillments.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Metrics) RecordCreditsGranted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.creditsGranted.Add(float64(n))
	m.otel.addLedger("credit", n)
}

func (m *Metrics) RecordCreditConsumed() {
	if m == nil {
		return
	}
	m.creditsConsumed.Inc()
	m.otel.addLedger("debit", 1)
}

func (m *Metrics) RecordPayment(status, tier string) {
	if m == nil {
		return
	}
	status, tier = normalizeLabel(status), normalizeLabel(tier)
	m.payments.WithLabelValues(status, tier).Inc()
	m.otel.addPayment(status, tier)
}

func (m *Metrics) RecordNotifyFailure(channel string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "denied"
	}
	m.rateLimit.WithLabelValues(decision).Inc()
	m.otel.addRateLimit(decision)
}

// SetTicketBackend marks backend as the active one and zeroes the others.
func (m *Metrics) SetTicketBackend(backend string) {
	if m == nil {
		return
	}
	m.ticketBackend.Reset()
	m.ticketBackend.WithLabelValues(normalizeLabel(backend)).Set(1)
}

func (m *Metrics) ObserveDispatch(kind string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	kind = normalizeLabel(kind)
	m.dispatchEvents.WithLabelValues(kind, status).Inc()
	m.dispatchTime.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Scheduler job error reasons.
const (
	JobReasonTimeout = "deadline_exceeded"
	JobReasonError   = "error"
)

// ObserveJob records one scheduler job run. A nil err counts as success.
func (m *Metrics) ObserveJob(job string, err error, timedOut bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobRuns.WithLabelValues(job).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
	switch {
	case timedOut:
		m.jobErrors.WithLabelValues(job, JobReasonTimeout).Inc()
	case err != nil:
		m.jobErrors.WithLabelValues(job, JobReasonError).Inc()
	}
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		method := strings.ToUpper(c.Request.Method)
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return strings.ToLower(value)
}
