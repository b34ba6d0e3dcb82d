package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	UsersCreated        prometheus.Counter
	Signins             *prometheus.CounterVec
	PasswordResets      *prometheus.CounterVec
	JobsEnqueued        *prometheus.CounterVec
	JobsProcessed       *prometheus.CounterVec
	JobsDeadLettered    *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "socialid_users_created_total",
			Help: "Total number of users created in the system",
		}),
		Signins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialid_signins_total",
			Help: "Sign-in attempts by outcome",
		}, []string{"outcome"}),
		PasswordResets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialid_password_resets_total",
			Help: "Password reset flow steps",
		}, []string{"stage"}),
		JobsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialid_jobs_enqueued_total",
			Help: "Jobs handed to the queue backend",
		}, []string{"queue", "job"}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialid_jobs_processed_total",
			Help: "Job handler invocations by outcome",
		}, []string{"queue", "job", "outcome"}),
		JobsDeadLettered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialid_jobs_dead_lettered_total",
			Help: "Jobs moved to the dead-letter store",
		}, []string{"queue", "job"}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialid_job_duration_seconds",
			Help:    "Time from first attempt to final outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue", "job"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialid_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementSignins(outcome string) {
	if m == nil {
		return
	}
	m.Signins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementPasswordResets(stage string) {
	if m == nil {
		return
	}
	m.PasswordResets.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncrementJobsEnqueued(queue, job string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(queue, job).Inc()
}

func (m *Metrics) IncrementJobsProcessed(queue, job, outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(queue, job, outcome).Inc()
}

func (m *Metrics) IncrementJobsDeadLettered(queue, job string) {
	if m == nil {
		return
	}
	m.JobsDeadLettered.WithLabelValues(queue, job).Inc()
}

func (m *Metrics) ObserveJobDuration(queue, job string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(queue, job).Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}
