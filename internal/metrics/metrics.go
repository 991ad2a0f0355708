// Package metrics collects and exposes Prometheus metrics for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the services. Pass Nop{} where
// metrics are not wanted.
type Recorder interface {
	RecordSubmission()
	RecordPointsAwarded(points int64)
	RecordPointsFailure()
	RecordStatusChange(status string)
	RecordLogin(role string)
	RecordIdentityError(kind string)
	RecordNotifyFailure()
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	submissions    prometheus.Counter
	pointsAwarded  prometheus.Counter
	pointsFailed   prometheus.Counter
	statusChanges  *prometheus.CounterVec
	logins         *prometheus.CounterVec
	identityErrors *prometheus.CounterVec
	notifyFailed   prometheus.Counter
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewaste_submissions_total",
			Help: "Submissions created.",
		}),
		pointsAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewaste_points_awarded_total",
			Help: "Eco points awarded to users.",
		}),
		pointsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewaste_points_failed_total",
			Help: "Point awards that failed after the submission was stored.",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ewaste_status_changes_total",
			Help: "Submission status changes by new status.",
		}, []string{"status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ewaste_logins_total",
			Help: "Successful sign-ins by resolved role.",
		}, []string{"role"}),
		identityErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ewaste_identity_errors_total",
			Help: "Identity service failures by kind.",
		}, []string{"kind"}),
		notifyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ewaste_notify_failed_total",
			Help: "Notifications that could not be published.",
		}),
	}

	reg.MustRegister(
		c.submissions,
		c.pointsAwarded,
		c.pointsFailed,
		c.statusChanges,
		c.logins,
		c.identityErrors,
		c.notifyFailed,
	)

	return c
}

func (c *Collector) RecordSubmission() {
	c.submissions.Inc()
}

func (c *Collector) RecordPointsAwarded(points int64) {
	c.pointsAwarded.Add(float64(points))
}

func (c *Collector) RecordPointsFailure() {
	c.pointsFailed.Inc()
}

func (c *Collector) RecordStatusChange(status string) {
	c.statusChanges.WithLabelValues(status).Inc()
}

func (c *Collector) RecordLogin(role string) {
	c.logins.WithLabelValues(role).Inc()
}

func (c *Collector) RecordIdentityError(kind string) {
	c.identityErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordNotifyFailure() {
	c.notifyFailed.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordSubmission() {}
func (Nop) RecordPointsAwarded(int64) {}
func (Nop) RecordPointsFailure() {}
func (Nop) RecordStatusChange(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordIdentityError(string) {}
func (Nop) RecordNotifyFailure() {}
