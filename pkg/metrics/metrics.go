// Package metrics holds the Prometheus instruments for the headcount service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks participation writes, aggregation cost and live subscribers.
type Metrics struct {
	ParticipationWrites   *prometheus.CounterVec
	ParticipationRejected *prometheus.CounterVec
	BulkFailures          prometheus.Counter
	CascadeOptOuts        prometheus.Counter
	CascadeSkipped        prometheus.Counter
	ComputeDuration       prometheus.Histogram
	StreamSubscribers     prometheus.Gauge
	StreamEvents          *prometheus.CounterVec
	JobsProcessed         *prometheus.CounterVec
}

// New registers every instrument with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ParticipationWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhp_participation_writes_total",
			Help: "Participation records written, by modifier",
		}, []string{"modified_by"}),
		ParticipationRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhp_participation_rejected_total",
			Help: "Participation edits rejected, by error kind",
		}, []string{"kind"}),
		BulkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "mhp_bulk_item_failures_total",
			Help: "Individual items that failed inside bulk updates",
		}),
		CascadeOptOuts: f.NewCounter(prometheus.CounterOpts{
			Name: "mhp_cascade_opt_outs_total",
			Help: "Meals opted out by the work-from-home cascade",
		}),
		CascadeSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "mhp_cascade_skipped_total",
			Help: "Work-from-home changes whose cascade was skipped by the cutoff policy",
		}),
		ComputeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mhp_headcount_compute_duration_seconds",
			Help:    "Duration of headcount aggregation passes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StreamSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "mhp_stream_subscribers",
			Help: "Currently connected live headcount subscribers",
		}),
		StreamEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhp_stream_events_total",
			Help: "Events pushed to live subscribers, by event name",
		}, []string{"event"}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mhp_worker_jobs_total",
			Help: "Background jobs processed, by type and outcome",
		}, []string{"type", "outcome"}),
	}
}

// IncWrite records a stored participation record.
func (m *Metrics) IncWrite(modifiedBy string) {
	if m == nil {
		return
	}
	m.ParticipationWrites.WithLabelValues(modifiedBy).Inc()
}

// IncRejected records a rejected edit.
func (m *Metrics) IncRejected(kind string) {
	if m == nil {
		return
	}
	m.ParticipationRejected.WithLabelValues(kind).Inc()
}

// AddBulkFailures records failed bulk items.
func (m *Metrics) AddBulkFailures(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BulkFailures.Add(float64(n))
}

// AddCascadeOptOuts records meals opted out by a cascade.
func (m *Metrics) AddCascadeOptOuts(n int) {
	if m == nil || n == 0 {
		return
	}
	m.CascadeOptOuts.Add(float64(n))
}

// IncCascadeSkipped records a cascade blocked by policy.
func (m *Metrics) IncCascadeSkipped() {
	if m == nil {
		return
	}
	m.CascadeSkipped.Inc()
}

// ObserveCompute records an aggregation pass.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCompute(start time.Time) {
	if m == nil {
		return
	}
	m.ComputeDuration.Observe(time.Since(start).Seconds())
}

// SubscriberJoined increments the live subscriber gauge.
func (m *Metrics) SubscriberJoined() {
	if m == nil {
		return
	}
	m.StreamSubscribers.Inc()
}

// SubscriberLeft decrements the live subscriber gauge.
func (m *Metrics) SubscriberLeft() {
	if m == nil {
		return
	}
	m.StreamSubscribers.Dec()
}

// IncEvent records an event pushed to a subscriber.
func (m *Metrics) IncEvent(event string) {
	if m == nil {
		return
	}
	m.StreamEvents.WithLabelValues(event).Inc()
}

// IncJob records a processed background job.
func (m *Metrics) IncJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
}
