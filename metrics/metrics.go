// Package metrics exposes Prometheus counters for widget activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Submission result label values.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Metrics holds the widget counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Clicks      *prometheus.CounterVec
	Flushes     *prometheus.CounterVec
	FlushSize   *prometheus.HistogramVec
	Submissions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
}

// New registers the counters on reg. reg may be nil for unregistered metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thankyou",
			Name:      "clicks_total",
			Help:      "Total number of thank-you clicks received.",
		}, []string{"project"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thankyou",
			Name:      "flushes_total",
			Help:      "Total number of click batches flushed after the inactivity delay.",
		}, []string{"project"}),
		FlushSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "thankyou",
			Name:      "flush_clicks",
			Help:      "Number of clicks carried by each flushed batch.",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}, []string{"project"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thankyou",
			Name:      "submissions_total",
			Help:      "Total number of payload submissions by kind and result.",
		}, []string{"kind", "result"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "thankyou",
			Name:      "validation_rejections_total",
			Help:      "Total number of sends blocked by client-side validation.",
		}, []string{"kind", "reason"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Clicks, m.Flushes, m.FlushSize, m.Submissions, m.Rejections} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *Metrics) RecordClick(project string) {
	if m == nil {
		return
	}
	m.Clicks.WithLabelValues(project).Inc()
}

func (m *Metrics) RecordFlush(project string, clicks int) {
	if m == nil {
		return
	}
	m.Flushes.WithLabelValues(project).Inc()
	m.FlushSize.WithLabelValues(project).Observe(float64(clicks))
}

// RecordSubmission counts a finished submission, failed when err is non-nil.
func (m *Metrics) RecordSubmission(kind string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailed
	}
	m.Submissions.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordRejection(kind, reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(kind, reason).Inc()
}
