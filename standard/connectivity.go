// Package standard provides the observational components every client carries.
package standard

import (
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// trackWindow is how long submission outcomes are kept.
const trackWindow = time.Hour

// Submission is a single report sent to an endpoint.
type Submission struct {
	Timestamp time.Time
	Kind      string
	Success   bool
	Latency   time.Duration
	Error     string
}

// endpoint tracks submissions to a single URL.
type endpoint struct {
	url   string
	calls []Submission
}

// ConnectivityTracker records the outcome of every submission per endpoint.
// It is purely observational: nothing in the widgets reads it back to decide
// whether to send.
type ConnectivityTracker struct {
	mu        sync.Mutex
	clock     quartz.Clock
	endpoints map[string]*endpoint
}

// NewConnectivityTracker creates a tracker. A nil clock uses the real clock.
func NewConnectivityTracker(clock quartz.Clock) *ConnectivityTracker {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &ConnectivityTracker{
		clock:     clock,
		endpoints: make(map[string]*endpoint),
	}
}

// TrackSuccess records a submission that got a 2xx response.
func (t *ConnectivityTracker) TrackSuccess(url, kind string, latency time.Duration) {
	t.track(url, Submission{Kind: kind, Success: true, Latency: latency})
}

// TrackFailure records a submission that failed at the network or HTTP level.
func (t *ConnectivityTracker) TrackFailure(url, kind string, latency time.Duration, errorMsg string) {
	t.track(url, Submission{Kind: kind, Success: false, Latency: latency, Error: errorMsg})
}

func (t *ConnectivityTracker) track(url string, s Submission) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	s.Timestamp = now.UTC()

	ep, ok := t.endpoints[url]
	if !ok {
		ep = &endpoint{url: url}
		t.endpoints[url] = ep
	}
	ep.calls = append(ep.calls, s)
	prune(ep, now.Add(-trackWindow))
}

// prune drops calls older than cutoff. Calls are appended in time order.
func prune(ep *endpoint, cutoff time.Time) {
	for i, call := range ep.calls {
		if call.Timestamp.After(cutoff) {
			ep.calls = ep.calls[i:]
			return
		}
	}
	ep.calls = nil
}

// Status summarizes the health of an endpoint over the tracking window.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// EndpointStats is the summary of one endpoint.
type EndpointStats struct {
	URL          string    `json:"url"`
	Status       Status    `json:"status"`
	LastCall     time.Time `json:"last_call"`
	Total        int       `json:"total_calls_1h"`
	Failures     int       `json:"failures_1h"`
	SuccessRate  float64   `json:"success_rate_1h"`
	LatencyP50   int64     `json:"latency_p50_ms"`
	LatencyP95   int64     `json:"latency_p95_ms"`
	LatencyP99   int64     `json:"latency_p99_ms"`
	RecentErrors []string  `json:"recent_errors"`
}

// Stats returns per-endpoint summaries sorted by URL.
func (t *ConnectivityTracker) Stats() []EndpointStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-trackWindow)
	out := make([]EndpointStats, 0, len(t.endpoints))

	for _, ep := range t.endpoints {
		prune(ep, cutoff)
		if len(ep.calls) == 0 {
			continue
		}

		stats := EndpointStats{URL: ep.url, RecentErrors: []string{}}
		latencies := make([]float64, 0, len(ep.calls))
		success := 0
		for _, call := range ep.calls {
			stats.Total++
			if call.Success {
				success++
			} else {
				stats.Failures++
				if len(stats.RecentErrors) < 5 {
					stats.RecentErrors = append(stats.RecentErrors, call.Error)
				}
			}
			latencies = append(latencies, float64(call.Latency.Milliseconds()))
			if call.Timestamp.After(stats.LastCall) {
				stats.LastCall = call.Timestamp
			}
		}

		stats.SuccessRate = float64(success) / float64(stats.Total)
		sort.Float64s(latencies)
		stats.LatencyP50 = int64(percentile(latencies, 0.50))
		stats.LatencyP95 = int64(percentile(latencies, 0.95))
		stats.LatencyP99 = int64(percentile(latencies, 0.99))

		switch {
		case stats.SuccessRate < 0.9:
			stats.Status = StatusUnhealthy
		case stats.SuccessRate < 0.95:
			stats.Status = StatusDegraded
		default:
			stats.Status = StatusHealthy
		}

		out = append(out, stats)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// GetData returns the stats in a JSON-friendly shape.
func (t *ConnectivityTracker) GetData() interface{} {
	return map[string]interface{}{
		"endpoints": t.Stats(),
	}
}

// percentile calculates the percentile of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(float64(len(sorted)-1) * p)
	return sorted[index]
}
