// Package telemetry provides Prometheus metrics for the share pipeline and
// correlation-id helpers.
package telemetry

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsReceived   *prometheus.CounterVec // type
	LinksExtracted   prometheus.Counter
	Resolutions      *prometheus.CounterVec // outcome, reason
	FallbackAttempts *prometheus.CounterVec // result
	SharesRecorded   *prometheus.CounterVec // result
	RepliesPosted    *prometheus.CounterVec // result
	DispatchPanics   prometheus.Counter

	// Histograms (seconds)
	DispatchDuration prometheus.Observer
	UpstreamDuration *prometheus.HistogramVec // service, code

	// Gauges
	CircuitOpenGauge *prometheus.GaugeVec // service; 1=open,0=closed
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songshare_events_received_total", Help: "Inbound events by envelope type"}, []string{"type"})
		LinksExtracted = promauto.NewCounter(prometheus.CounterOpts{Name: "songshare_links_extracted_total", Help: "Music links found in messages"})
		Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songshare_resolutions_total", Help: "Link resolutions by outcome and failure reason"}, []string{"outcome", "reason"})
		FallbackAttempts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songshare_fallback_attempts_total", Help: "Fallback lookups by result"}, []string{"result"})
		SharesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songshare_shares_recorded_total", Help: "Share store writes by result"}, []string{"result"})
		RepliesPosted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "songshare_replies_posted_total", Help: "Thread replies by result"}, []string{"result"})
		DispatchPanics = promauto.NewCounter(prometheus.CounterOpts{Name: "songshare_dispatch_panics_total", Help: "Recovered panics while handling a link"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "songshare_dispatch_duration_seconds", Help: "Time to handle one message", Buckets: prometheus.DefBuckets})
		UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "songshare_upstream_duration_seconds", Help: "Outbound call latency", Buckets: prometheus.DefBuckets}, []string{"service", "code"})
		CircuitOpenGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "songshare_circuit_open", Help: "Circuit breaker open=1 closed=0"}, []string{"service"})
	})
}

// CountEvent records an inbound envelope.
func CountEvent(kind string) {
	if EventsReceived != nil {
		EventsReceived.WithLabelValues(kind).Inc()
	}
}

// CountLinks records links extracted from one message.
func CountLinks(n int) {
	if LinksExtracted != nil && n > 0 {
		LinksExtracted.Add(float64(n))
	}
}

// CountResolution records a resolution outcome.
func CountResolution(outcome, reason string) {
	if Resolutions != nil {
		Resolutions.WithLabelValues(outcome, reason).Inc()
	}
}

// CountFallback records a fallback attempt result (found, empty, error, disabled).
func CountFallback(result string) {
	if FallbackAttempts != nil {
		FallbackAttempts.WithLabelValues(result).Inc()
	}
}

// CountShare records a share store write result (inserted, duplicate, error).
func CountShare(result string) {
	if SharesRecorded != nil {
		SharesRecorded.WithLabelValues(result).Inc()
	}
}

// CountReply records a reply post result (ok, app_error, rate_limited, error).
func CountReply(result string) {
	if RepliesPosted != nil {
		RepliesPosted.WithLabelValues(result).Inc()
	}
}

// CountPanic records a recovered panic.
func CountPanic() {
	if DispatchPanics != nil {
		DispatchPanics.Inc()
	}
}

// ObserveUpstream records one outbound call. code 0 means no response.
func ObserveUpstream(service string, code int, d time.Duration) {
	if UpstreamDuration != nil {
		UpstreamDuration.WithLabelValues(service, strconv.Itoa(code)).Observe(d.Seconds())
	}
}

// UpdateCircuitGauge sets the service gauge to 1 if open else 0.
func UpdateCircuitGauge(service string, open bool) {
	if CircuitOpenGauge == nil {
		return
	}
	if open {
		CircuitOpenGauge.WithLabelValues(service).Set(1)
	} else {
		CircuitOpenGauge.WithLabelValues(service).Set(0)
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}
