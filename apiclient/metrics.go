package apiclient

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AttemptRecord is one observability event, emitted once per completed
// physical attempt (success or failure).
type AttemptRecord struct {
	// Method and Path describe the logical request.
	Method string
	Path   string

	// Status is the HTTP status code, or 0 if no response was received.
	Status int

	// Duration is the wall-clock time of the attempt.
	Duration time.Duration

	// Timestamp is when the attempt completed.
	Timestamp time.Time

	// Success reports whether the attempt produced a decoded result.
	Success bool

	// Error describes the failure for unsuccessful attempts.
	Error string

	// RequestID correlates all attempts of one logical request.
	RequestID string

	// Attempt is the 1-based attempt number within the logical request.
	Attempt int
}

// Collector is the injected metrics capability. NopCollector is the
// default. Implementations must be safe for concurrent use.
type Collector interface {
	Record(ctx context.Context, rec AttemptRecord)
}

// NopCollector discards all records.
type NopCollector struct{}

// Record implements Collector.
func (NopCollector) Record(context.Context, AttemptRecord) {}

// MemoryCollector keeps the most recent attempt records in a bounded
// in-memory buffer and computes summary statistics on demand. Useful
// for tests and for lightweight in-process introspection.
type MemoryCollector struct {
	mu      sync.Mutex
	records []AttemptRecord
	cap     int
}

// DefaultMemoryCollectorCapacity bounds the buffer when no explicit
// capacity is given.
const DefaultMemoryCollectorCapacity = 1024

// NewMemoryCollector creates a collector retaining at most capacity
// records; the oldest records are dropped first. capacity <= 0 uses
// DefaultMemoryCollectorCapacity.
func NewMemoryCollector(capacity int) *MemoryCollector {
	if capacity <= 0 {
		capacity = DefaultMemoryCollectorCapacity
	}
	return &MemoryCollector{cap: capacity}
}

// Record implements Collector.
func (m *MemoryCollector) Record(_ context.Context, rec AttemptRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if len(m.records) > m.cap {
		m.records = m.records[len(m.records)-m.cap:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (m *MemoryCollector) Records() []AttemptRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AttemptRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Summary aggregates the retained records.
type Summary struct {
	Count       int
	Successes   int
	Failures    int
	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration
}

// Summary computes aggregate statistics over the retained records.
func (m *MemoryCollector) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Count: len(m.records)}
	if s.Count == 0 {
		return s
	}
	var total time.Duration
	s.MinDuration = m.records[0].Duration
	for _, rec := range m.records {
		if rec.Success {
			s.Successes++
		} else {
			s.Failures++
		}
		total += rec.Duration
		if rec.Duration < s.MinDuration {
			s.MinDuration = rec.Duration
		}
		if rec.Duration > s.MaxDuration {
			s.MaxDuration = rec.Duration
		}
	}
	s.AvgDuration = total / time.Duration(s.Count)
	return s
}

// OTelCollector records attempts as OpenTelemetry metrics.
type OTelCollector struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelCollector creates instruments on the given meter.
func NewOTelCollector(meter metric.Meter) (*OTelCollector, error) {
	c := &OTelCollector{}
	var err error

	c.attempts, err = meter.Int64Counter(
		"http.client.attempts",
		metric.WithDescription("Completed HTTP client attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	c.duration, err = meter.Float64Histogram(
		"http.client.attempt.duration",
		metric.WithDescription("Duration of HTTP client attempts in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Record implements Collector.
func (c *OTelCollector) Record(ctx context.Context, rec AttemptRecord) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", rec.Method),
		attribute.String("http.route", rec.Path),
		attribute.Int("http.response.status_code", rec.Status),
		attribute.Bool("success", rec.Success),
	)
	c.attempts.Add(ctx, 1, attrs)
	c.duration.Record(ctx, rec.Duration.Seconds(), attrs)
}

// PrometheusCollector records attempts as Prometheus metrics.
type PrometheusCollector struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusCollector creates and registers the metric vectors on
// the given registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_client_attempts_total",
			Help: "Completed HTTP client attempts.",
		}, []string{"method", "path", "status", "success"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_client_attempt_duration_seconds",
			Help:    "Duration of HTTP client attempts in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if err := reg.Register(c.attempts); err != nil {
		return nil, err
	}
	if err := reg.Register(c.duration); err != nil {
		return nil, err
	}
	return c, nil
}

// Record implements Collector.
func (c *PrometheusCollector) Record(_ context.Context, rec AttemptRecord) {
	c.attempts.WithLabelValues(
		rec.Method,
		rec.Path,
		strconv.Itoa(rec.Status),
		strconv.FormatBool(rec.Success),
	).Inc()
	c.duration.WithLabelValues(rec.Method, rec.Path).Observe(rec.Duration.Seconds())
}
