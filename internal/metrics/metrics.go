// Package metrics records per-operation and per-repository statistics,
// exported both as Prometheus collectors and as the plain-text dump shown
// on the admin page.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stats collects operation counts and latencies. A nil *Stats is a no-op;
// the server leaves it nil when both record_stats and metrics.enabled are
// false.
type Stats struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	repoCalls  *prometheus.CounterVec

	mu    sync.Mutex
	dump  map[string]*opRecord
	since time.Time
}

type opRecord struct {
	count    int64
	failures int64
	total    time.Duration
	bytes    int64
}

// New creates a Stats with its own registry.
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		dump:     make(map[string]*opRecord),
		since:    time.Now(),
	}
	s.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racs",
		Name:      "operations_total",
		Help:      "Proxy operations by name and outcome.",
	}, []string{"op", "outcome"})
	s.durations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "racs",
		Name:      "operation_duration_seconds",
		Help:      "Proxy operation latency.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
	}, []string{"op"})
	s.bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racs",
		Name:      "operation_bytes_total",
		Help:      "Payload bytes moved by operation.",
	}, []string{"op"})
	s.repoCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "racs",
		Name:      "repository_calls_total",
		Help:      "Backend calls by repository and outcome.",
	}, []string{"repository", "outcome"})

	s.registry.MustRegister(s.operations, s.durations, s.bytes, s.repoCalls)
	return s
}

// RecordOperation records one proxy-level operation.
func (s *Stats) RecordOperation(op string, elapsed time.Duration, size int64, err error) {
	if s == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.operations.WithLabelValues(op, outcome).Inc()
	s.durations.WithLabelValues(op).Observe(elapsed.Seconds())
	if size > 0 {
		s.bytes.WithLabelValues(op).Add(float64(size))
	}

	s.mu.Lock()
	rec := s.dump[op]
	if rec == nil {
		rec = &opRecord{}
		s.dump[op] = rec
	}
	rec.count++
	if err != nil {
		rec.failures++
	}
	rec.total += elapsed
	rec.bytes += size
	s.mu.Unlock()
}

// RecordRepositoryCall records one backend call outcome.
func (s *Stats) RecordRepositoryCall(repo string, err error) {
	if s == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.repoCalls.WithLabelValues(repo, outcome).Inc()
}

// Reset clears the admin dump counters. Prometheus counters are
// monotonic and stay untouched.
func (s *Stats) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.dump = make(map[string]*opRecord)
	s.since = time.Now()
	s.mu.Unlock()
}

// Dump renders the admin-page text table.
func (s *Stats) Dump() string {
	if s == nil {
		return "statistics disabled"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := make([]string, 0, len(s.dump))
	for op := range s.dump {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	var b strings.Builder
	fmt.Fprintf(&b, "since %s\n", s.since.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%-28s %8s %8s %12s %12s\n", "operation", "count", "fail", "avg", "bytes")
	for _, op := range ops {
		rec := s.dump[op]
		avg := time.Duration(0)
		if rec.count > 0 {
			avg = rec.total / time.Duration(rec.count)
		}
		fmt.Fprintf(&b, "%-28s %8d %8d %12s %12d\n", op, rec.count, rec.failures, avg.Round(time.Microsecond), rec.bytes)
	}
	return b.String()
}

// Handler serves the Prometheus exposition format.
func (s *Stats) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
