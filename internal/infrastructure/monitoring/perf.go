package monitoring

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// Perf keeps a bounded window of recent execution durations and summarizes
// them on demand. Complements the Prometheus histogram with exact
// quantiles for the JSON stats endpoint.
type Perf struct {
	mu       sync.Mutex
	window   []float64 // milliseconds, ring buffer
	next     int
	filled   bool
	total    int64
	failures int64
}

// PerfSnapshot summarizes the current window.
type PerfSnapshot struct {
	Total    int64   `json:"total_executions"`
	Failures int64   `json:"failed_executions"`
	Window   int     `json:"window_size"`
	MeanMs   float64 `json:"mean_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// NewPerf creates a tracker with the given window capacity.
func NewPerf(capacity int) *Perf {
	if capacity <= 0 {
		capacity = 256
	}
	return &Perf{window: make([]float64, capacity)}
}

// Observe records one execution.
func (p *Perf) Observe(durationMs float64, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.window[p.next] = durationMs
	p.next++
	if p.next == len(p.window) {
		p.next = 0
		p.filled = true
	}
	p.total++
	if !success {
		p.failures++
	}
}

// Snapshot computes window statistics with gonum.
func (p *Perf) Snapshot() PerfSnapshot {
	p.mu.Lock()
	n := p.next
	if p.filled {
		n = len(p.window)
	}
	samples := make([]float64, n)
	copy(samples, p.window[:n])
	snap := PerfSnapshot{
		Total:    p.total,
		Failures: p.failures,
		Window:   n,
	}
	p.mu.Unlock()

	if n == 0 {
		return snap
	}

	sort.Float64s(samples)
	snap.MeanMs = stat.Mean(samples, nil)
	snap.P50Ms = stat.Quantile(0.5, stat.Empirical, samples, nil)
	snap.P95Ms = stat.Quantile(0.95, stat.Empirical, samples, nil)
	snap.MaxMs = samples[n-1]
	return snap
}

// Reset clears the window and counters.
func (p *Perf) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.filled = false
	p.total = 0
	p.failures = 0
}
