package exec

import (
	"time"

	"github.com/perfbook/companion-backend/internal/rewrite"
)

// Options controls one execution.
type Options struct {
	// Timeout bounds the interpreter call. Zero means the engine default.
	Timeout time.Duration
	// CaptureOutput redirects the interpreter's stdout/stderr into
	// buffers surfaced on the Result.
	CaptureOutput *bool
	// MeasurePerformance samples interpreter memory after the run.
	MeasurePerformance *bool
}

func (o Options) timeout(def time.Duration) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return def
}

func boolOpt(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

// MemoryUsage reports interpreter-side memory after a run. Available is
// false when the runtime cannot report memory; that is a degradation, not
// an error.
type MemoryUsage struct {
	UsedBytes uint64 `json:"used_bytes"`
	PeakBytes uint64 `json:"peak_bytes"`
	Available bool   `json:"available"`
}

// Result is the structured outcome of one execution. Created fresh per
// call and never persisted by the engine.
type Result struct {
	ID              string               `json:"id"`
	Success         bool                 `json:"success"`
	Output          string               `json:"output"`
	Error           *string              `json:"error"`
	TimedOut        bool                 `json:"timed_out,omitempty"`
	ExecutionTimeMs float64              `json:"execution_time_ms"`
	Memory          MemoryUsage          `json:"memory_usage"`
	Warnings        []string             `json:"warnings,omitempty"`
	Transform       *rewrite.Diagnostics `json:"transformation_info,omitempty"`
}

func (r *Result) setError(msg string) {
	r.Success = false
	r.Error = &msg
}
