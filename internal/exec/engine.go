package exec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/install"
	"github.com/perfbook/companion-backend/internal/interp"
	"github.com/perfbook/companion-backend/internal/lang"
	"github.com/perfbook/companion-backend/internal/logging"
	"github.com/perfbook/companion-backend/internal/rewrite"
)

// interruptGrace bounds how long the engine waits for the interpreter to
// honor an interrupt before abandoning the call.
const interruptGrace = 2 * time.Second

// housekeepingTimeout bounds the stream-read/restore calls that must run
// even after the caller's context expired.
const housekeepingTimeout = 5 * time.Second

// Engine runs snippets through the rewrite/guard/capture/measure pipeline.
type Engine struct {
	rt        interp.Interpreter
	profile   lang.Profile
	installer *install.Installer
	rewriter  *rewrite.Rewriter
	logger    *logging.Logger

	metrics *monitoring.Metrics
	perf    *monitoring.Perf

	defaultTimeout time.Duration
	captureOutput  bool
	measurePerf    bool
}

// Config holds engine defaults.
type Config struct {
	DefaultTimeout     time.Duration
	CaptureOutput      bool
	MeasurePerformance bool
}

// DefaultEngineConfig returns the engine defaults.
func DefaultEngineConfig() Config {
	return Config{
		DefaultTimeout:     30 * time.Second,
		CaptureOutput:      true,
		MeasurePerformance: true,
	}
}

// New creates an execution engine.
func New(rt interp.Interpreter, profile lang.Profile, installer *install.Installer, rewriter *rewrite.Rewriter, logger *logging.Logger, cfg Config) *Engine {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30 * time.Second
	}
	return &Engine{
		rt:             rt,
		profile:        profile,
		installer:      installer,
		rewriter:       rewriter,
		logger:         logger,
		defaultTimeout: cfg.DefaultTimeout,
		captureOutput:  cfg.CaptureOutput,
		measurePerf:    cfg.MeasurePerformance,
	}
}

// WithMetrics attaches metric collectors.
func (e *Engine) WithMetrics(metrics *monitoring.Metrics, perf *monitoring.Perf) *Engine {
	e.metrics = metrics
	e.perf = perf
	return e
}

// Rewriter exposes the engine's rewriter for dry-run diagnostics.
func (e *Engine) Rewriter() *rewrite.Rewriter { return e.rewriter }

// Profile exposes the language profile; the test collector renders its
// harness from it.
func (e *Engine) Profile() lang.Profile { return e.profile }

// Installer exposes the installation state machine.
func (e *Engine) Installer() *install.Installer { return e.installer }

// Runtime exposes the interpreter collaborator.
func (e *Engine) Runtime() interp.Interpreter { return e.rt }

// TransformAndExecute ensures the companion package is installed (installing
// exactly once per session), rewrites the snippet's imports, and executes
// it. This is the primary entry point for chapter snippets.
func (e *Engine) TransformAndExecute(ctx context.Context, code string, opts Options) *Result {
	if !e.installer.Installed() {
		ok, err := e.installer.Install(ctx, e.rt)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordInstall("failure")
			}
			result := &Result{ID: uuid.New().String()}
			result.setError(fmt.Sprintf("package installation failed: %v", err))
			return result
		}
		if ok && e.metrics != nil {
			e.metrics.RecordInstall("success")
		}
	}
	return e.Execute(ctx, code, opts)
}

// Execute runs a snippet and always returns a structured Result, even when
// the snippet raises, times out, or the interpreter call fails. Imports are
// rewritten only when the companion package is installed.
func (e *Engine) Execute(ctx context.Context, code string, opts Options) *Result {
	result := &Result{ID: uuid.New().String()}

	capture := boolOpt(opts.CaptureOutput, e.captureOutput)
	measure := boolOpt(opts.MeasurePerformance, e.measurePerf)
	timeout := opts.timeout(e.defaultTimeout)

	// Rewriting is gated on installation: before the package is active,
	// rewritten imports would fail anyway, so the original text runs.
	if e.installer.Installed() {
		transformed, diags := e.rewriter.Transform(code)
		code = transformed
		result.Transform = diags
		// Rewrite problems never block execution; errors surface as
		// warnings on the result.
		result.Warnings = append(result.Warnings, diags.Errors...)
		if e.metrics != nil {
			hits := make(map[string]int, len(diags.Transformations))
			for _, tr := range diags.Transformations {
				hits[tr.RuleID] = tr.Occurrences
			}
			e.metrics.RecordTransform(diags.Changed(), hits)
		}
	}

	// Snippets written for script-style execution expect a current-file
	// marker in globals.
	if e.profile.FileGuard != "" && !e.rt.Globals().Has(e.profile.FileGuardName) {
		code = e.profile.FileGuard + code
	}

	redirected := false
	if capture {
		if _, err := e.rt.Run(ctx, e.profile.RedirectPreamble); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("output capture unavailable: %v", err))
		} else {
			redirected = true
		}
	}
	// Restoration runs on every exit path, with a fresh context so an
	// expired caller context cannot leak the redirection.
	defer func() {
		if !redirected {
			return
		}
		hctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
		defer cancel()

		if out, err := e.rt.Run(hctx, e.profile.ReadStdout); err == nil {
			if s, ok := out.(string); ok {
				result.Output = s
			}
		}
		if errOut, err := e.rt.Run(hctx, e.profile.ReadStderr); err == nil {
			if s, ok := errOut.(string); ok && s != "" {
				result.Warnings = append(result.Warnings, "stderr: "+s)
			}
		}
		if _, err := e.rt.Run(hctx, e.profile.RestoreStreams); err != nil {
			e.logger.Error("Failed to restore interpreter streams", zap.Error(err))
		}
	}()

	// Wall clock covers the run call only, not stream setup/teardown.
	start := time.Now()
	runErr, timedOut := e.runWithTimeout(ctx, code, timeout)
	elapsed := time.Since(start)
	result.ExecutionTimeMs = float64(elapsed.Microseconds()) / 1000.0

	switch {
	case timedOut:
		result.TimedOut = true
		result.setError(fmt.Sprintf("execution timed out after %s (interrupt is best-effort)", timeout))
	case runErr != nil:
		result.setError(runErr.Error())
	default:
		result.Success = true
	}

	if measure {
		result.Memory = e.sampleMemory()
	}

	if e.metrics != nil {
		e.metrics.RecordExecution(result.Success, result.TimedOut, elapsed)
	}
	if e.perf != nil {
		e.perf.Observe(result.ExecutionTimeMs, result.Success)
	}

	e.logger.Debug("Execution finished",
		zap.String("id", result.ID),
		zap.Bool("success", result.Success),
		zap.Float64("ms", result.ExecutionTimeMs),
	)
	return result
}

// runWithTimeout executes code, asking the interpreter to interrupt itself
// when the budget expires. The interpreter cannot be preempted; if it
// ignores the interrupt past the grace period the call is abandoned.
func (e *Engine) runWithTimeout(ctx context.Context, code string, timeout time.Duration) (err error, timedOut bool) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct{ err error }
	done := make(chan outcome, 1)
	go func() {
		_, runErr := e.rt.Run(runCtx, code)
		done <- outcome{err: runErr}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, interp.ErrInterrupted) && runCtx.Err() != nil {
			return out.err, true
		}
		return out.err, false
	case <-runCtx.Done():
		e.rt.Interrupt("execution timed out")
		select {
		case out := <-done:
			return out.err, true
		case <-time.After(interruptGrace):
			e.logger.Warn("Interpreter ignored interrupt; abandoning call")
			return nil, true
		}
	}
}

type memorySample struct {
	UsedBytes uint64 `json:"used_bytes"`
	PeakBytes uint64 `json:"peak_bytes"`
}

// sampleMemory is best-effort: any failure, or a profile without a memory
// snippet, degrades to Available: false.
func (e *Engine) sampleMemory() MemoryUsage {
	if e.profile.MemorySample == "" {
		return MemoryUsage{}
	}
	hctx, cancel := context.WithTimeout(context.Background(), housekeepingTimeout)
	defer cancel()

	val, err := e.rt.Run(hctx, e.profile.MemorySample)
	if err != nil {
		return MemoryUsage{}
	}
	raw, ok := val.(string)
	if !ok {
		return MemoryUsage{}
	}
	var sample memorySample
	if err := sonic.UnmarshalString(raw, &sample); err != nil {
		return MemoryUsage{}
	}
	return MemoryUsage{
		UsedBytes: sample.UsedBytes,
		PeakBytes: sample.PeakBytes,
		Available: true,
	}
}

// Reset clears interpreter module state, the installer, and rewriter
// statistics. Used between unrelated executions to avoid state bleed.
func (e *Engine) Reset(ctx context.Context) error {
	if e.profile.ResetState != "" {
		if _, err := e.rt.Run(ctx, e.profile.ResetState); err != nil {
			return fmt.Errorf("exec: reset interpreter state: %w", err)
		}
	}
	e.installer.Reset()
	e.rewriter.ResetStats()
	if e.perf != nil {
		e.perf.Reset()
	}
	e.logger.Info("Execution engine reset")
	return nil
}
