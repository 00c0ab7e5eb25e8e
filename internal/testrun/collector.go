/*
Package testrun executes companion test files and collects per-test
outcomes.

The collector builds a harness script around the test file, runs it through
the execution engine, and parses the sentinel-framed JSON payload the
harness prints. When the markers are missing — the harness crashed before
finishing — it degrades to line-pattern heuristics instead of failing:
partial test feedback beats none.
*/
package testrun

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/content"
	"github.com/perfbook/companion-backend/internal/exec"
	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/logging"
)

// Outcome is one test's result. Ordering within a run follows
// discovery/execution order.
type Outcome struct {
	Name       string  `json:"name"`
	Status     string  `json:"status"` // passed, failed, error, skipped
	DurationMs float64 `json:"duration_ms"`
	Output     string  `json:"output"`
	Error      *string `json:"error"`
	File       string  `json:"file"`
}

// Collector runs test files through the engine.
type Collector struct {
	engine  *exec.Engine
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a collector.
func New(engine *exec.Engine, logger *logging.Logger) *Collector {
	return &Collector{engine: engine, logger: logger}
}

// WithMetrics attaches a metrics collector.
func (c *Collector) WithMetrics(metrics *monitoring.Metrics) *Collector {
	c.metrics = metrics
	return c
}

// RunTestFile executes one test file and returns its outcomes. The harness
// output is parsed structured-first with a heuristic fallback; a run that
// produced no recognizable outcomes at all is an error.
func (c *Collector) RunTestFile(ctx context.Context, file content.File) ([]Outcome, error) {
	harness := c.engine.Profile().Harness(file.Name, file.Content)

	result := c.engine.TransformAndExecute(ctx, harness, exec.Options{})

	outcomes, parser := parseOutcomes(result.Output)
	if len(outcomes) == 0 {
		if result.Error != nil {
			return nil, fmt.Errorf("testrun: harness failed for %s: %s", file.Name, *result.Error)
		}
		return nil, fmt.Errorf("testrun: no test outcomes recognized in %s output", file.Name)
	}

	// Outcomes recovered heuristically have no file attribution.
	for i := range outcomes {
		if outcomes[i].File == "" {
			outcomes[i].File = file.Name
		}
	}

	if c.metrics != nil {
		statuses := make([]string, len(outcomes))
		for i, o := range outcomes {
			statuses[i] = o.Status
		}
		c.metrics.RecordTestRun(parser, statuses)
	}

	c.logger.Info("Test file executed",
		zap.String("file", file.Name),
		zap.Int("tests", len(outcomes)),
		zap.String("parser", parser),
	)
	return outcomes, nil
}

// RunChapterTests discovers and runs every test file in a chapter,
// concatenating outcomes in discovery order.
func (c *Collector) RunChapterTests(ctx context.Context, chapter content.Chapter) ([]Outcome, error) {
	files := chapter.TestFiles()
	if len(files) == 0 {
		return nil, fmt.Errorf("testrun: chapter %s has no test files", chapter.ID)
	}

	var all []Outcome
	for _, file := range files {
		outcomes, err := c.RunTestFile(ctx, file)
		if err != nil {
			c.logger.Warn("Test file run failed",
				zap.String("chapter", chapter.ID),
				zap.String("file", file.Name),
				zap.Error(err),
			)
			msg := err.Error()
			all = append(all, Outcome{
				Name:   file.Name,
				Status: "error",
				Error:  &msg,
				File:   file.Name,
			})
			continue
		}
		all = append(all, outcomes...)
	}
	return all, nil
}
