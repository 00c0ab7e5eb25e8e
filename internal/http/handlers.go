package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/perfbook/companion-backend/internal/content"
	"github.com/perfbook/companion-backend/internal/exec"
	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/shared/id"
	"github.com/perfbook/companion-backend/internal/shared/types"
	"github.com/perfbook/companion-backend/internal/testrun"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine    *exec.Engine
	collector *testrun.Collector
	loader    content.Loader
	perf      *monitoring.Perf
}

// NewHandlers creates a new handler set. loader may be nil when no content
// source is configured; test-run endpoints then report 503.
func NewHandlers(engine *exec.Engine, collector *testrun.Collector, loader content.Loader, perf *monitoring.Perf) *Handlers {
	return &Handlers{
		engine:    engine,
		collector: collector,
		loader:    loader,
		perf:      perf,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Companion Sandbox Backend",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"install": h.engine.Installer().Snapshot(),
		"content": gin.H{"configured": h.loader != nil},
	})
}

// Install triggers package installation. Idempotent: an already-installed
// package answers immediately; a concurrent install answers 409.
func (h *Handlers) Install(c *gin.Context) {
	ok, err := h.engine.Installer().Install(c.Request.Context(), h.engine.Runtime())
	snap := h.engine.Installer().Snapshot()
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"installed": false,
			"state":     snap,
			"error":     err.Error(),
		})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{
			"installed": false,
			"state":     snap,
			"error":     "installation already in progress",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"installed": true,
		"state":     snap,
	})
}

// InstallStatus reports the installer snapshot
func (h *Handlers) InstallStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Installer().Snapshot())
}

// Transform rewrites imports without executing
func (h *Handlers) Transform(c *gin.Context) {
	var req types.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	code, diags := h.engine.Rewriter().Transform(req.Code)
	c.JSON(http.StatusOK, gin.H{
		"code":        code,
		"diagnostics": diags,
		"request_id":  id.NewRequestID().String(),
	})
}

// Diagnostics dry-runs the rewriter, returning diagnostics only
func (h *Handlers) Diagnostics(c *gin.Context) {
	var req types.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.engine.Rewriter().Diagnose(req.Code))
}

// Execute runs a snippet as-is (no rewrite unless already installed)
func (h *Handlers) Execute(c *gin.Context) {
	h.runSnippet(c, false)
}

// TransformAndExecute installs if necessary, rewrites, then runs
func (h *Handlers) TransformAndExecute(c *gin.Context) {
	h.runSnippet(c, true)
}

func (h *Handlers) runSnippet(c *gin.Context, transform bool) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	opts := exec.Options{
		CaptureOutput:      req.CaptureOutput,
		MeasurePerformance: req.MeasurePerformance,
	}
	if req.TimeoutMs > 0 {
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	var result *exec.Result
	if transform {
		result = h.engine.TransformAndExecute(c.Request.Context(), req.Code, opts)
	} else {
		result = h.engine.Execute(c.Request.Context(), req.Code, opts)
	}

	// Execution failures are data, not HTTP errors: the caller always
	// gets a structured result.
	c.JSON(http.StatusOK, result)
}

// RunTests executes one test file, or a chapter's whole suite
func (h *Handlers) RunTests(c *gin.Context) {
	if h.loader == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "no content source configured",
		})
		return
	}

	var req types.TestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	chapter, err := h.loader.Chapter(req.Chapter)
	if err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: err.Error()})
		return
	}

	runID := id.NewTestRunID().String()
	var outcomes []testrun.Outcome
	if req.File != "" {
		file, ok := chapter.File(req.File)
		if !ok {
			c.JSON(http.StatusNotFound, types.ErrorResponse{Error: "unknown test file " + req.File})
			return
		}
		outcomes, err = h.collector.RunTestFile(c.Request.Context(), file)
	} else {
		outcomes, err = h.collector.RunChapterTests(c.Request.Context(), chapter)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, types.ErrorResponse{
			Error:     err.Error(),
			RequestID: runID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":   runID,
		"chapter":  req.Chapter,
		"outcomes": outcomes,
	})
}

// ListChapters lists available chapter IDs
func (h *Handlers) ListChapters(c *gin.Context) {
	if h.loader == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "no content source configured",
		})
		return
	}
	ids, err := h.loader.Chapters()
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapters": ids})
}

// GetChapter returns one chapter's file listing
func (h *Handlers) GetChapter(c *gin.Context) {
	if h.loader == nil {
		c.JSON(http.StatusServiceUnavailable, types.ErrorResponse{
			Error: "no content source configured",
		})
		return
	}
	chapter, err := h.loader.Chapter(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, types.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, chapter)
}

// Reset clears interpreter module state, installer state and statistics
func (h *Handlers) Reset(c *gin.Context) {
	if err := h.engine.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// Stats reports execution statistics
func (h *Handlers) Stats(c *gin.Context) {
	calls, ruleTotals := h.engine.Rewriter().Stats()
	c.JSON(http.StatusOK, gin.H{
		"executions": h.perf.Snapshot(),
		"transforms": gin.H{
			"calls":     calls,
			"rule_hits": ruleTotals,
		},
		"install": h.engine.Installer().Snapshot(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: err.Error()})
}
