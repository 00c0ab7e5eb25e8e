package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/content"
	"github.com/perfbook/companion-backend/internal/exec"
	"github.com/perfbook/companion-backend/internal/infrastructure/config"
	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/infrastructure/tracing"
	"github.com/perfbook/companion-backend/internal/install"
	"github.com/perfbook/companion-backend/internal/interp"
	"github.com/perfbook/companion-backend/internal/interp/gojart"
	"github.com/perfbook/companion-backend/internal/interp/remote"
	"github.com/perfbook/companion-backend/internal/lang"
	"github.com/perfbook/companion-backend/internal/logging"
	"github.com/perfbook/companion-backend/internal/rewrite"
	"github.com/perfbook/companion-backend/internal/testrun"
	"github.com/perfbook/companion-backend/internal/ws"
)

// perfWindow bounds the in-memory execution timing ring.
const perfWindow = 512

// Manager assembles and owns the service dependencies.
type Manager struct {
	Config    *config.Config
	Logger    *logging.Logger
	Metrics   *monitoring.Metrics
	Perf      *monitoring.Perf
	Tracer    *tracing.Tracer
	Runtime   interp.Interpreter
	Installer *install.Installer
	Rewriter  *rewrite.Rewriter
	Engine    *exec.Engine
	Collector *testrun.Collector
	Loader    content.Loader
	Hub       *ws.Hub
}

// NewManager wires the full dependency graph from configuration.
func NewManager(cfg *config.Config) (*Manager, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := monitoring.NewMetrics()
	perf := monitoring.NewPerf(perfWindow)
	tracer := tracing.New("companion-backend", logger.Logger)

	profile, rt, err := buildRuntime(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("interpreter runtime ready",
		zap.String("runtime", cfg.Worker.Runtime),
		zap.String("language", profile.Name),
	)

	var fetcher install.Fetcher
	if cfg.Package.FetchLocal {
		fetcher = install.NewHTTPFetcher(cfg.Package.RetryMax, cfg.Worker.Timeout)
	}

	installer := install.New(install.Package{
		Name:       cfg.Package.Name,
		URL:        cfg.Package.URL,
		FetchLocal: cfg.Package.FetchLocal,
	}, fetcher, profile, logger)

	rewriter, err := rewrite.NewDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load rewrite rules: %w", err)
	}

	engine := exec.New(rt, profile, installer, rewriter, logger, exec.Config{
		DefaultTimeout:     time.Duration(cfg.Execution.TimeoutMs) * time.Millisecond,
		CaptureOutput:      cfg.Execution.CaptureOutput,
		MeasurePerformance: cfg.Execution.MeasurePerformance,
	}).WithMetrics(metrics, perf)

	collector := testrun.New(engine, logger).WithMetrics(metrics)

	loader := buildLoader(cfg, logger)
	hub := ws.NewHub(installer, logger, metrics)

	return &Manager{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Perf:      perf,
		Tracer:    tracer,
		Runtime:   rt,
		Installer: installer,
		Rewriter:  rewriter,
		Engine:    engine,
		Collector: collector,
		Loader:    loader,
		Hub:       hub,
	}, nil
}

// buildRuntime selects the interpreter adapter and its language profile.
func buildRuntime(cfg *config.Config) (lang.Profile, interp.Interpreter, error) {
	switch cfg.Worker.Runtime {
	case "goja":
		rt, err := gojart.New(gojart.DefaultConfig())
		if err != nil {
			return lang.Profile{}, nil, fmt.Errorf("failed to create goja runtime: %w", err)
		}
		return lang.JavaScript(), rt, nil
	case "remote", "":
		rt := remote.New(remote.Config{
			BaseURL:      cfg.Worker.Address,
			Timeout:      cfg.Worker.Timeout,
			RetryMax:     cfg.Package.RetryMax,
			RetryWaitMin: 500 * time.Millisecond,
			RetryWaitMax: 5 * time.Second,
		})
		return lang.Python(cfg.Package.Name), rt, nil
	default:
		return lang.Profile{}, nil, fmt.Errorf("unknown worker runtime %q", cfg.Worker.Runtime)
	}
}

// buildLoader picks a chapter-content source; nil disables content routes.
func buildLoader(cfg *config.Config, logger *logging.Logger) content.Loader {
	switch {
	case cfg.Content.Dir != "":
		logger.Info("serving chapter content from directory", zap.String("dir", cfg.Content.Dir))
		return content.NewDir(cfg.Content.Dir)
	case cfg.Content.BaseURL != "":
		logger.Info("serving chapter content from upstream", zap.String("base_url", cfg.Content.BaseURL))
		return content.NewHTTP(cfg.Content.BaseURL, 30*time.Second)
	default:
		logger.Info("chapter content source not configured")
		return nil
	}
}

// Close releases the interpreter and flushes logs.
func (m *Manager) Close() error {
	var firstErr error
	if m.Runtime != nil {
		if err := m.Runtime.Close(); err != nil {
			firstErr = err
			m.Logger.Warn("failed to close interpreter runtime", zap.Error(err))
		}
	}
	_ = m.Logger.Sync()
	return firstErr
}
