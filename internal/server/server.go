package server

import (
	"context"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/perfbook/companion-backend/internal/api/middleware"
	"github.com/perfbook/companion-backend/internal/app"
	"github.com/perfbook/companion-backend/internal/http"
	"github.com/perfbook/companion-backend/internal/infrastructure/config"
	"github.com/perfbook/companion-backend/internal/infrastructure/monitoring"
	"github.com/perfbook/companion-backend/internal/infrastructure/tracing"
)

// Server wraps the HTTP server and its dependency graph.
type Server struct {
	manager *app.Manager
	router  *gin.Engine
	httpSrv *stdhttp.Server
}

// New creates a server around an assembled dependency graph.
func New(manager *app.Manager) *Server {
	if !manager.Config.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(manager.Tracer))
	router.Use(monitoring.Middleware(manager.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(middleware.RequestID())

	handlers := http.NewHandlers(manager.Engine, manager.Collector, manager.Loader, manager.Perf)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", manager.Metrics.Handler())

	api := router.Group("/api")
	if manager.Config.RateLimit.Enabled {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: manager.Config.RateLimit.RequestsPerSecond,
			Burst:             manager.Config.RateLimit.Burst,
		}))
	}

	api.POST("/install", handlers.Install)
	api.GET("/install/status", handlers.InstallStatus)

	api.POST("/transform", handlers.Transform)
	api.POST("/transform/diagnostics", handlers.Diagnostics)

	api.POST("/execute", handlers.Execute)
	api.POST("/execute/transform", handlers.TransformAndExecute)

	api.POST("/tests/run", handlers.RunTests)

	api.GET("/chapters", handlers.ListChapters)
	api.GET("/chapters/:id", handlers.GetChapter)

	api.POST("/reset", handlers.Reset)
	api.GET("/stats", handlers.Stats)

	router.GET("/ws/install", manager.Hub.Handle)

	return &Server{
		manager: manager,
		router:  router,
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := net.JoinHostPort(s.manager.Config.Server.Host, s.manager.Config.Server.Port)
	s.httpSrv = &stdhttp.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.manager.Logger.Info("starting companion backend", zap.String("addr", addr))
	err := s.httpSrv.ListenAndServe()
	if err == stdhttp.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and releases dependencies.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.Logger.Info("shutting down companion backend")
	var firstErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if err := s.manager.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Router exposes the configured routes; used by handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewFromConfig assembles dependencies and creates a server.
func NewFromConfig(cfg *config.Config) (*Server, error) {
	manager, err := app.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return New(manager), nil
}
