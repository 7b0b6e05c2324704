package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/PageSense/backend/internal/api/http"
	"github.com/GriffinCanCode/PageSense/backend/internal/api/middleware"
	"github.com/GriffinCanCode/PageSense/backend/internal/core"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/PageSense/backend/internal/infrastructure/tracing"
)

// ShutdownTimeout bounds graceful shutdown
const ShutdownTimeout = 10 * time.Second

// Server wraps the admin HTTP server and its core
type Server struct {
	router  *gin.Engine
	handler http.Handler
	http    *http.Server
	core    *core.Core
	logger  *logging.Logger
	config  *config.Config
}

// NewServer creates the admin server over an existing core
func NewServer(cfg *config.Config, c *core.Core, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing PageSense admin server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("cache_dir", cfg.Cache.Dir),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(c.Tracer()))
	router.Use(monitoring.Middleware(c.Metrics))
	router.Use(middleware.CORS(middleware.CORSFor(cfg.Server.CORSOrigins)))
	if cfg.Server.RateLimitRPS > 0 {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		}))
	}

	apihttp.NewHandlers(c, logger.Logger).Register(router)

	handler, err := middleware.Gzip(router)
	if err != nil {
		return nil, fmt.Errorf("failed to build gzip handler: %w", err)
	}

	return &Server{
		router:  router,
		handler: handler,
		core:    c,
		logger:  logger,
		config:  cfg,
		http: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the full handler tree, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and flushes the logger
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shut down cleanly", zap.Error(err))
	}
	_ = s.logger.Sync()
	return err
}
