package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelstack/sentinel-ops/internal/config"
	"github.com/sentinelstack/sentinel-ops/internal/services"
)

// Server is the HTTP serving layer for the remediation engine.
type Server struct {
	cfg        config.ServerConfig
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer wires the gin router and handlers.
func NewServer(cfg config.ServerConfig, service *services.OpsService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	server := &Server{cfg: cfg, logger: logger, router: router}

	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	handler := NewOpsHandler(service, logger)
	router.GET("/healthz", handler.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.POST("/remediate", handler.Remediate)
	v1.GET("/events", handler.ListEvents)
	v1.DELETE("/events", handler.ClearEvents)
	v1.GET("/events/:id/report", handler.IncidentReport)
	v1.GET("/hygiene", handler.Hygiene)
	v1.POST("/remediation/enable", handler.EnableRemediation)
	v1.POST("/remediation/disable", handler.DisableRemediation)
	v1.GET("/remediation/status", handler.RemediationStatus)
	v1.GET("/services/suppressed", handler.SuppressedServices)
	v1.POST("/services/:id/reenable", handler.ReEnableService)
	v1.GET("/patterns", handler.Patterns)

	return server
}

// requestLogger logs each request with method, path, status and duration.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server listening", slog.String("address", s.cfg.Address))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured graceful timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.cfg.GracefulTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
