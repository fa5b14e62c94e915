// Package restapi exposes a tool registry over HTTP with gin. Every route
// funnels into a toolbox.Caller, so the same server fronts an in-process
// registry or a spawned MCP server.
package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/germanamz/finassist/pkg/telemetry"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// Version is reported by the root route.
	Version = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// Server is the REST facade.
type Server struct {
	caller  toolbox.Caller
	backend string
	logger  *zap.Logger
	metrics *telemetry.Metrics
	engine  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for access logs and failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records request metrics and mounts GET /metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithBackend names the caller implementation reported by GET /health.
func WithBackend(name string) Option {
	return func(s *Server) { s.backend = name }
}

// New builds the gin engine and registers every route.
func New(caller toolbox.Caller, opts ...Option) *Server {
	s := &Server{
		caller:  caller,
		backend: "in-process",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), requestID(), accessLog(s.logger), cors())
	if s.metrics != nil {
		s.engine.Use(observe(s.metrics))
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/tools", s.listTools)
	r.POST("/tools/call", s.callTool)

	stock := r.Group("/stock")
	stock.POST("/quote", s.stockQuote)
	stock.POST("/overview", s.stockOverview)
	stock.POST("/daily", s.stockDaily)
	stock.POST("/intraday", s.stockIntraday)

	r.POST("/ai/chat", s.aiChat)

	financial := r.Group("/financial")
	financial.POST("/query", s.financialQuery)
	financial.POST("/ask", s.financialAsk)

	r.GET("/ws", s.serveWS)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr), zap.String("backend", s.backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("restapi: listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("restapi: shutdown: %w", err)
	}

	return nil
}
