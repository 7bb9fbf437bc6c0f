package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/comfybridge/internal/infrastructure/monitoring"
)

// Options wires the server's collaborators.
type Options struct {
	Controller Controller
	Status     StatusReader
	Catalog    Catalog
	// Connection reports the backend connection state.
	Connection func() string

	RateLimit   RateLimitConfig
	Development bool
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
}

// Server wraps the HTTP router
type Server struct {
	router  *gin.Engine
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New builds the router and registers every route.
func New(opts Options) *Server {
	logger := logging.OrNop(opts.Logger).Named("http")
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	if opts.RateLimit.RequestsPerSecond <= 0 {
		opts.RateLimit = DefaultRateLimitConfig()
	}

	if !opts.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	router.Use(CORS(DefaultCORSConfig()))

	handlers := &Handlers{
		controller: opts.Controller,
		status:     opts.Status,
		catalog:    opts.Catalog,
		connection: opts.Connection,
	}

	router.GET("/health", handlers.Health)
	router.GET("/status", handlers.Status)

	control := router.Group("/", RateLimit(opts.RateLimit))
	control.POST("/queue", handlers.Queue)
	control.POST("/cancel", handlers.Cancel)
	control.PUT("/autoqueue", handlers.AutoQueue)
	control.PUT("/prompting", handlers.Prompting)
	control.POST("/document/changed", handlers.DocumentChanged)

	if opts.Catalog != nil {
		router.GET("/workflows", handlers.ListWorkflows)
		control.PUT("/workflows/current", handlers.SelectWorkflow)
	}

	metricsHandler := promhttp.HandlerFor(opts.Metrics.Registry(), promhttp.HandlerOpts{})
	router.GET("/metrics", func(c *gin.Context) {
		opts.Metrics.UpdateUptime()
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})

	return &Server{router: router, logger: logger, metrics: opts.Metrics}
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
