// Package api provides the HTTP boundary: intent submission, covenant and
// user status lookups, real-time event streaming, and a health endpoint.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/covenant/pkg/config"
	"github.com/codeready-toolchain/covenant/pkg/database"
	"github.com/codeready-toolchain/covenant/pkg/events"
	"github.com/codeready-toolchain/covenant/pkg/mediator"
	"github.com/codeready-toolchain/covenant/pkg/models"
	"github.com/codeready-toolchain/covenant/pkg/version"
)

// maxBodyBytes bounds a request body, well above any realistic intent
// payload, to reject multi-MB bodies at the HTTP read level.
const maxBodyBytes = 1 << 20 // 1 MB

// CovenantReader is the narrow Covenant Store surface the intent-detail
// handler needs. Satisfied by *store.CovenantStore.
type CovenantReader interface {
	GetCovenant(ctx context.Context, id string) (*models.Covenant, error)
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cfg         *config.Config
	dbClient    *database.Client
	registry    *mediator.Registry
	covenants   CovenantReader
	connManager *events.ConnectionManager
	gatherer    prometheus.Gatherer
}

// NewServer creates a new API server wired with gin. gatherer is exposed on
// GET /metrics in the Prometheus exposition format; pass nil to disable the
// route.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	registry *mediator.Registry,
	covenants CovenantReader,
	connManager *events.ConnectionManager,
	gatherer prometheus.Gatherer,
) *Server {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), securityHeaders(), bodyLimit(maxBodyBytes))

	s := &Server{
		router:      router,
		cfg:         cfg,
		dbClient:    dbClient,
		registry:    registry,
		covenants:   covenants,
		connManager: connManager,
		gatherer:    gatherer,
	}

	s.setupRoutes()
	return s
}

// bodyLimit rejects request bodies larger than n bytes.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	v1.POST("/intent", s.submitIntentHandler)
	v1.GET("/intent/:covenant_id", s.getIntentHandler)
	v1.GET("/status/:user_id", s.statusHandler)
	v1.GET("/stream/:user_id", s.userStreamHandler)
	v1.GET("/stream/task/:covenant_id", s.covenantStreamHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used by
// test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.Pool)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   "unhealthy",
			Version:  version.Full(),
			Database: dbHealth,
		})
		return
	}

	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth,
		Configuration: ConfigurationStats{
			Models:      stats.Models,
			ParallelCap: stats.ParallelCap,
			QualityGate: stats.QualityGate,
		},
	})
}
