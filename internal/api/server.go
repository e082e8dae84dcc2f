// Package api exposes the curation workflow over HTTP. The API is a thin
// boundary: it resolves the acting identity from headers, translates
// requests into workflow operations, and maps domain errors to status
// codes. All invariants live below it.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/genecurator/gene-validity-server/internal/audit"
	"github.com/genecurator/gene-validity-server/internal/domain"
	"github.com/genecurator/gene-validity-server/internal/middleware"
	"github.com/genecurator/gene-validity-server/internal/repository"
	"github.com/genecurator/gene-validity-server/internal/workflow"
)

// Server represents the HTTP server.
type Server struct {
	config      *domain.Config
	logger      *logrus.Logger
	machine     *workflow.Machine
	coordinator *workflow.Coordinator
	recorder    *audit.Recorder
	evidence    domain.EvidenceStore
	curations   domain.CurationStore

	// analytics is optional; nil in standalone mode.
	analytics *repository.AnalyticsStore

	router *gin.Engine
	server *http.Server
}

// Deps bundles the collaborators the server exposes.
type Deps struct {
	Machine     *workflow.Machine
	Coordinator *workflow.Coordinator
	Recorder    *audit.Recorder
	Evidence    domain.EvidenceStore
	Curations   domain.CurationStore
	Analytics   *repository.AnalyticsStore
}

// NewServer creates a new HTTP server instance.
func NewServer(config *domain.Config, deps Deps, logger *logrus.Logger) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(config.Server.RateLimit, config.Server.RateBurst)
	router.Use(rateLimiter.Middleware())

	server := &Server{
		config:      config,
		logger:      logger,
		machine:     deps.Machine,
		coordinator: deps.Coordinator,
		recorder:    deps.Recorder,
		evidence:    deps.Evidence,
		curations:   deps.Curations,
		analytics:   deps.Analytics,
		router:      router,
	}
	server.setupRoutes()
	return server
}

// Router exposes the gin engine, mainly for handler tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server and blocks until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/precurations", s.handleCreatePrecuration)
		v1.POST("/precurations/:id/transitions", s.handlePrecurationTransition)

		v1.POST("/curations", s.handleCreateCuration)
		v1.GET("/curations/:id", s.handleGetCuration)
		v1.DELETE("/curations/:id", s.handleDeleteCuration)
		v1.POST("/curations/:id/transitions", s.handleTransition)
		v1.POST("/curations/transitions", s.handleBulkTransition)
		v1.GET("/curations/:id/score", s.handleScorePreview)
		v1.GET("/curations/:id/audit", s.handleAuditTrail)

		v1.PUT("/curations/:id/evidence", s.handleSaveEvidence)
		v1.GET("/curations/:id/evidence", s.handleListEvidence)
		v1.DELETE("/evidence/:id", s.handleDeleteEvidence)

		v1.GET("/audit/summary", s.handleAuditSummary)

		v1.GET("/analytics/status", s.handleStatusDistribution)
		v1.GET("/analytics/classifications", s.handleClassificationDistribution)
	}
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
