package api

import (
	"fmt"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/pvasseur/streamsync/internal/enrichment"
	"github.com/pvasseur/streamsync/internal/logger"
	"github.com/pvasseur/streamsync/internal/store"
	"github.com/pvasseur/streamsync/internal/syncer"
)

// Server exposes the sync pipeline over HTTP
type Server struct {
	router     *gin.Engine
	sources    *store.Sources
	catalog    *store.Catalog
	logs       *store.SyncLogs
	engine     *syncer.Engine
	enricher   *enrichment.Service
	logger     *logger.Logger
	healthFunc func() error
}

// Config wires the server dependencies
type Config struct {
	Sources  *store.Sources
	Catalog  *store.Catalog
	Logs     *store.SyncLogs
	Engine   *syncer.Engine
	Enricher *enrichment.Service
	Logger   *logger.Logger

	// HealthFunc reports backing store health for the /health endpoint
	HealthFunc func() error
}

// NewServer creates a new API server instance
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	s := &Server{
		router:     router,
		sources:    cfg.Sources,
		catalog:    cfg.Catalog,
		logs:       cfg.Logs,
		engine:     cfg.Engine,
		enricher:   cfg.Enricher,
		logger:     cfg.Logger,
		healthFunc: cfg.HealthFunc,
	}

	router.Use(s.requestIDMiddleware())
	router.Use(s.requestLogMiddleware())

	s.setupRoutes()

	return s
}

// Run starts the API server on the specified port
func (s *Server) Run(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// Handler returns the underlying HTTP handler, used by tests
func (s *Server) Handler() *gin.Engine {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/sources", s.listSources)
		v1.POST("/sources", s.createSource)
		v1.GET("/sources/:id", s.getSource)
		v1.PUT("/sources/:id", s.updateSource)
		v1.DELETE("/sources/:id", s.deleteSource)

		v1.POST("/sources/:id/sync", s.syncSource)
		v1.POST("/sources/:id/resync", s.resyncSource)
		v1.POST("/sources/:id/enrich", s.enrichSource)

		v1.GET("/entries", s.listEntries)
		v1.POST("/entries/matches", s.findMatches)

		v1.GET("/runs", s.listRuns)
		v1.GET("/stats", s.stats)
	}
}
