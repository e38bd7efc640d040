package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"aquawatch/api/middleware"
	"aquawatch/internal/config"
	"aquawatch/internal/elasticsearch"
	"aquawatch/internal/health"
	"aquawatch/internal/ingest"
	"aquawatch/internal/logger"
	"aquawatch/internal/store"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router       *gin.Engine
	store        *store.Store
	ingest       *ingest.Service
	healthEngine *health.Engine
	es           *elasticsearch.Client
	config       *config.Config
	logDir       string
}

func NewServer(st *store.Store, ingestSvc *ingest.Service, healthEngine *health.Engine, esClient *elasticsearch.Client, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Bound request handling so one slow pond cannot pin a connection.
	router.Use(func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})

	server := &Server{
		router:       router,
		store:        st,
		ingest:       ingestSvc,
		healthEngine: healthEngine,
		es:           esClient,
		config:       cfg,
		logDir:       "logs",
	}

	if err := logger.InitEvalFileLog(server.logDir); err != nil {
		fmt.Printf("Warning: Failed to initialize file log: %v\n", err)
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	api.Use(middleware.RateLimit())

	{
		// Pond management - all using POST
		api.POST("/pond/add", s.addPond)
		api.POST("/pond/list", s.listPonds)
		api.POST("/pond/get", s.getPond)
		api.POST("/pond/update", s.updatePond)

		// Sensor readings
		api.POST("/reading/add", s.addReading)
		api.POST("/reading/list", s.listReadings)

		// Alerts
		api.POST("/alert/list", s.listAlerts)
		api.POST("/alert/get", s.getAlert)
		api.POST("/alert/acknowledge", s.acknowledgeAlert)
		api.POST("/alert/resolve", s.resolveAlert)

		// Alert rules
		api.POST("/alert/rule/add", s.addAlertRule)
		api.POST("/alert/rule/list", s.listAlertRules)
		api.POST("/alert/rule/get", s.getAlertRule)
		api.POST("/alert/rule/update", s.updateAlertRule)
		api.POST("/alert/rule/remove", s.removeAlertRule)

		// Pond health assessment
		api.POST("/pond/health/get", s.getPondHealth)
		api.POST("/pond/health/history", s.listPondHealth)

		// Evaluation logs
		api.POST("/logs/search", s.searchLogs)

		// System configuration
		api.GET("/config", s.getConfig)
	}

	s.router.GET("/health", s.healthCheck)
}

// Common request/response types
type IDRequest struct {
	ID uint32 `json:"id" binding:"required"`
}

type PondIDRequest struct {
	PondID uint32 `json:"pond_id" binding:"required"`
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) getConfig(c *gin.Context) {
	// Strip credentials before echoing configuration.
	cfg := *s.config
	cfg.Database.Password = ""
	cfg.Elasticsearch.Password = ""
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
