// Package http assembles the gin router and HTTP server of molmatch serve.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molmatch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molmatch/internal/interfaces/http/handlers"
	"github.com/turtacn/molmatch/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unregistered.
type RouterConfig struct {
	MatchHandler  *handlers.MatchHandler
	HealthHandler *handlers.HealthHandler

	Logger           logging.Logger
	Logging          middleware.LoggingConfig
	Metrics          *prometheus.MatchMetrics
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string
	MaxBodySize      int64
}

// NewRouter constructs the route tree:
//
//	GET  /healthz
//	GET  /readyz
//	GET  /metrics             (when a collector is configured)
//	POST /api/v1/match
//	POST /api/v1/match/batch
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic in http handler",
			logging.Any("panic", recovered),
			logging.String("path", c.Request.URL.Path),
			logging.String("request_id", middleware.GetRequestID(c)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
			Code:    "COMMON_001",
			Message: "internal server error",
		})
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogging(logger, cfg.Logging))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.BodyLimit(cfg.MaxBodySize))
	if cfg.MatchHandler != nil {
		v1.POST("/match", cfg.MatchHandler.Match)
		v1.POST("/match/batch", cfg.MatchHandler.MatchBatch)
	}

	return r
}
