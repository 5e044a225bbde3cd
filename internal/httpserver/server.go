package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tracelayer/tracking-api/internal/auth"
	"github.com/tracelayer/tracking-api/internal/config"
	"github.com/tracelayer/tracking-api/internal/handlers"
	"github.com/tracelayer/tracking-api/internal/metrics"
	"github.com/tracelayer/tracking-api/internal/scheduler"
	"github.com/tracelayer/tracking-api/internal/segment"
)

// NewRouter wires public endpoints and the authenticated tracking API.
// Public: /healthcheck, /metrics
// Authenticated (x-api-key): /, /anonymous_id, /identify, /track, /page
func NewRouter(
	cfg config.Config,
	svc *segment.Service,
	sched scheduler.Scheduler,
	m *metrics.Metrics,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "x-api-key"},
			AllowCredentials: true,
		}))
	}

	// Deferred deliveries run after the response, via the request batch.
	r.Use(scheduler.Middleware(sched))

	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "healthcheck successful"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKey))

	handlers.RegisterTrackingRoutes(authGroup, cfg, svc, log)

	return r
}

// requestLogger emits one debug line per request once the response is done.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
