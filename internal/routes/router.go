package routes

import (
	"net/http"
	"time"

	"sysaura/internal/controllers"
	"sysaura/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RouterOptions carries the controllers and security settings of the HTTP server.
type RouterOptions struct {
	Metrics   *controllers.MetricsController
	Alerts    *controllers.AlertsController
	WebSocket *controllers.WebSocketController
	Auth      middleware.TokenValidator
	Security  *middleware.SecurityLogger

	AllowedOrigins []string
	AllowedIPs     []string
	RateLimit      float64
	RateBurst      int

	// AccessLog enables gin's request logger.
	AccessLog bool
}

// NewRouter builds the gin engine with the security middleware stack, /health,
// /ws and the authenticated /api group.
func NewRouter(opts RouterOptions) *gin.Engine {
	sl := opts.Security
	if sl == nil {
		sl = middleware.NewSecurityLogger(nil)
	}

	r := gin.New()
	if opts.AccessLog {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeadersMiddleware())
	r.Use(middleware.CORSMiddleware(opts.AllowedOrigins))
	r.Use(middleware.AllowListMiddleware(middleware.NewAllowList(opts.AllowedIPs), sl))
	r.Use(middleware.RateLimitMiddleware(middleware.NewRateLimiter(opts.RateLimit, opts.RateBurst), sl))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})

	if opts.WebSocket != nil {
		RegisterAuthRoutes(r, opts.WebSocket, middleware.NewHandshakeRateLimiter(), sl)
	}

	api := r.Group("/api", middleware.AuthMiddleware(opts.Auth, sl))
	if opts.Metrics != nil {
		RegisterMetricsRoutes(api, opts.Metrics)
	}
	if opts.Alerts != nil {
		RegisterAlertRoutes(api, opts.Alerts)
	}
	return r
}
