package routes

import (
	"sysaura/internal/controllers"
	"sysaura/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes registers the WebSocket endpoint. The socket authenticates
// with its own auth message, so it sits outside the bearer-token group.
// Token generation is done via the CLI (no HTTP endpoint).
func RegisterAuthRoutes(r *gin.Engine, wc *controllers.WebSocketController, limiter *middleware.RateLimiter, sl *middleware.SecurityLogger) {
	r.GET("/ws", middleware.RateLimitMiddleware(limiter, sl), wc.HandleWebSocket)
}
