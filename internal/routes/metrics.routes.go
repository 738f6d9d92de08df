package routes

import (
	"sysaura/internal/controllers"
	"sysaura/internal/models"

	"github.com/gin-gonic/gin"
)

// RegisterMetricsRoutes mounts the metrics endpoints on an authenticated group.
func RegisterMetricsRoutes(api *gin.RouterGroup, mc *controllers.MetricsController) {
	metrics := api.Group("/metrics")
	{
		metrics.GET("/current", mc.GetCurrent)
		metrics.GET("/cpu", mc.GetKind(models.KindCPU))
		metrics.GET("/memory", mc.GetKind(models.KindMemory))
		metrics.GET("/disk", mc.GetKind(models.KindDisk))
		metrics.GET("/network", mc.GetKind(models.KindNetwork))
		metrics.GET("/live/:kind", mc.GetLive)
		metrics.GET("/history/:systemId", mc.GetHistory)
		metrics.POST("/refresh/:systemId", mc.RefreshSystem)
		metrics.POST("/:systemId", mc.PostMetrics)
	}
}
