package routes

import (
	"sysaura/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAlertRoutes mounts the alert endpoints on an authenticated group.
func RegisterAlertRoutes(api *gin.RouterGroup, ac *controllers.AlertsController) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", ac.ListAlerts)
		alerts.POST("", ac.CreateAlert)
		alerts.GET("/system/:systemId", ac.ListSystemAlerts)
		alerts.PATCH("/:id", ac.UpdateAlertStatus)
		alerts.DELETE("/:id", ac.DismissAlert)
	}
}
