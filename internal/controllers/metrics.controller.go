package controllers

import (
	"net/http"

	"sysaura/internal/logger"
	"sysaura/internal/middleware"
	"sysaura/internal/models"
	"sysaura/internal/services"

	"github.com/gin-gonic/gin"
)

// MetricsController serves snapshots, per-kind details, live rings and the
// persisted metrics history.
type MetricsController struct {
	dist       *services.Distributor
	aggregator *services.Aggregator
	access     services.TargetAccess
	validator  *middleware.InputValidator
	log        logger.Logger
}

// NewMetricsController creates the controller. access may be nil, in which case
// only admins reach non-local systems.
func NewMetricsController(dist *services.Distributor, aggregator *services.Aggregator, access services.TargetAccess, log logger.Logger) *MetricsController {
	if log == nil {
		log = logger.New("[METRICS]")
	}
	return &MetricsController{
		dist:       dist,
		aggregator: aggregator,
		access:     access,
		validator:  middleware.NewInputValidator(),
		log:        log,
	}
}

// GetCurrent refreshes the local system and returns the snapshot.
func (mc *MetricsController) GetCurrent(c *gin.Context) {
	snap, err := mc.dist.Refresh(c.Request.Context(), models.LocalTargetID)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RefreshSystem refreshes one system and pushes the result to its subscribers.
func (mc *MetricsController) RefreshSystem(c *gin.Context) {
	systemID, ok := mc.authorizedSystem(c)
	if !ok {
		return
	}
	snap, err := mc.dist.Refresh(c.Request.Context(), systemID)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetKind returns a handler for one metric kind's detail block.
func (mc *MetricsController) GetKind(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := mc.aggregator.KindInfo(c.Request.Context(), kind)
		if err != nil {
			respondError(c, mc.log, err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// GetLive returns the rolling history ring of one kind without sampling.
func (mc *MetricsController) GetLive(c *gin.Context) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	history := mc.aggregator.History()
	c.JSON(http.StatusOK, gin.H{
		"metric":   kind,
		"capacity": history.CPU.Cap(),
		"data":     history.Window(kind),
	})
}

// GetHistory returns persisted rows for a system, newest first.
// Query params: limit (default 24), offset (default 0)
func (mc *MetricsController) GetHistory(c *gin.Context) {
	systemID, ok := mc.authorizedSystem(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 24)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	rows, err := mc.dist.History(c.Request.Context(), systemID, limit, offset)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	if rows == nil {
		rows = []models.MetricsRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// PostMetrics ingests metrics reported by an external agent.
func (mc *MetricsController) PostMetrics(c *gin.Context) {
	systemID := c.Param("systemId")
	if !mc.validator.ValidateSystemID(systemID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid system id"})
		return
	}

	var in models.MetricsInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	row, raised, err := mc.dist.Ingest(c.Request.Context(), systemID, in)
	if err != nil {
		respondError(c, mc.log, err)
		return
	}
	if len(raised) > 0 {
		mc.log.Info("%d alert(s) raised for %s", len(raised), systemID)
	}
	c.JSON(http.StatusCreated, row)
}

// authorizedSystem validates the systemId path parameter and checks that the
// caller may read it. It writes the error response itself.
func (mc *MetricsController) authorizedSystem(c *gin.Context) (string, bool) {
	systemID := c.Param("systemId")
	if !mc.validator.ValidateSystemID(systemID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid system id"})
		return "", false
	}
	identity, ok := requireIdentity(c)
	if !ok {
		return "", false
	}
	if err := services.Authorize(c.Request.Context(), mc.access, identity, systemID); err != nil {
		respondError(c, mc.log, err)
		return "", false
	}
	return systemID, true
}
