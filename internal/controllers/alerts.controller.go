package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sysaura/internal/logger"
	"sysaura/internal/middleware"
	"sysaura/internal/models"
	"sysaura/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SourceManual marks alerts created through the API rather than by a threshold.
const SourceManual = "manual"

// AlertsController lists and manages alerts, scoped to the systems the caller
// may read.
type AlertsController struct {
	alerts    *services.AlertStore
	access    services.TargetAccess
	validator *middleware.InputValidator
	log       logger.Logger
	now       func() time.Time
}

// NewAlertsController creates the controller.
func NewAlertsController(alerts *services.AlertStore, access services.TargetAccess, log logger.Logger) *AlertsController {
	if log == nil {
		log = logger.New("[ALERT]")
	}
	return &AlertsController{
		alerts:    alerts,
		access:    access,
		validator: middleware.NewInputValidator(),
		log:       log,
		now:       time.Now,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type createAlertRequest struct {
	SystemID string `json:"systemId"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Category string `json:"category"`
}

// ListAlerts returns alerts of every system the caller may read, newest first.
// Query params: status=all|active|acknowledged|resolved, limit (50), offset (0), systemId
func (ac *AlertsController) ListAlerts(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	filter, ok := ac.filterFromQuery(c, 50)
	if !ok {
		return
	}
	filter.TargetID = c.Query("systemId")
	filter.Access = ac.accessFilter(c.Request.Context(), identity)

	c.JSON(http.StatusOK, ac.alerts.List(filter))
}

// ListSystemAlerts returns the alerts of one system.
// Query params: status (all), limit (20), offset (0)
func (ac *AlertsController) ListSystemAlerts(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	systemID := c.Param("systemId")
	if !ac.validator.ValidateSystemID(systemID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid system id"})
		return
	}
	if err := services.Authorize(c.Request.Context(), ac.access, identity, systemID); err != nil {
		respondError(c, ac.log, err)
		return
	}
	filter, ok := ac.filterFromQuery(c, 20)
	if !ok {
		return
	}
	filter.TargetID = systemID

	c.JSON(http.StatusOK, ac.alerts.List(filter))
}

// CreateAlert records an alert raised by hand for a system.
func (ac *AlertsController) CreateAlert(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SystemID == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" || req.Severity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "systemId, title, message and severity are required"})
		return
	}
	severity := models.Severity(req.Severity)
	if severity != models.SeverityWarning && severity != models.SeverityCritical {
		c.JSON(http.StatusBadRequest, gin.H{"error": "severity must be warning or critical"})
		return
	}
	var category models.Kind
	if req.Category != "" {
		kind, err := models.ParseKind(req.Category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		category = kind
	}
	if !ac.validator.ValidateSystemID(req.SystemID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid system id"})
		return
	}
	if err := services.Authorize(c.Request.Context(), ac.access, identity, req.SystemID); err != nil {
		respondError(c, ac.log, err)
		return
	}

	alert := models.Alert{
		ID:        uuid.New().String(),
		TargetID:  req.SystemID,
		Title:     strings.TrimSpace(req.Title),
		Message:   strings.TrimSpace(req.Message),
		Severity:  severity,
		Category:  category,
		Source:    SourceManual,
		Status:    models.StatusActive,
		CreatedAt: ac.now(),
	}
	if _, err := ac.alerts.Add(c.Request.Context(), alert); err != nil {
		respondError(c, ac.log, err)
		return
	}
	ac.log.Info("%s alert created by %s for %s: %s", alert.Severity, identity.UserID, alert.TargetID, alert.Title)
	c.JSON(http.StatusCreated, alert)
}

// UpdateAlertStatus acknowledges or resolves an alert.
func (ac *AlertsController) UpdateAlertStatus(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	status, valid := models.ParseAlertStatus(req.Status)
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid status is required"})
		return
	}

	id := c.Param("id")
	if _, ok := ac.ownedAlert(c, identity, id); !ok {
		return
	}
	updated, err := ac.alerts.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, ac.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DismissAlert removes an active alert.
func (ac *AlertsController) DismissAlert(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := ac.ownedAlert(c, identity, id); !ok {
		return
	}
	if err := ac.alerts.Remove(c.Request.Context(), id); err != nil {
		respondError(c, ac.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "dismissed": true})
}

// ownedAlert loads an alert and checks the caller may read its system.
func (ac *AlertsController) ownedAlert(c *gin.Context, identity models.Identity, id string) (models.Alert, bool) {
	alert, err := ac.alerts.Get(id)
	if err != nil {
		respondError(c, ac.log, err)
		return models.Alert{}, false
	}
	if err := services.Authorize(c.Request.Context(), ac.access, identity, alert.TargetID); err != nil {
		respondError(c, ac.log, err)
		return models.Alert{}, false
	}
	return alert, true
}

func (ac *AlertsController) filterFromQuery(c *gin.Context, defaultLimit int) (services.AlertFilter, bool) {
	var filter services.AlertFilter
	if raw := c.DefaultQuery("status", "all"); raw != "all" {
		status, valid := models.ParseAlertStatus(raw)
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", raw)})
			return filter, false
		}
		filter.Status = status
	}
	limit, ok := queryInt(c, "limit", defaultLimit)
	if !ok {
		return filter, false
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return filter, false
	}
	filter.Limit, filter.Offset = limit, offset
	return filter, true
}

// accessFilter memoizes per-system access checks for one listing. Admins get
// no filter at all.
func (ac *AlertsController) accessFilter(ctx context.Context, identity models.Identity) func(string) bool {
	if identity.IsAdmin() {
		return nil
	}
	seen := make(map[string]bool)
	return func(targetID string) bool {
		if allowed, ok := seen[targetID]; ok {
			return allowed
		}
		allowed := services.Authorize(ctx, ac.access, identity, targetID) == nil
		seen[targetID] = allowed
		return allowed
	}
}

func requireIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
	}
	return identity, ok
}
