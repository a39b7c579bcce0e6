package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelstack/sentinel-ops/internal/services"
)

// OpsHandler exposes the remediation engine over HTTP.
type OpsHandler struct {
	service *services.OpsService
	logger  *slog.Logger
}

// NewOpsHandler constructs the handler set.
func NewOpsHandler(service *services.OpsService, logger *slog.Logger) *OpsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpsHandler{service: service, logger: logger}
}

// POST /api/v1/remediate - run the check-then-remediate workflow for one service
func (h *OpsHandler) Remediate(c *gin.Context) {
	var req struct {
		ServiceID string `json:"service_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "service_id is required"})
		return
	}

	event, err := h.service.RemediateService(c.Request.Context(), req.ServiceID)
	if err != nil {
		h.logger.Error("manual remediation failed",
			slog.String("service_id", req.ServiceID), slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": event})
}

// GET /api/v1/events - the full remediation event log, oldest first
func (h *OpsHandler) ListEvents(c *gin.Context) {
	events := h.service.Controller().EventLog()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"events": events, "count": len(events)},
	})
}

// DELETE /api/v1/events - clear the event log
func (h *OpsHandler) ClearEvents(c *gin.Context) {
	h.service.Controller().ClearEventLog()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GET /api/v1/events/:id/report - derive an incident report for one event
func (h *OpsHandler) IncidentReport(c *gin.Context) {
	eventID := c.Param("id")
	for _, event := range h.service.Controller().EventLog() {
		if event.EventID == eventID {
			c.JSON(http.StatusOK, gin.H{
				"status": "success",
				"data":   h.service.Controller().GenerateIncidentReport(event),
			})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "event not found"})
}

// GET /api/v1/hygiene - composite fleet hygiene score
func (h *OpsHandler) Hygiene(c *gin.Context) {
	score, err := h.service.HygieneSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("hygiene snapshot failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": score})
}

// POST /api/v1/remediation/enable - turn automatic remediation on
func (h *OpsHandler) EnableRemediation(c *gin.Context) {
	h.service.Controller().Enable()
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"enabled": true}})
}

// POST /api/v1/remediation/disable - turn automatic remediation off
func (h *OpsHandler) DisableRemediation(c *gin.Context) {
	h.service.Controller().Disable()
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"enabled": false}})
}

// GET /api/v1/remediation/status - current controller state
func (h *OpsHandler) RemediationStatus(c *gin.Context) {
	controller := h.service.Controller()
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"enabled":             controller.IsEnabled(),
			"suppressed_services": controller.SuppressedServices(),
			"event_count":         len(controller.EventLog()),
			"latency_p95_ms":      float64(h.service.LatencyP95()) / float64(time.Millisecond),
		},
	})
}

// GET /api/v1/services/suppressed - services with auto-restart disabled
func (h *OpsHandler) SuppressedServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"services": h.service.Controller().SuppressedServices()},
	})
}

// POST /api/v1/services/:id/reenable - clear suppression for one service
func (h *OpsHandler) ReEnableService(c *gin.Context) {
	serviceID := c.Param("id")
	if !h.service.Controller().ReEnableService(serviceID) {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "service is not suppressed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"service_id": serviceID}})
}

// GET /api/v1/patterns - incident patterns mined from the event log
func (h *OpsHandler) Patterns(c *gin.Context) {
	mined, err := h.service.Patterns(c.Request.Context())
	if err != nil {
		h.logger.Error("pattern mining failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"patterns": mined, "count": len(mined)},
	})
}

// GET /healthz - liveness probe
func (h *OpsHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "sentinel-ops",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
