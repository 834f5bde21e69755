// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/utils"
)

// StatusReporter exposes the device connection snapshot
type StatusReporter interface {
	Status() model.DeviceStatus
}

// ClientCounter reports the WebSocket clients currently attached
type ClientCounter interface {
	GetConnectionStats() *ConnectionStats
}

// HealthHandler handles health check requests
type HealthHandler struct {
	device    StatusReporter
	clients   ClientCounter
	config    *config.Config
	logger    *utils.ServiceLogger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. clients may be nil.
func NewHealthHandler(device StatusReporter, clients ClientCounter, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		device:    device,
		clients:   clients,
		config:    config,
		logger:    utils.NewServiceLogger(logger, "health-handler"),
		startTime: time.Now(),
	}
}

// HealthCheck performs general health check. A disconnected sensor degrades
// the service but does not make it unhealthy: the supervisor keeps retrying.
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.device.Status()

	health := &HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Service:   h.config.App.Name,
		Version:   h.config.App.Version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]CheckResult),
	}

	check := CheckResult{
		Status:  "healthy",
		Message: "Fingerprint sensor connected",
		Data: map[string]interface{}{
			"state":      status.State.String(),
			"port":       status.Port,
			"reconnects": status.Reconnects,
			"lines_read": status.LinesRead,
			"bytes_read": status.BytesRead,
			"io_errors":  status.IOErrors,
		},
	}
	if !status.Connected {
		health.Status = "degraded"
		check.Status = "degraded"
		check.Message = "Fingerprint sensor not connected"
		if status.LastError != "" {
			check.Data["last_error"] = status.LastError
		}
	}
	health.Checks["device"] = check

	if h.clients != nil {
		stats := h.clients.GetConnectionStats()
		health.Checks["websocket"] = CheckResult{
			Status: "healthy",
			Data:   map[string]interface{}{"clients": stats.TotalConnections},
		}
	}

	c.JSON(http.StatusOK, health)
}

// ReadinessCheck reports ready only while the sensor is connected
// @Summary Readiness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is ready"
// @Failure 503 {object} object{status=string,reason=string} "Service is not ready"
// @Router /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	status := h.device.Status()
	if !status.Connected {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "fingerprint sensor " + status.State.String(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// LivenessCheck for Kubernetes liveness probe
// @Summary Liveness check
// @Tags Health
// @Produce json
// @Success 200 {object} object{status=string,timestamp=string} "Service is alive"
// @Router /live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]CheckResult `json:"checks"`
}

// CheckResult represents individual check result
type CheckResult struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
