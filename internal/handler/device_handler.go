// internal/handler/device_handler.go
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/device"
	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/utils"
)

// DeviceController is the part of the device manager the HTTP layer uses
type DeviceController interface {
	IsConnected() bool
	Status() model.DeviceStatus
	SendCommand(ctx context.Context, command string) error
	LogEntries() []model.LogEntry
	QueryFingerprintID(ctx context.Context) (int, error)
}

// DeviceHandler handles fingerprint sensor HTTP requests
type DeviceHandler struct {
	device DeviceController
	logger *utils.ServiceLogger
}

// CommandRequest is the body of a command dispatch
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(device DeviceController, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		device: device,
		logger: utils.NewServiceLogger(logger, "device-handler"),
	}
}

// GetStatus returns the connection snapshot
// @Summary Device status
// @Tags Device
// @Produce json
// @Success 200 {object} utils.APIResponse{data=model.DeviceStatus}
// @Router /device/status [get]
func (h *DeviceHandler) GetStatus(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "Device status retrieved", h.device.Status())
}

// IsConnected reports whether the sensor is connected
// @Summary Device connected
// @Tags Device
// @Produce json
// @Success 200 {object} object{connected=bool}
// @Router /device/connected [get]
func (h *DeviceHandler) IsConnected(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": h.device.IsConnected()})
}

// SendCommand dispatches a command to the sensor
// @Summary Send device command
// @Tags Device
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command"
// @Success 200 {object} utils.APIResponse "Command sent"
// @Failure 400 {object} utils.APIResponse "Invalid command"
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Router /device/commands [post]
func (h *DeviceHandler) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.device.SendCommand(c.Request.Context(), req.Command); err != nil {
		status := commandErrorStatus(err)
		h.logger.Warn("Device command failed",
			zap.String("command", req.Command),
			zap.Int("status", status),
			zap.Error(err),
		)
		utils.ErrorResponse(c, status, "Failed to send command", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Command sent", gin.H{"command": req.Command})
}

// GetLogs returns buffered serial lines
// @Summary Device logs
// @Tags Device
// @Produce json
// @Param since query int false "Only entries with a greater sequence"
// @Param limit query int false "Return at most this many of the newest entries"
// @Success 200 {object} utils.APIResponse{data=[]model.LogEntry}
// @Router /device/logs [get]
func (h *DeviceHandler) GetLogs(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid since parameter", err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}

	entries := filterEntries(h.device.LogEntries(), since, limit)
	utils.SuccessResponse(c, http.StatusOK, "Device logs retrieved", entries)
}

// GetFingerprintID asks the sensor for the current fingerprint slot
// @Summary Query fingerprint ID
// @Tags Device
// @Produce json
// @Success 200 {object} utils.APIResponse{data=object{fingerprint_id=int}}
// @Failure 503 {object} utils.APIResponse "Device not connected"
// @Failure 504 {object} utils.APIResponse "Device did not answer"
// @Router /device/fingerprint-id [get]
func (h *DeviceHandler) GetFingerprintID(c *gin.Context) {
	id, err := h.device.QueryFingerprintID(c.Request.Context())
	if err != nil {
		utils.ErrorResponse(c, commandErrorStatus(err), "Failed to query fingerprint ID", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Fingerprint ID retrieved", gin.H{"fingerprint_id": id})
}

func filterEntries(entries []model.LogEntry, since uint64, limit int) []model.LogEntry {
	filtered := make([]model.LogEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Sequence > since {
			filtered = append(filtered, entry)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// commandErrorStatus maps device errors onto HTTP status codes
func commandErrorStatus(err error) int {
	switch {
	case errors.Is(err, device.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, device.ErrCommandRejected), errors.Is(err, device.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, device.ErrIOFailure):
		return http.StatusBadGateway
	case errors.Is(err, device.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
