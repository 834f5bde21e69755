// internal/handler/discovery_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/discovery/serial"
	"fingerprint-bridge/internal/utils"
)

// PortInspector lists serial ports for diagnostics
type PortInspector interface {
	List() ([]string, error)
	Details() ([]serial.PortInfo, error)
}

// DiscoveryHandler handles serial port discovery requests
type DiscoveryHandler struct {
	ports  PortInspector
	logger *utils.ServiceLogger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(ports PortInspector, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		ports:  ports,
		logger: utils.NewServiceLogger(logger, "discovery-handler"),
	}
}

// ListPorts lists visible serial ports
// @Summary List serial ports
// @Description List serial ports with USB metadata; detailed=false returns names only
// @Tags Discovery
// @Produce json
// @Param detailed query bool false "Include USB metadata" default(true)
// @Success 200 {object} utils.APIResponse{data=object{ports_found=int,ports=[]serial.PortInfo}}
// @Failure 500 {object} utils.APIResponse "Enumeration failed"
// @Router /device/ports [get]
func (h *DiscoveryHandler) ListPorts(c *gin.Context) {
	if c.DefaultQuery("detailed", "true") == "false" {
		names, err := h.ports.List()
		if err != nil {
			utils.LogError(h.logger.Logger, "Failed to list serial ports", err)
			utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
			return
		}
		utils.SuccessResponse(c, http.StatusOK, "Serial ports listed", gin.H{
			"ports_found": len(names),
			"ports":       names,
		})
		return
	}

	details, err := h.ports.Details()
	if err != nil {
		utils.LogError(h.logger.Logger, "Failed to list serial ports", err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Serial ports listed", gin.H{
		"ports_found": len(details),
		"ports":       details,
	})
}
