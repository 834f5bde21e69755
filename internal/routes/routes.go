// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/handler"
	"fingerprint-bridge/internal/metrics"
	"fingerprint-bridge/internal/middleware"
	"fingerprint-bridge/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config    *config.Config
	logger    *zap.Logger
	device    handler.DeviceController
	ports     handler.PortInspector
	metrics   *metrics.Metrics
	websocket *handler.WebSocketHandler
}

// NewRouter creates a new router instance. metrics may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	device handler.DeviceController,
	ports handler.PortInspector,
	metrics *metrics.Metrics,
	websocket *handler.WebSocketHandler,
) *Router {
	return &Router{
		config:    config,
		logger:    logger,
		device:    device,
		ports:     ports,
		metrics:   metrics,
		websocket: websocket,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	switch {
	case r.config.App.Environment == "test":
		gin.SetMode(gin.TestMode)
	case r.config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger))

	if r.metricsEnabled() {
		router.Use(middleware.MetricsMiddleware(r.metrics))
	}

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	var clients handler.ClientCounter
	if r.websocket != nil {
		clients = r.websocket
	}
	healthHandler := handler.NewHealthHandler(r.device, clients, r.config, r.logger)
	deviceHandler := handler.NewDeviceHandler(r.device, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(r.ports, r.logger)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addDeviceRoutes(apiV1, deviceHandler, discoveryHandler)

	if r.websocket != nil {
		router.GET("/ws/device", r.websocket.HandleDeviceConnection)
	}

	if r.metricsEnabled() {
		router.GET(r.config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}

	r.logger.Info("All routes configured successfully")
}

func (r *Router) metricsEnabled() bool {
	return r.metrics != nil && r.config.Metrics.Enabled
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDeviceRoutes sets up fingerprint sensor routes
func (r *Router) addDeviceRoutes(api *gin.RouterGroup, deviceHandler *handler.DeviceHandler, discoveryHandler *handler.DiscoveryHandler) {
	device := api.Group("/device")
	{
		device.GET("/status", deviceHandler.GetStatus)
		device.GET("/connected", deviceHandler.IsConnected)
		device.POST("/commands", deviceHandler.SendCommand)
		device.GET("/logs", deviceHandler.GetLogs)
		device.GET("/fingerprint-id", deviceHandler.GetFingerprintID)
		device.GET("/ports", discoveryHandler.ListPorts)
	}
}
