// cmd/server/app.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/device"
	"fingerprint-bridge/internal/discovery/serial"
	"fingerprint-bridge/internal/handler"
	"fingerprint-bridge/internal/metrics"
	"fingerprint-bridge/internal/protocol"
	"fingerprint-bridge/internal/routes"
	"fingerprint-bridge/internal/utils"
)

const serverShutdownTimeout = 10 * time.Second

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	metrics   *metrics.Metrics
	eventBus  *handler.EventBus
	scanner   *serial.Scanner
	manager   *device.Manager
	websocket *handler.WebSocketHandler
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "fingerprint-bridge")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	app.initializeDevice()
	app.initializeServer()

	return app, nil
}

// initializeDevice wires the scanner, supervisor and event fan-out
func (app *Application) initializeDevice() {
	if app.config.Metrics.Enabled {
		app.metrics = metrics.New()
	}

	app.eventBus = handler.NewEventBus(app.logger)
	app.scanner = serial.NewScanner(serial.SystemPorts, app.config.Device.PortPatterns, app.logger)

	app.manager = device.NewManager(
		&app.config.Device,
		app.scanner,
		protocol.SerialOpener{},
		app.logger,
		device.WithMetrics(app.metrics),
		device.WithEventPublisher(app.eventBus),
	)

	app.websocket = handler.NewWebSocketHandler(
		app.manager,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	app.logger.Info("Device manager initialized",
		zap.Int("baud_rate", app.config.Device.BaudRate),
		zap.String("ready_signature", app.config.Device.ReadySignature),
		zap.Bool("initial_scan", app.config.Device.InitialScan),
	)
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config,
		app.logger,
		app.manager,
		app.scanner,
		app.metrics,
		app.websocket,
	).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized", zap.String("address", app.server.Addr))
}

// Run starts the supervisor and the HTTP server and blocks until a shutdown
// signal arrives or the server fails
func (app *Application) Run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.eventBus.Start(ctx)
	go app.websocket.Run(ctx)

	if err := app.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start device manager: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Received shutdown signal")
	case err := <-serverErr:
		if err != nil {
			utils.LogError(app.logger, "HTTP server failed", err, zap.String("addr", app.server.Addr))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	app.shutdown()
	return runErr
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "fingerprint-bridge")
	serviceLogger.LogServiceStop("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		utils.LogError(app.logger, "HTTP server shutdown error", err)
	} else {
		app.logger.Info("HTTP server stopped")
	}

	grace := app.config.Device.ShutdownGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}
	deviceCtx, deviceCancel := context.WithTimeout(context.Background(), grace)
	defer deviceCancel()

	if err := app.manager.Close(deviceCtx); err != nil {
		utils.LogError(app.logger, "Device manager shutdown error", err)
	} else {
		app.logger.Info("Device port released")
	}

	app.logger.Info("Application shutdown completed")
	_ = utils.CloseLogger(app.logger)
}
