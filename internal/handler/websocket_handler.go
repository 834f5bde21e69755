// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/utils"
)

const (
	wsReadDeadline  = 60 * time.Second
	wsPingInterval  = 54 * time.Second
	wsWriteDeadline = 10 * time.Second
	wsSendQueue     = 256
	wsCommandWait   = 10 * time.Second
)

// WebSocketHandler pushes device events to browser clients and accepts
// commands from them
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	device      DeviceController
	eventBus    *EventBus
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler. An empty allowedOrigins
// accepts any origin.
func NewWebSocketHandler(device DeviceController, eventBus *EventBus, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		connections: NewConnectionManager(),
		device:      device,
		eventBus:    eventBus,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Run forwards bus events to connected clients until ctx is cancelled
func (h *WebSocketHandler) Run(ctx context.Context) {
	events, unsubscribe := h.eventBus.Subscribe(0,
		model.EventSerialLog,
		model.EventFingerprint,
		model.EventStateChanged,
		model.EventCommandDispatched,
	)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcastEvent(event)
		}
	}
}

// HandleDeviceConnection upgrades the request and streams device events
func (h *WebSocketHandler) HandleDeviceConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, wsSendQueue),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Device WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	h.sendMessage(client, &WebSocketMessage{
		Type: MessageInitialStatus,
		Data: gin.H{
			"status": h.device.Status(),
			"logs":   h.device.LogEntries(),
		},
		Timestamp: time.Now(),
	})

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Device WebSocket client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadDeadline(time.Now().Add(wsReadDeadline))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.sendError(client, "", "invalid message")
			continue
		}

		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Warn("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe", "unsubscribe":
		topic, ok := stringField(message.Data, "topic")
		if !ok {
			h.sendError(client, message.RequestID, "topic is required")
			return
		}
		if message.Type == "subscribe" {
			client.Subscribe(topic)
		} else {
			client.Unsubscribe(topic)
		}
	case "device_command":
		command, ok := stringField(message.Data, "command")
		if !ok {
			h.sendError(client, message.RequestID, "command is required")
			return
		}
		go h.executeDeviceCommand(client, message.RequestID, command)
	case "get_status":
		h.sendMessage(client, &WebSocketMessage{
			Type:      MessageInitialStatus,
			Data:      gin.H{"status": h.device.Status()},
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      MessagePong,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	default:
		h.logger.Debug("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
		h.sendError(client, message.RequestID, "unknown message type: "+message.Type)
	}
}

func stringField(data interface{}, key string) (string, bool) {
	fields, ok := data.(map[string]interface{})
	if !ok {
		return "", false
	}
	value, ok := fields[key].(string)
	return value, ok && value != ""
}

// executeDeviceCommand sends a command on behalf of a client and reports the outcome
func (h *WebSocketHandler) executeDeviceCommand(client *Client, requestID, command string) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCommandWait)
	defer cancel()

	err := h.device.SendCommand(ctx, command)

	data := gin.H{
		"command": command,
		"success": err == nil,
	}
	if err != nil {
		data["error"] = err.Error()
	}

	h.sendMessage(client, &WebSocketMessage{
		Type:      MessageCommandResponse,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// broadcastEvent translates a bus event into a client message
func (h *WebSocketHandler) broadcastEvent(event model.DeviceEvent) {
	var messageType string
	switch event.Type {
	case model.EventSerialLog:
		messageType = MessageSerialLog
	case model.EventFingerprint:
		messageType = MessageFingerprint
	case model.EventStateChanged:
		messageType = MessageStateChanged
	case model.EventCommandDispatched:
		messageType = MessageCommandSent
	default:
		return
	}

	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      messageType,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	if dropped := h.connections.Broadcast(messageType, messageBytes); dropped > 0 {
		h.logger.Warn("Client send channel full during broadcast",
			zap.String("type", messageType),
			zap.Int("dropped", dropped),
		)
	}
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Deliver(client, messageBytes) {
		h.logger.Debug("Dropping message for client",
			zap.String("client_id", client.ID),
			zap.String("type", message.Type),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, requestID, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      MessageError,
		Data:      gin.H{"error": errorMsg},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
