// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventStateChanged      EventType = "device.state"
	EventSerialLog         EventType = "device.log"
	EventFingerprint       EventType = "device.fingerprint"
	EventCommandDispatched EventType = "device.command"
)

// DeviceEvent represents an event in the system
type DeviceEvent struct {
	ID        uuid.UUID   `json:"id"`
	Type      EventType   `json:"type"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewDeviceEvent stamps a new event with an ID and the current time
func NewDeviceEvent(eventType EventType, source string, data interface{}) DeviceEvent {
	return DeviceEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// CommandEventData describes a dispatched command
type CommandEventData struct {
	Command string `json:"command"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StateChangedEventData describes a supervisor transition
type StateChangedEventData struct {
	From ConnectionState `json:"from"`
	To   ConnectionState `json:"to"`
	Port string          `json:"port,omitempty"`
}

// FingerprintEventData carries a fingerprint slot reported by the sensor
type FingerprintEventData struct {
	FingerprintID int    `json:"fingerprint_id"`
	Raw           string `json:"raw"`
}
