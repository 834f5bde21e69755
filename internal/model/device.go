// internal/model/device.go
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ConnectionState represents where the supervisor is in its connection lifecycle
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateScanning
	StateVerifying
	StateConnected
	StateFaulted
)

var stateNames = map[ConnectionState]string{
	StateDisconnected: "DISCONNECTED",
	StateScanning:     "SCANNING",
	StateVerifying:    "VERIFYING",
	StateConnected:    "CONNECTED",
	StateFaulted:      "FAULTED",
}

// String returns the upper-case state name
func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(s))
}

// MarshalJSON encodes the state by name
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state name
func (s *ConnectionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseConnectionState(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseConnectionState parses a state name case-insensitively
func ParseConnectionState(name string) (ConnectionState, error) {
	for state, stateName := range stateNames {
		if strings.EqualFold(stateName, name) {
			return state, nil
		}
	}
	return StateDisconnected, fmt.Errorf("unknown connection state: %q", name)
}

// DeviceStatus is a point-in-time snapshot of the device connection
type DeviceStatus struct {
	State          ConnectionState `json:"state"`
	Connected      bool            `json:"connected"`
	Port           string          `json:"port,omitempty"`
	LastGoodPort   string          `json:"last_good_port,omitempty"`
	ConnectedSince *time.Time      `json:"connected_since,omitempty"`
	Reconnects     int64           `json:"reconnects"`
	Handshakes     int64           `json:"handshakes"`
	LastError      string          `json:"last_error,omitempty"`
	BufferedLines  int             `json:"buffered_lines"`
	BytesRead      int64           `json:"bytes_read"`
	BytesWritten   int64           `json:"bytes_written"`
	LinesRead      int64           `json:"lines_read"`
	IOErrors       int64           `json:"io_errors"`
	BaudRate       int             `json:"baud_rate"`
	ReadTimeout    time.Duration   `json:"read_timeout"`
}

// LogEntry is one line received from the device
type LogEntry struct {
	Sequence   uint64    `json:"sequence"`
	Line       string    `json:"line"`
	ReceivedAt time.Time `json:"received_at"`
}
