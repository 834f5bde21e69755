// internal/model/device_test.go
package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionState_JSON(t *testing.T) {
	data, err := json.Marshal(DeviceStatus{State: StateVerifying})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"VERIFYING"`)

	var status DeviceStatus
	require.NoError(t, json.Unmarshal(data, &status))
	assert.Equal(t, StateVerifying, status.State)
}

func TestParseConnectionState(t *testing.T) {
	state, err := ParseConnectionState("connected")
	require.NoError(t, err)
	assert.Equal(t, StateConnected, state)

	_, err = ParseConnectionState("plugged")
	assert.Error(t, err)

	assert.Equal(t, "UNKNOWN(42)", ConnectionState(42).String())
}

func TestNewDeviceEvent(t *testing.T) {
	a := NewDeviceEvent(EventSerialLog, "sensor", LogEntry{Line: "A"})
	b := NewDeviceEvent(EventSerialLog, "sensor", LogEntry{Line: "B"})

	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Timestamp.IsZero())
	assert.Equal(t, "sensor", a.Source)
}
