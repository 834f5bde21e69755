// internal/utils/logger_test.go
package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fingerprint-bridge/internal/config"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bridge.log")
	logger, err := NewLogger(&config.LoggingConfig{
		Level:   "info",
		Format:  "json",
		Output:  path,
		MaxSize: 1,
	})
	require.NoError(t, err)

	logger.Info("sensor connected", zap.String("port", "COM5"))
	require.NoError(t, CloseLogger(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"sensor connected"`)
	assert.Contains(t, string(data), `"port":"COM5"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestDeviceLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dl := NewDeviceLogger(zap.New(core), "fingerprint-sensor")

	dl.LogConnection("open", "COM5", nil)
	dl.LogConnection("lost", "COM5", errors.New("unplugged"))
	dl.LogHandshake("COM5", 40*time.Millisecond, nil)
	dl.LogCommand("VERIFY", nil)

	require.Equal(t, 4, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, "fingerprint-sensor", logs.All()[0].ContextMap()["device_type"])
	assert.Equal(t, "Handshake succeeded", logs.All()[2].Message)
}

func TestServiceLogger_WithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sl := NewServiceLogger(zap.New(core), "http-server")

	sl.WithRequestID("req-7").LogAPIRequest("GET", "/health", "curl", "127.0.0.1", 200, time.Millisecond)
	sl.LogAPIRequest("GET", "/health", "curl", "127.0.0.1", 200, time.Millisecond)

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "req-7", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, "http-server", logs.All()[0].ContextMap()["service"])
	assert.NotContains(t, logs.All()[1].ContextMap(), "request_id")
}

func TestLogError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	LogError(zap.New(core), "HTTP server failed", errors.New("address in use"), zap.String("addr", ":8085"))

	entries := logs.FilterMessage("HTTP server failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "address in use", entries[0].ContextMap()["error"])
	assert.Equal(t, ":8085", entries[0].ContextMap()["addr"])
}
