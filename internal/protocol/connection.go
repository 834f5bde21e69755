// internal/protocol/connection.go
package protocol

import (
	"time"

	"fingerprint-bridge/internal/config"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"`

	// The sensor board resets when these lines are asserted on open.
	AssertDTR bool `json:"assert_dtr"`
	AssertRTS bool `json:"assert_rts"`
}

// NewSerialConfig builds port settings from the device configuration
func NewSerialConfig(cfg *config.DeviceConfig, port string) *SerialConfig {
	return &SerialConfig{
		Port:      port,
		BaudRate:  cfg.BaudRate,
		DataBits:  cfg.DataBits,
		StopBits:  cfg.StopBits,
		Parity:    cfg.Parity,
		Timeout:   cfg.ReadTimeout,
		AssertDTR: true,
		AssertRTS: true,
	}
}

// WithPort returns a copy of the config bound to another port
func (c *SerialConfig) WithPort(port string) *SerialConfig {
	clone := *c
	clone.Port = port
	return &clone
}
