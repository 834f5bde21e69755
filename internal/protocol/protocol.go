// internal/protocol/protocol.go
package protocol

import (
	"errors"
	"io"
	"time"
)

// ErrPortNotOpen is returned for I/O on a connection that is not open
var ErrPortNotOpen = errors.New("serial port not open")

// Port is the subset of a serial port handle the bridge relies on.
// go.bug.st/serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(timeout time.Duration) error
}

// Opener opens serial port handles
type Opener interface {
	Open(name string, config *SerialConfig) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface
type OpenerFunc func(name string, config *SerialConfig) (Port, error)

// Open calls f
func (f OpenerFunc) Open(name string, config *SerialConfig) (Port, error) {
	return f(name, config)
}

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten int64     `json:"bytes_written"`
	BytesRead    int64     `json:"bytes_read"`
	LinesRead    int64     `json:"lines_read"`
	ErrorCount   int64     `json:"error_count"`
	OpenedAt     time.Time `json:"opened_at"`
	LastActivity time.Time `json:"last_activity"`
	IsConnected  bool      `json:"is_connected"`
}
