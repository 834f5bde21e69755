// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultReadTimeout bounds each read so the connection lock is released regularly
const DefaultReadTimeout = 100 * time.Millisecond

// ErrPortMissing is returned when the operating system no longer knows the port
var ErrPortMissing = errors.New("serial port not found")

// ErrPortBusy is returned when another process holds the port
var ErrPortBusy = errors.New("serial port busy")

// SerialOpener opens real serial ports through go.bug.st/serial
type SerialOpener struct{}

// Open opens the named port with the given settings
func (SerialOpener) Open(name string, config *SerialConfig) (Port, error) {
	port, err := serial.Open(name, SerialMode(config))
	if err != nil {
		return nil, classifyOpenError(name, err)
	}
	return port, nil
}

// SerialMode converts port settings into a go.bug.st/serial mode
func SerialMode(config *SerialConfig) *serial.Mode {
	mode := &serial.Mode{
		BaudRate: config.BaudRate,
		DataBits: config.DataBits,
		InitialStatusBits: &serial.ModemOutputBits{
			DTR: config.AssertDTR,
			RTS: config.AssertRTS,
		},
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch config.StopBits {
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		mode.StopBits = serial.OneStopBit
	}

	switch config.Parity {
	case "odd":
		mode.Parity = serial.OddParity
	case "even":
		mode.Parity = serial.EvenParity
	case "mark":
		mode.Parity = serial.MarkParity
	case "space":
		mode.Parity = serial.SpaceParity
	default:
		mode.Parity = serial.NoParity
	}

	return mode
}

func classifyOpenError(name string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound:
			return fmt.Errorf("%w: %s", ErrPortMissing, name)
		case serial.PortBusy:
			return fmt.Errorf("%w: %s", ErrPortBusy, name)
		}
	}
	return fmt.Errorf("failed to open serial port %s: %w", name, err)
}

// SerialConnection is the long-lived data channel to the device.
// One mutex serialises open, close, read and write on the handle.
type SerialConnection struct {
	config *SerialConfig
	opener Opener
	port   Port
	logger *zap.Logger
	mutex  sync.Mutex
	isOpen bool
	stats  ProtocolStats
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, opener Opener, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		opener: opener,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	port, err := sc.opener.Open(sc.config.Port, sc.config)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return err
	}

	timeout := sc.config.Timeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.stats = ProtocolStats{
		IsConnected:  true,
		OpenedAt:     time.Now(),
		LastActivity: time.Now(),
	}

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return ErrPortNotOpen
	}

	written := 0
	for written < len(data) {
		n, err := sc.port.Write(data[written:])
		if err != nil {
			sc.stats.ErrorCount++
			sc.logger.Error("Serial write failed", zap.Error(err))
			return fmt.Errorf("failed to write to serial port: %w", err)
		}
		if n == 0 {
			sc.stats.ErrorCount++
			return fmt.Errorf("incomplete write: wrote %d of %d bytes", written, len(data))
		}
		written += n
	}

	sc.stats.BytesWritten += int64(written)
	sc.stats.LastActivity = time.Now()

	sc.logger.Debug("Serial write completed", zap.Int("bytes", written))
	return nil
}

// Read performs a single bounded read. A timeout yields (0, nil).
func (sc *SerialConnection) Read(buffer []byte) (int, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return 0, ErrPortNotOpen
	}

	n, err := sc.port.Read(buffer)
	if err != nil {
		sc.stats.ErrorCount++
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}

	if n > 0 {
		sc.stats.BytesRead += int64(n)
		sc.stats.LastActivity = time.Now()
	}
	return n, nil
}

// MarkLine counts one complete inbound line
func (sc *SerialConnection) MarkLine() {
	sc.mutex.Lock()
	sc.stats.LinesRead++
	sc.mutex.Unlock()
}

// Stats returns a copy of the connection statistics
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()
	return sc.stats
}
