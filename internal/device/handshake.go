// internal/device/handshake.go
package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/protocol"
)

// Verifier confirms that a port hosts the fingerprint sensor.
// It opens its own short-lived handle and always closes it before returning.
type Verifier struct {
	opener      protocol.Opener
	serial      *protocol.SerialConfig
	signature   string
	settleDelay time.Duration
	window      time.Duration
	readTimeout time.Duration
	logger      *zap.Logger
}

// NewVerifier creates a handshake verifier from the device configuration
func NewVerifier(cfg *config.DeviceConfig, opener protocol.Opener, logger *zap.Logger) *Verifier {
	readTimeout := cfg.HandshakeReadTimeout
	if readTimeout <= 0 {
		readTimeout = protocol.DefaultReadTimeout
	}

	return &Verifier{
		opener:      opener,
		serial:      protocol.NewSerialConfig(cfg, ""),
		signature:   cfg.ReadySignature,
		settleDelay: cfg.SettleDelay,
		window:      cfg.HandshakeWindow,
		readTimeout: readTimeout,
		logger:      logger.With(zap.String("component", "handshake")),
	}
}

// Verify opens port, waits for the board to come out of reset and then
// reads lines until the ready-signature appears or the window elapses.
func (v *Verifier) Verify(ctx context.Context, port string) error {
	handle, err := v.opener.Open(port, v.serial.WithPort(port))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, port, err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			v.logger.Warn("Failed to close handshake port", zap.String("port", port), zap.Error(err))
		}
	}()

	if err := handle.SetReadTimeout(v.readTimeout); err != nil {
		return fmt.Errorf("%w: %s: set read timeout: %v", ErrIOFailure, port, err)
	}

	// Opening the port toggles DTR, which resets the board.
	if !sleepContext(ctx, v.settleDelay) {
		return ctx.Err()
	}

	var splitter protocol.LineSplitter
	buf := make([]byte, 256)
	deadline := time.Now().Add(v.window)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := handle.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrIOFailure, port, err)
		}
		if n == 0 {
			continue
		}

		for _, line := range splitter.Feed(buf[:n]) {
			v.logger.Debug("Handshake line", zap.String("port", port), zap.String("line", line))
			if strings.Contains(line, v.signature) {
				return nil
			}
		}
		if strings.Contains(splitter.Pending(), v.signature) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s: no %q within %s", ErrHandshakeTimeout, port, v.signature, v.window)
}

// sleepContext waits for d or until ctx is done; it reports whether the full delay elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
