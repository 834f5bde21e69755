// internal/device/fingerprint.go
package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const fingerprintPrefix = "ID #"

// ParseFingerprintLine extracts the slot from an "ID #<n>" line
func ParseFingerprintLine(line string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), fingerprintPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return id, true
}

// ParseFingerprintID accepts either an "ID #<n>" line or a bare integer
func ParseFingerprintID(line string) (int, bool) {
	if id, ok := ParseFingerprintLine(line); ok {
		return id, true
	}
	id, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, false
	}
	return id, true
}

// QueryFingerprintID asks the sensor for the current fingerprint slot and
// waits for the first reply that parses as one. The reply is taken from the
// log stream, so the read loop stays the only reader of the port.
func (m *Manager) QueryFingerprintID(ctx context.Context) (int, error) {
	entries, cancel := m.sink.Subscribe(m.cfg.SubscriberBuffer)
	defer cancel()

	if err := m.SendCommand(ctx, CommandGetID); err != nil {
		return 0, err
	}

	timeout := m.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return 0, ErrNotRunning
			}
			if id, ok := ParseFingerprintID(entry.Line); ok {
				return id, nil
			}
		case <-timer.C:
			return 0, fmt.Errorf("%w: %s after %s", ErrQueryTimeout, CommandGetID, timeout)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
