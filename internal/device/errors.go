// internal/device/errors.go
package device

import "errors"

// Hardware-level failures never escape the manager as panics; callers see
// these sentinels wrapped with context and match them with errors.Is.
var (
	// ErrPortUnavailable means the port vanished or could not be opened
	ErrPortUnavailable = errors.New("port unavailable")

	// ErrHandshakeTimeout means no ready-signature arrived within the read window
	ErrHandshakeTimeout = errors.New("handshake timeout")

	// ErrIOFailure means a read or write on the live connection failed
	ErrIOFailure = errors.New("device i/o failure")

	// ErrCommandRejected means a command was issued with no device connected
	ErrCommandRejected = errors.New("command rejected: device not connected")

	// ErrInvalidCommand is a caller error: empty or multi-line command
	ErrInvalidCommand = errors.New("invalid command")

	// ErrQueryTimeout means the device did not answer a query in time
	ErrQueryTimeout = errors.New("timed out waiting for device response")

	ErrNotRunning     = errors.New("connection supervisor not running")
	ErrAlreadyRunning = errors.New("connection supervisor already running")
)
