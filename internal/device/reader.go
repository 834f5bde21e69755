// internal/device/reader.go
package device

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/protocol"
)

const readChunkSize = 256

var errSessionClosed = errors.New("connection closed")

// session is one live data channel plus the goroutine reading it
type session struct {
	port string
	conn *protocol.SerialConnection

	failed     chan struct{}
	once       sync.Once
	err        error
	readerDone chan struct{}
}

func newSession(port string, conn *protocol.SerialConnection) *session {
	return &session{
		port:       port,
		conn:       conn,
		failed:     make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// fail marks the session broken; only the first cause is kept
func (s *session) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.failed)
	})
}

// Err returns the failure cause once failed is closed
func (s *session) Err() error {
	select {
	case <-s.failed:
		return s.err
	default:
		return nil
	}
}

// readLoop drains the port line by line into the log sink until the session fails
func (m *Manager) readLoop(s *session) {
	defer close(s.readerDone)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Panic in serial read loop",
				zap.String("port", s.port),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
			s.fail(fmt.Errorf("%w: read loop panic: %v", ErrIOFailure, r))
		}
	}()

	var splitter protocol.LineSplitter
	buf := make([]byte, readChunkSize)

	for {
		select {
		case <-s.failed:
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if err != nil {
			if s.Err() == nil {
				m.logger.Error("Serial read failed", zap.String("port", s.port), zap.Error(err))
			}
			s.fail(fmt.Errorf("%w: read %s: %v", ErrIOFailure, s.port, err))
			return
		}
		if n == 0 {
			continue
		}

		for _, line := range splitter.Feed(buf[:n]) {
			if line == "" {
				continue
			}
			s.conn.MarkLine()
			m.handleLine(line)
		}
	}
}

func (m *Manager) handleLine(line string) {
	entry := m.sink.Append(line)
	m.metrics.LineReceived()
	m.logger.Debug("Serial line received",
		zap.Uint64("sequence", entry.Sequence),
		zap.String("line", line),
	)

	m.publish(model.EventSerialLog, entry)

	if id, ok := ParseFingerprintLine(line); ok {
		m.logger.Info("Fingerprint reported", zap.Int("fingerprint_id", id))
		m.publish(model.EventFingerprint, model.FingerprintEventData{
			FingerprintID: id,
			Raw:           line,
		})
	}
}
