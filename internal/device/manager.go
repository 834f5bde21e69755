// internal/device/manager.go
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/metrics"
	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/protocol"
	"fingerprint-bridge/internal/utils"
)

// Commands understood by the sensor firmware
const (
	CommandEnroll     = "enroll"
	CommandVerify     = "VERIFY"
	CommandEndSession = "EndSession"
	CommandGetID      = "GET_ID"
)

const eventSource = "fingerprint-sensor"

// PortScanner finds candidate ports for the supervisor
type PortScanner interface {
	Prime() error
	Poll() ([]string, error)
	Present(port string) (bool, error)
	Forget(port string)
}

// EventPublisher receives device events for fan-out to other layers
type EventPublisher interface {
	Publish(event model.DeviceEvent)
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records supervisor activity in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithEventPublisher forwards state changes, lines and fingerprints to p
func WithEventPublisher(p EventPublisher) Option {
	return func(mgr *Manager) {
		mgr.events = p
	}
}

// Manager owns the single connection to the fingerprint sensor. A background
// supervisor goroutine discovers, verifies and reconnects the device; it is
// the only writer of connection state. Status reads are lock-free.
type Manager struct {
	cfg      *config.DeviceConfig
	serial   *protocol.SerialConfig
	scanner  PortScanner
	opener   protocol.Opener
	verifier *Verifier
	sink     *LogSink
	events   EventPublisher
	metrics  *metrics.Metrics
	logger   *utils.DeviceLogger

	state      atomic.Int32
	port       atomic.String
	lastGood   atomic.String
	since      atomic.Time
	reconnects atomic.Int64
	handshakes atomic.Int64
	lastErr    atomic.Error
	session    atomic.Pointer[session]

	runMutex sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}

	// Owned by the supervisor goroutine.
	candidate        string
	pending          []string
	fastPathAttempts int
	backoff          time.Duration
	dropped          bool
}

// NewManager creates a device manager. It does nothing until Start is called.
func NewManager(cfg *config.DeviceConfig, scanner PortScanner, opener protocol.Opener, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:     cfg,
		serial:  protocol.NewSerialConfig(cfg, ""),
		scanner: scanner,
		opener:  opener,
		logger:  utils.NewDeviceLogger(logger, "fingerprint-sensor"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.verifier = NewVerifier(cfg, opener, m.logger.Logger)
	m.sink = NewLogSink(cfg.LogBufferSize, m.metrics)

	if cfg.PreferredPort != "" {
		m.lastGood.Store(cfg.PreferredPort)
	}
	return m
}

// Start launches the supervisor loop. It runs until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.runMutex.Lock()
	defer m.runMutex.Unlock()

	if m.done != nil {
		select {
		case <-m.done:
		default:
			return ErrAlreadyRunning
		}
	}

	if !m.cfg.InitialScan {
		// Only ports attached after startup count as candidates.
		if err := m.scanner.Prime(); err != nil {
			m.logger.Warn("Failed to take initial port snapshot", zap.Error(err))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(runCtx, m.done)
	return nil
}

// Stop cancels the supervisor and waits for it to close the port, or for ctx to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.runMutex.Lock()
	cancel, done := m.cancel, m.done
	m.runMutex.Unlock()

	if cancel == nil {
		return ErrNotRunning
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connection supervisor: %w", ctx.Err())
	}
}

// Close stops the supervisor and detaches every log subscriber
func (m *Manager) Close(ctx context.Context) error {
	err := m.Stop(ctx)
	m.sink.Close()
	if errors.Is(err, ErrNotRunning) {
		return nil
	}
	return err
}

// IsConnected reports whether a verified connection is live
func (m *Manager) IsConnected() bool {
	return m.State() == model.StateConnected
}

// State returns the current supervisor state
func (m *Manager) State() model.ConnectionState {
	return model.ConnectionState(m.state.Load())
}

// Status returns a snapshot of the connection
func (m *Manager) Status() model.DeviceStatus {
	state := m.State()
	status := model.DeviceStatus{
		State:         state,
		Connected:     state == model.StateConnected,
		Port:          m.port.Load(),
		LastGoodPort:  m.lastGood.Load(),
		Reconnects:    m.reconnects.Load(),
		Handshakes:    m.handshakes.Load(),
		BufferedLines: m.sink.Len(),
		BaudRate:      m.serial.BaudRate,
		ReadTimeout:   m.serial.Timeout,
	}
	if since := m.since.Load(); !since.IsZero() {
		status.ConnectedSince = &since
	}
	// Counters describe the live link only and reset with each connection.
	if s := m.session.Load(); s != nil && s.conn.IsOpen() {
		link := s.conn.Stats()
		status.BytesRead = link.BytesRead
		status.BytesWritten = link.BytesWritten
		status.LinesRead = link.LinesRead
		status.IOErrors = link.ErrorCount
	}
	if err := m.lastErr.Load(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// Logs returns every buffered line, oldest first
func (m *Manager) Logs() []string {
	return m.sink.Lines()
}

// LogEntries returns every buffered entry, oldest first
func (m *Manager) LogEntries() []model.LogEntry {
	return m.sink.Entries()
}

// Subscribe registers for lines received from now on
func (m *Manager) Subscribe(buffer int) (<-chan model.LogEntry, func()) {
	if buffer <= 0 {
		buffer = m.cfg.SubscriberBuffer
	}
	return m.sink.Subscribe(buffer)
}

// Send dispatches a command and reports success as a boolean
func (m *Manager) Send(command string) bool {
	return m.SendCommand(context.Background(), command) == nil
}

// SendCommand writes command followed by a newline to the device. It fails
// fast with ErrCommandRejected when nothing is connected. A write error
// marks the connection broken and is returned wrapped in ErrIOFailure.
func (m *Manager) SendCommand(ctx context.Context, command string) error {
	if command == "" || strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	s := m.session.Load()
	if s == nil || !m.IsConnected() {
		err := fmt.Errorf("%w: %s", ErrCommandRejected, command)
		m.commandDone(command, err)
		return err
	}

	if err := s.conn.Write(ctx, []byte(command+"\n")); err != nil {
		if ctx.Err() != nil {
			m.commandDone(command, err)
			return err
		}
		ioErr := fmt.Errorf("%w: write %q to %s: %v", ErrIOFailure, command, s.port, err)
		s.fail(ioErr)
		m.commandDone(command, ioErr)
		return ioErr
	}

	m.commandDone(command, nil)
	return nil
}

func (m *Manager) commandDone(command string, err error) {
	m.logger.LogCommand(command, err)
	m.metrics.Command(err == nil)

	data := model.CommandEventData{Command: command, Success: err == nil}
	if err != nil {
		data.Error = err.Error()
	}
	m.publish(model.EventCommandDispatched, data)
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.teardown()

	m.logger.Info("Connection supervisor started",
		zap.Bool("initial_scan", m.cfg.InitialScan),
		zap.String("preferred_port", m.cfg.PreferredPort),
	)

	state, delay := model.StateDisconnected, time.Duration(0)
	for {
		if !sleepContext(ctx, delay) {
			return
		}
		m.setState(state)
		state, delay = m.step(ctx, state)
	}
}

func (m *Manager) step(ctx context.Context, state model.ConnectionState) (model.ConnectionState, time.Duration) {
	switch state {
	case model.StateDisconnected:
		return m.stepDisconnected()
	case model.StateScanning:
		return m.stepScanning()
	case model.StateVerifying:
		return m.stepVerifying(ctx)
	case model.StateConnected:
		return m.stepConnected(ctx)
	case model.StateFaulted:
		return model.StateScanning, m.nextBackoff()
	default:
		return model.StateDisconnected, 0
	}
}

func (m *Manager) stepDisconnected() (model.ConnectionState, time.Duration) {
	if m.dropped {
		m.dropped = false
		return model.StateScanning, m.cfg.ReconnectDelay
	}
	return model.StateScanning, 0
}

func (m *Manager) stepScanning() (model.ConnectionState, time.Duration) {
	if port := m.fastPathCandidate(); port != "" {
		m.logger.Info("Retrying last known good port", zap.String("port", port))
		m.candidate = port
		return model.StateVerifying, 0
	}

	if len(m.pending) == 0 {
		added, err := m.scanner.Poll()
		if err != nil {
			m.lastErr.Store(err)
			m.logger.Warn("Port enumeration failed", zap.Error(err))
			return model.StateScanning, m.cfg.PollInterval
		}
		m.pending = added
	}

	for len(m.pending) > 0 {
		port := m.pending[0]
		m.pending = m.pending[1:]

		// Transient ports disappear again before we get to them.
		present, err := m.scanner.Present(port)
		if err != nil || !present {
			m.lastErr.Store(fmt.Errorf("%w: %s vanished before verification", ErrPortUnavailable, port))
			m.logger.Debug("Candidate port vanished", zap.String("port", port), zap.Error(err))
			continue
		}

		m.candidate = port
		return model.StateVerifying, 0
	}

	return model.StateScanning, m.cfg.PollInterval
}

// fastPathCandidate returns the last known good port if it should be retried before a full scan.
func (m *Manager) fastPathCandidate() string {
	port := m.lastGood.Load()
	limit := m.cfg.FastPathAttempts
	if limit <= 0 {
		limit = 1
	}
	if port == "" {
		return ""
	}

	present, err := m.scanner.Present(port)
	if err != nil {
		return ""
	}
	if !present {
		// A fresh budget once the port comes back.
		m.fastPathAttempts = 0
		return ""
	}
	if m.fastPathAttempts >= limit {
		return ""
	}
	m.fastPathAttempts++
	return port
}

func (m *Manager) stepVerifying(ctx context.Context) (model.ConnectionState, time.Duration) {
	port := m.candidate
	m.candidate = ""
	m.port.Store(port)
	m.handshakes.Inc()

	start := time.Now()
	err := m.verifier.Verify(ctx, port)
	if ctx.Err() != nil {
		return model.StateDisconnected, 0
	}

	m.logger.LogHandshake(port, time.Since(start), err)
	m.metrics.Handshake(err == nil)

	if err != nil {
		m.lastErr.Store(err)
		m.port.Store("")
		// Still attached ports come back from the next Poll and are retried at the backoff rate.
		m.scanner.Forget(port)
		return model.StateScanning, m.nextBackoff()
	}

	if err := m.connect(ctx, port); err != nil {
		m.lastErr.Store(err)
		m.port.Store("")
		m.scanner.Forget(port)
		m.logger.LogConnection("open", port, err)
		return model.StateFaulted, 0
	}

	m.lastGood.Store(port)
	m.fastPathAttempts = 0
	m.backoff = 0
	m.lastErr.Store(nil)
	return model.StateConnected, 0
}

func (m *Manager) stepConnected(ctx context.Context) (model.ConnectionState, time.Duration) {
	s := m.session.Load()
	if s == nil {
		return model.StateDisconnected, 0
	}

	interval := m.cfg.PresenceInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return model.StateDisconnected, 0

		case <-s.failed:
			err := s.Err()
			m.lastErr.Store(err)
			m.logger.LogConnection("lost", s.port, err)
			m.closeSession()
			m.reconnects.Inc()
			m.metrics.Reconnect()
			m.dropped = true
			return model.StateDisconnected, 0

		case <-ticker.C:
			present, err := m.scanner.Present(s.port)
			if err == nil && !present {
				s.fail(fmt.Errorf("%w: %s disappeared", ErrIOFailure, s.port))
			}
		}
	}
}

// connect opens the persistent data channel and starts the read loop
func (m *Manager) connect(ctx context.Context, port string) error {
	conn := protocol.NewSerialConnection(m.serial.WithPort(port), m.opener, m.logger.Logger)
	if err := conn.Open(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, port, err)
	}

	s := newSession(port, conn)
	m.session.Store(s)
	m.since.Store(time.Now())
	go m.readLoop(s)

	m.logger.LogConnection("open", port, nil)
	return nil
}

func (m *Manager) closeSession() {
	s := m.session.Swap(nil)
	if s == nil {
		return
	}

	s.fail(errSessionClosed)
	if err := s.conn.Close(); err != nil {
		m.logger.Warn("Failed to close device port", zap.String("port", s.port), zap.Error(err))
	}
	<-s.readerDone

	m.since.Store(time.Time{})
	m.port.Store("")
}

func (m *Manager) teardown() {
	m.closeSession()
	m.pending = nil
	m.setState(model.StateDisconnected)
	m.logger.Info("Connection supervisor stopped")
}

func (m *Manager) setState(next model.ConnectionState) {
	prev := model.ConnectionState(m.state.Swap(int32(next)))
	if prev == next {
		return
	}

	m.metrics.SetState(next)
	m.logger.Info("Connection state changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.String("port", m.port.Load()),
	)
	m.publish(model.EventStateChanged, model.StateChangedEventData{
		From: prev,
		To:   next,
		Port: m.port.Load(),
	})
}

func (m *Manager) nextBackoff() time.Duration {
	if m.backoff == 0 {
		m.backoff = m.cfg.RetryBackoffMin
	} else {
		m.backoff *= 2
	}
	if m.backoff > m.cfg.RetryBackoffMax {
		m.backoff = m.cfg.RetryBackoffMax
	}
	return m.backoff
}

func (m *Manager) publish(eventType model.EventType, data interface{}) {
	if m.events == nil {
		return
	}
	m.events.Publish(model.NewDeviceEvent(eventType, eventSource, data))
}
