// internal/device/fakes_test.go
package device

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"fingerprint-bridge/internal/config"
	"fingerprint-bridge/internal/discovery/serial"
	"fingerprint-bridge/internal/model"
	"fingerprint-bridge/internal/protocol"
)

const testSignature = "ArduinoFingerPrintSensorReady"

var errFakeClosed = errors.New("fake port closed")

// fakeDevice describes what sits behind a port name
type fakeDevice struct {
	banner      string
	replies     map[string]string
	openErr     error
	readErr     error
	failOpensAt int // open number (1-based) from which Open fails; 0 never
}

// fakeOpener hands out fakePorts and tracks how many are open at once
type fakeOpener struct {
	mu      sync.Mutex
	devices map[string]*fakeDevice
	opens   []string
	ports   map[string]*fakePort
	open    int
	maxOpen int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		devices: make(map[string]*fakeDevice),
		ports:   make(map[string]*fakePort),
	}
}

func (o *fakeOpener) add(name string, dev *fakeDevice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.devices[name] = dev
}

// update changes the device behind name while the supervisor runs
func (o *fakeOpener) update(name string, change func(dev *fakeDevice)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	change(o.devices[name])
}

func (o *fakeOpener) Open(name string, _ *protocol.SerialConfig) (protocol.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.opens = append(o.opens, name)
	dev, ok := o.devices[name]
	if !ok {
		return nil, protocol.ErrPortMissing
	}
	if dev.openErr != nil {
		return nil, dev.openErr
	}
	if dev.failOpensAt > 0 && o.countOpens(name) >= dev.failOpensAt {
		return nil, protocol.ErrPortBusy
	}

	port := &fakePort{
		opener:   o,
		device:   dev,
		incoming: make(chan []byte, 64),
		closedCh: make(chan struct{}),
		timeout:  protocol.DefaultReadTimeout,
		readErr:  dev.readErr,
	}
	if dev.banner != "" {
		port.incoming <- []byte(dev.banner)
	}

	o.ports[name] = port
	o.open++
	if o.open > o.maxOpen {
		o.maxOpen = o.open
	}
	return port, nil
}

func (o *fakeOpener) countOpens(name string) int {
	n := 0
	for _, opened := range o.opens {
		if opened == name {
			n++
		}
	}
	return n
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

func (o *fakeOpener) peakOpen() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxOpen
}

func (o *fakeOpener) opened(name string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.countOpens(name)
}

func (o *fakeOpener) totalOpens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opens)
}

func (o *fakeOpener) port(name string) *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ports[name]
}

func (o *fakeOpener) released() {
	o.mu.Lock()
	o.open--
	o.mu.Unlock()
}

// fakePort emulates a serial handle: reads block up to the read timeout and
// then return (0, nil)
type fakePort struct {
	opener   *fakeOpener
	device   *fakeDevice
	incoming chan []byte
	closedCh chan struct{}

	mu       sync.Mutex
	closed   bool
	timeout  time.Duration
	readErr  error
	writeErr error
	written  bytes.Buffer
}

func (p *fakePort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errFakeClosed
	}
	if p.readErr != nil {
		err := p.readErr
		p.mu.Unlock()
		return 0, err
	}
	timeout := p.timeout
	p.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data := <-p.incoming:
		return copy(buf, data), nil
	case <-timer.C:
		return 0, nil
	case <-p.closedCh:
		return 0, errFakeClosed
	}
}

func (p *fakePort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, errFakeClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(data)

	for _, line := range strings.Split(string(data), "\n") {
		if reply, ok := p.device.replies[line]; ok {
			p.incoming <- []byte(reply)
		}
	}
	return len(data), nil
}

func (p *fakePort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = timeout
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closedCh)
	p.mu.Unlock()

	p.opener.released()
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePort) feed(s string) {
	p.incoming <- []byte(s)
}

func (p *fakePort) failReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *fakePort) failWrites(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

func (p *fakePort) writtenString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// portList is a mutable enumeration result
type portList struct {
	mu    sync.Mutex
	ports []string
	err   error
}

func (l *portList) set(ports ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ports = ports
}

func (l *portList) GetPortsList() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return append([]string(nil), l.ports...), nil
}

// eventRecorder collects published events
type eventRecorder struct {
	mu     sync.Mutex
	events []model.DeviceEvent
}

func (r *eventRecorder) Publish(event model.DeviceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) ofType(t model.EventType) []model.DeviceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DeviceEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) sawState(state model.ConnectionState) bool {
	for _, e := range r.ofType(model.EventStateChanged) {
		if data, ok := e.Data.(model.StateChangedEventData); ok && data.To == state {
			return true
		}
	}
	return false
}

func testDeviceConfig() *config.DeviceConfig {
	cfg := config.Default().Device
	cfg.SettleDelay = 0
	cfg.HandshakeWindow = 300 * time.Millisecond
	cfg.HandshakeReadTimeout = 10 * time.Millisecond
	cfg.ReadTimeout = 10 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.PresenceInterval = 20 * time.Millisecond
	cfg.RetryBackoffMin = 10 * time.Millisecond
	cfg.RetryBackoffMax = 40 * time.Millisecond
	cfg.QueryTimeout = 500 * time.Millisecond
	return &cfg
}

type managerFixture struct {
	manager *Manager
	opener  *fakeOpener
	ports   *portList
	events  *eventRecorder
}

func newManagerFixture(t *testing.T, cfg *config.DeviceConfig) *managerFixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	f := &managerFixture{
		opener: newFakeOpener(),
		ports:  &portList{},
		events: &eventRecorder{},
	}
	scanner := serial.NewScanner(f.ports, cfg.PortPatterns, logger)
	f.manager = NewManager(cfg, scanner, f.opener, logger, WithEventPublisher(f.events))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = f.manager.Close(ctx)
	})
	return f
}

func sensor() *fakeDevice {
	return &fakeDevice{
		banner:  "booting\r\n" + testSignature + "\r\n",
		replies: map[string]string{CommandGetID: "ID #42\r\n"},
	}
}
