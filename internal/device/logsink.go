// internal/device/logsink.go
package device

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"fingerprint-bridge/internal/metrics"
	"fingerprint-bridge/internal/model"
)

// LogSink keeps a bounded, append-only history of received lines and fans
// each new line out to subscribers.
//
// Readers load an immutable snapshot slice without locking. Appends only ever
// write past the end of the newest snapshot, so older snapshots sharing the
// backing array are never mutated.
type LogSink struct {
	capacity int
	metrics  *metrics.Metrics

	mutex    sync.Mutex
	sequence uint64
	snapshot atomic.Pointer[[]model.LogEntry]

	subsMutex   sync.Mutex
	subscribers map[uint64]*subscriber
	nextSubID   uint64
	closed      bool
}

type subscriber struct {
	ch   chan model.LogEntry
	once sync.Once
}

// NewLogSink creates a sink retaining at most capacity entries
func NewLogSink(capacity int, m *metrics.Metrics) *LogSink {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LogSink{
		capacity:    capacity,
		metrics:     m,
		subscribers: make(map[uint64]*subscriber),
	}
}

// Append records a line and publishes it. Entries keep receipt order.
func (s *LogSink) Append(line string) model.LogEntry {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sequence++
	entry := model.LogEntry{
		Sequence:   s.sequence,
		Line:       line,
		ReceivedAt: time.Now(),
	}

	var entries []model.LogEntry
	if current := s.snapshot.Load(); current != nil {
		entries = *current
	}
	if len(entries) >= s.capacity {
		entries = entries[len(entries)-s.capacity+1:]
	}
	if len(entries) == cap(entries) {
		grown := make([]model.LogEntry, len(entries), 2*s.capacity)
		copy(grown, entries)
		entries = grown
	}
	entries = append(entries, entry)
	s.snapshot.Store(&entries)

	s.publish(entry)
	return entry
}

// Entries returns a copy of the buffered entries, oldest first
func (s *LogSink) Entries() []model.LogEntry {
	current := s.snapshot.Load()
	if current == nil {
		return []model.LogEntry{}
	}
	out := make([]model.LogEntry, len(*current))
	copy(out, *current)
	return out
}

// Lines returns the buffered lines, oldest first
func (s *LogSink) Lines() []string {
	current := s.snapshot.Load()
	if current == nil {
		return []string{}
	}
	lines := make([]string, len(*current))
	for i, entry := range *current {
		lines[i] = entry.Line
	}
	return lines
}

// Len returns the number of buffered entries
func (s *LogSink) Len() int {
	current := s.snapshot.Load()
	if current == nil {
		return 0
	}
	return len(*current)
}

// Subscribe registers a subscriber. Lines are dropped for a subscriber whose
// buffer is full. The returned cancel func is idempotent.
func (s *LogSink) Subscribe(buffer int) (<-chan model.LogEntry, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan model.LogEntry, buffer)}

	s.subsMutex.Lock()
	if s.closed {
		s.subsMutex.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	s.nextSubID++
	id := s.nextSubID
	s.subscribers[id] = sub
	s.subsMutex.Unlock()
	s.metrics.SubscriberDelta(1)

	return sub.ch, func() {
		s.subsMutex.Lock()
		_, ok := s.subscribers[id]
		delete(s.subscribers, id)
		s.subsMutex.Unlock()

		if ok {
			s.metrics.SubscriberDelta(-1)
			sub.close()
		}
	}
}

// Close detaches every subscriber and closes their channels
func (s *LogSink) Close() {
	s.subsMutex.Lock()
	subs := s.subscribers
	s.subscribers = make(map[uint64]*subscriber)
	s.closed = true
	s.subsMutex.Unlock()

	for _, sub := range subs {
		s.metrics.SubscriberDelta(-1)
		sub.close()
	}
}

func (s *LogSink) publish(entry model.LogEntry) {
	s.subsMutex.Lock()
	defer s.subsMutex.Unlock()

	for _, sub := range s.subscribers {
		select {
		case sub.ch <- entry:
		default:
		}
	}
}

func (sub *subscriber) close() {
	sub.once.Do(func() { close(sub.ch) })
}
