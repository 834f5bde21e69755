// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"fingerprint-bridge/internal/model"
)

const (
	eventBusCapacity       = 1000
	defaultSubscriberQueue = 100
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[*eventSubscriber]struct{}
	events      chan model.DeviceEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type eventSubscriber struct {
	ch    chan model.DeviceEvent
	types map[model.EventType]bool
}

func (s *eventSubscriber) wants(eventType model.EventType) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBus{
		subscribers: make(map[*eventSubscriber]struct{}),
		events:      make(chan model.DeviceEvent, eventBusCapacity),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Start distributes events until ctx is cancelled
func (eb *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish publishes an event without blocking the caller
func (eb *EventBus) Publish(event model.DeviceEvent) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe returns a channel receiving events of the given types, or every
// event when no type is given. The returned func unsubscribes and closes the channel.
func (eb *EventBus) Subscribe(buffer int, types ...model.EventType) (<-chan model.DeviceEvent, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberQueue
	}

	sub := &eventSubscriber{
		ch:    make(chan model.DeviceEvent, buffer),
		types: make(map[model.EventType]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	eb.mutex.Lock()
	eb.subscribers[sub] = struct{}{}
	eb.mutex.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eb.mutex.Lock()
			delete(eb.subscribers, sub)
			close(sub.ch)
			eb.mutex.Unlock()
		})
	}
}

// SubscriberCount returns the number of live subscriptions
func (eb *EventBus) SubscriberCount() int {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()
	return len(eb.subscribers)
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.DeviceEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for sub := range eb.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.logger.Debug("Subscriber slow, dropping event",
				zap.String("event_type", string(event.Type)),
			)
		}
	}
}
