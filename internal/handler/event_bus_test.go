// internal/handler/event_bus_test.go
package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fingerprint-bridge/internal/model"
)

func startBus(t *testing.T) *EventBus {
	t.Helper()
	bus := NewEventBus(zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return bus
}

func receive(t *testing.T, ch <-chan model.DeviceEvent) model.DeviceEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return model.DeviceEvent{}
	}
}

func TestEventBus_FiltersByType(t *testing.T) {
	bus := startBus(t)

	logs, cancelLogs := bus.Subscribe(10, model.EventSerialLog)
	defer cancelLogs()
	all, cancelAll := bus.Subscribe(10)
	defer cancelAll()

	bus.Publish(model.NewDeviceEvent(model.EventStateChanged, "test", nil))
	bus.Publish(model.NewDeviceEvent(model.EventSerialLog, "test", model.LogEntry{Line: "A"}))

	assert.Equal(t, model.EventStateChanged, receive(t, all).Type)
	assert.Equal(t, model.EventSerialLog, receive(t, all).Type)

	event := receive(t, logs)
	assert.Equal(t, model.EventSerialLog, event.Type)
	assert.Equal(t, "A", event.Data.(model.LogEntry).Line)

	select {
	case extra := <-logs:
		t.Fatalf("unexpected event %s", extra.Type)
	default:
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := startBus(t)

	ch, cancel := bus.Subscribe(1)
	require.Equal(t, 1, bus.SubscriberCount())

	cancel()
	cancel()
	assert.Zero(t, bus.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Publishing with no subscribers is a no-op.
	bus.Publish(model.NewDeviceEvent(model.EventSerialLog, "test", nil))
}

func TestEventBus_PublishNeverBlocks(t *testing.T) {
	bus := NewEventBus(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < eventBusCapacity+10; i++ {
			bus.Publish(model.NewDeviceEvent(model.EventSerialLog, "test", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running bus")
	}
}
