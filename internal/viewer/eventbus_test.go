package viewer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusBasicPubSub(t *testing.T) {
	bus := NewEventBus(100, 2)
	defer bus.Close()

	var received int32
	var lastType atomic.Value

	handler := func(ctx context.Context, event *SessionEvent) error {
		atomic.AddInt32(&received, 1)
		lastType.Store(event.Type)
		return nil
	}

	sub, err := bus.Subscribe([]EventType{EventSessionOpened}, handler)
	require.NoError(t, err)
	require.NotNil(t, sub)

	event := NewSessionEvent(EventSessionOpened, "sess-001").With("path", "report.pdf")
	require.NoError(t, bus.Publish(event))

	// Wait for the worker to fan out
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, EventSessionOpened, lastType.Load())

	stats := bus.GetStats()
	assert.Equal(t, int64(1), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.ActiveSubscribers)
}

func TestEventBusTypeFiltering(t *testing.T) {
	bus := NewEventBus(100, 2)
	defer bus.Close()

	var progressEvents int32
	var allEvents int32

	_, err := bus.Subscribe([]EventType{EventOCRProgress}, func(ctx context.Context, event *SessionEvent) error {
		atomic.AddInt32(&progressEvents, 1)
		return nil
	})
	require.NoError(t, err)

	// Empty type list matches everything.
	_, err = bus.Subscribe(nil, func(ctx context.Context, event *SessionEvent) error {
		atomic.AddInt32(&allEvents, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewSessionEvent(EventOCRProgress, "s1")))
	require.NoError(t, bus.Publish(NewSessionEvent(EventOCRResult, "s1")))
	require.NoError(t, bus.Publish(NewSessionEvent(EventSessionClosed, "s1")))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&allEvents) == 3
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&progressEvents))
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(100, 1)
	defer bus.Close()

	var received int32
	sub, err := bus.Subscribe([]EventType{EventOCRResult}, func(ctx context.Context, event *SessionEvent) error {
		atomic.AddInt32(&received, 1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewSessionEvent(EventOCRResult, "s1")))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&received) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Error(t, bus.Unsubscribe(sub.ID))

	require.NoError(t, bus.Publish(NewSessionEvent(EventOCRResult, "s1")))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&received))
}

func TestEventBusPublishAfterClose(t *testing.T) {
	bus := NewEventBus(1, 1)
	bus.Close()

	err := bus.Publish(NewSessionEvent(EventSessionOpened, "s1"))
	assert.Error(t, err)
}
