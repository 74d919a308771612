package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// EventHandler is a function that handles session events
type EventHandler func(ctx context.Context, event *SessionEvent) error

// Subscription represents an event subscription
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    EventHandler
	ctx        context.Context
	cancel     context.CancelFunc
}

// EventBus manages pub/sub for session events. Publishing never blocks the
// session loop; events are buffered and fanned out by worker goroutines.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventBuffer   chan *SessionEvent
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	statsMu       sync.RWMutex
	stats         EventBusStats
}

// EventBusStats tracks event bus statistics
type EventBusStats struct {
	EventsPublished   int64 `json:"events_published"`
	EventsDelivered   int64 `json:"events_delivered"`
	EventsFailed      int64 `json:"events_failed"`
	EventsDropped     int64 `json:"events_dropped"`
	ActiveSubscribers int64 `json:"active_subscribers"`
}

// NewEventBus creates a new event bus with the given buffer size and worker
// count.
func NewEventBus(bufferSize, workers int) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		subscriptions: make(map[string]*Subscription),
		eventBuffer:   make(chan *SessionEvent, bufferSize),
		ctx:           ctx,
		cancel:        cancel,
	}

	for i := 0; i < workers; i++ {
		eb.wg.Add(1)
		go eb.worker(i)
	}

	log.Debug().
		Int("buffer_size", bufferSize).
		Int("workers", workers).
		Msg("Event bus started")

	return eb
}

// Publish queues an event for delivery to all matching subscribers. A full
// buffer drops the event rather than stall the publisher.
func (eb *EventBus) Publish(event *SessionEvent) error {
	select {
	case <-eb.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
	}

	select {
	case eb.eventBuffer <- event:
		eb.statsMu.Lock()
		eb.stats.EventsPublished++
		eb.statsMu.Unlock()
		return nil
	default:
		eb.statsMu.Lock()
		eb.stats.EventsDropped++
		eb.statsMu.Unlock()
		log.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("Event dropped due to full buffer")
		return fmt.Errorf("event buffer is full")
	}
}

// Subscribe creates a new subscription for specific event types. An empty
// type list matches every event.
func (eb *EventBus) Subscribe(eventTypes []EventType, handler EventHandler) (*Subscription, error) {
	ctx, cancel := context.WithCancel(eb.ctx)

	sub := &Subscription{
		ID:         fmt.Sprintf("sub_%s", uuid.New().String()[:8]),
		EventTypes: eventTypes,
		Handler:    handler,
		ctx:        ctx,
		cancel:     cancel,
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers++
	eb.statsMu.Unlock()

	log.Debug().
		Str("subscription_id", sub.ID).
		Interface("event_types", eventTypes).
		Msg("New subscription created")

	return sub, nil
}

// Unsubscribe removes a subscription
func (eb *EventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	sub, exists := eb.subscriptions[subscriptionID]
	if exists {
		delete(eb.subscriptions, subscriptionID)
	}
	eb.mu.Unlock()

	if !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	sub.cancel()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers--
	eb.statsMu.Unlock()

	return nil
}

// Close shuts down the event bus and waits for the workers to exit.
func (eb *EventBus) Close() {
	eb.cancel()
	eb.wg.Wait()

	eb.mu.Lock()
	for _, sub := range eb.subscriptions {
		sub.cancel()
	}
	eb.subscriptions = make(map[string]*Subscription)
	eb.mu.Unlock()

	log.Debug().Msg("Event bus shut down")
}

// GetStats returns current event bus statistics
func (eb *EventBus) GetStats() EventBusStats {
	eb.statsMu.RLock()
	defer eb.statsMu.RUnlock()
	return eb.stats
}

// worker drains the buffer and delivers events to matching subscribers.
func (eb *EventBus) worker(workerID int) {
	defer eb.wg.Done()

	for {
		select {
		case event := <-eb.eventBuffer:
			eb.deliverEvent(event)
		case <-eb.ctx.Done():
			log.Debug().Int("worker_id", workerID).Msg("Event bus worker stopping")
			return
		}
	}
}

func (eb *EventBus) deliverEvent(event *SessionEvent) {
	eb.mu.RLock()
	matching := make([]*Subscription, 0, len(eb.subscriptions))
	for _, sub := range eb.subscriptions {
		if sub.matches(event) {
			matching = append(matching, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range matching {
		ctx, cancel := context.WithTimeout(sub.ctx, 5*time.Second)
		err := sub.Handler(ctx, event)
		cancel()

		eb.statsMu.Lock()
		if err != nil {
			eb.stats.EventsFailed++
		} else {
			eb.stats.EventsDelivered++
		}
		eb.statsMu.Unlock()

		if err != nil {
			log.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("event_id", event.ID).
				Msg("Event handler failed")
		}
	}
}

func (s *Subscription) matches(event *SessionEvent) bool {
	if len(s.EventTypes) == 0 {
		return true
	}
	for _, t := range s.EventTypes {
		if event.Type == t {
			return true
		}
	}
	return false
}
