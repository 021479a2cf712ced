package streaming

import (
	"context"
	"strconv"
	"sync"

	"xpose-triage/pkg/logger"
)

// Publisher sends events to an external broker
type Publisher interface {
	Publish(ctx context.Context, event *ReportEvent) error
	IsConnected() bool
}

// EventBus fans report events out to NATS and in-process subscribers
type EventBus struct {
	broker Publisher
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	nextID      int
}

type subscriber struct {
	filter *Subscription
	ch     chan *ReportEvent
}

// NewEventBus creates a new event bus. broker may be nil.
func NewEventBus(broker Publisher, log *logger.Logger) *EventBus {
	return &EventBus{
		broker:      broker,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]*subscriber),
	}
}

// PublishReportEvent publishes to NATS when available and to local
// subscribers. Broker failures are logged, never returned.
func (eb *EventBus) PublishReportEvent(ctx context.Context, event *ReportEvent) error {
	if eb.broker != nil && eb.broker.IsConnected() {
		if err := eb.broker.Publish(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to publish to NATS, local broadcast only")
		}
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, sub := range eb.subscribers {
		if !sub.filter.Matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}

	return nil
}

// Subscribe registers a local subscriber and returns its channel and an
// unsubscribe function
func (eb *EventBus) Subscribe(filter *Subscription) (<-chan *ReportEvent, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := strconv.Itoa(eb.nextID)
	sub := &subscriber{filter: filter, ch: make(chan *ReportEvent, 100)}
	eb.subscribers[id] = sub
	eb.mu.Unlock()

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(sub.ch)
			delete(eb.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// SubscriberCount returns the number of active subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close drops all subscribers
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, sub := range eb.subscribers {
		close(sub.ch)
		delete(eb.subscribers, id)
	}
}
