// Package bus provides the in-process publish/subscribe fan-out for
// newly created events, alerts, and engine outcomes. Delivery is
// at-least-once to each live subscriber; same-topic messages reach each
// subscriber in publish order, with no ordering guarantee across topics.
// Consumers must treat delivery as idempotent and dedup by entity id.
package bus

import (
	"log/slog"
	"sync"
)

// Topics published by the engine.
const (
	TopicEvents   = "events.created"
	TopicAlerts   = "alerts.created"
	TopicOutcomes = "engine.outcomes"
)

// subscriberBuffer is the per-subscriber queue depth. Publishing blocks
// when a subscriber falls this far behind, providing backpressure
// instead of dropping messages.
const subscriberBuffer = 128

// Handler consumes one published message.
type Handler func(payload any)

// Bus is a topic-based in-process publish/subscribe hub. Each subscriber
// gets its own ordered queue drained by a dedicated goroutine, so a slow
// handler never reorders deliveries for other subscribers.
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
	closed bool
	wg     sync.WaitGroup
}

type subscriber struct {
	ch   chan any
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{topics: make(map[string][]*subscriber)}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// function. The handler runs on a dedicated goroutine, one message at a
// time, in publish order.
func (b *Bus) Subscribe(topic string, handler Handler) func() {
	sub := &subscriber{
		ch:   make(chan any, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.stop()
		return func() {}
	}
	b.topics[topic] = append(b.topics[topic], sub)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-sub.done:
				return
			case payload := <-sub.ch:
				handler(payload)
			}
		}
	}()

	return func() {
		b.mu.Lock()
		subs := b.topics[topic]
		for i, s := range subs {
			if s == sub {
				b.topics[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		sub.stop()
	}
}

// Publish delivers the payload to every live subscriber of the topic.
// Blocks per subscriber when its queue is full; returns once the message
// is queued everywhere.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := make([]*subscriber, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		slog.Warn("Publish on closed bus dropped", "topic", topic)
		return
	}

	for _, sub := range subs {
		select {
		case sub.ch <- payload:
		case <-sub.done:
			// Subscriber went away between snapshot and send.
		}
	}
}

// Close stops all subscribers. Queued but undelivered messages are
// dropped; publishers observe at-least-once semantics only while the
// bus is open.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*subscriber, 0)
	for _, list := range b.topics {
		subs = append(subs, list...)
	}
	b.topics = make(map[string][]*subscriber)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
	b.wg.Wait()
}
