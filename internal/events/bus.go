// Package events carries station notifications (status changes, now playing)
// to in-process subscribers and, optionally, to Redis pub/sub.
package events

import "sync"

// EventType enumerates event categories.
type EventType string

// Event types
const (
	EventStationStatus  EventType = "station.status"
	EventNowPlaying     EventType = "station.now_playing"
	EventStationStarted EventType = "station.started"
	EventStationStopped EventType = "station.stopped"
)

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Publisher is what producers depend on. Publish must never block.
type Publisher interface {
	Publish(eventType EventType, payload Payload)
}

// Bus is an in-process pubsub. Slow subscribers miss events rather than
// stall publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers without blocking.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes and closes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			close(sub)
			return
		}
	}
}

// Discard drops every event.
type Discard struct{}

// Publish implements Publisher
func (Discard) Publish(EventType, Payload) {}
