// Package events provides a small in-process pub/sub bus. Lifecycle
// transitions are published here so the API layer and notifiers can react
// without the engine knowing about them.
package events

import (
	"sync"
	"time"
)

// EventType identifies engine lifecycle events.
type EventType string

const (
	EventScanCompleted EventType = "SCAN_COMPLETED"
	EventSignalFound   EventType = "SIGNAL_FOUND"
	EventOrderPlaced   EventType = "ORDER_PLACED"
	EventOrderFilled   EventType = "ORDER_FILLED"
	EventOrderCanceled EventType = "ORDER_CANCELED"
	EventOrderExpired  EventType = "ORDER_EXPIRED"
	EventTradeOpened   EventType = "TRADE_OPENED"
	EventTradeClosed   EventType = "TRADE_CLOSED"
	EventEngineStarted EventType = "ENGINE_STARTED"
	EventEngineStopped EventType = "ENGINE_STOPPED"
)

// Event is a published lifecycle notification.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Subscriber handles published events. Subscribers must not block.
type Subscriber func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], sub)
}

// SubscribeAll registers a subscriber for every event.
func (b *Bus) SubscribeAll(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, sub)
}

// Publish delivers an event to matching subscribers synchronously.
func (b *Bus) Publish(eventType EventType, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subscribers[eventType]...)
	subs = append(subs, b.allSubs...)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}
}
