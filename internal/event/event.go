// Package event is the in-process bus connecting the ballot path to the
// tally engine and the tally engine to live dashboards.
package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ezforhamza/awaz-e-talba-sub000/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 32
	AsyncQueueSize      = 1024
	AsyncWorkerPoolSize = 4
)

type EventType string

type SubscriberID int

type HandlerFunc func(Event)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

func NewEvent(t EventType, data any) Event {
	return Event{Type: t, Timestamp: time.Now(), Data: data}
}

// Versioned is implemented by payloads that supersede each other, such as
// successive snapshots. A latest subscriber never replaces a pending event
// with an older version.
type Versioned interface {
	EventVersion() uint64
}

// Subscriber receives events from the bus. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type asyncEvent struct {
	eventType EventType
	event     Event
}

// Bus fans events out to subscribers by type. Publish delivers inline;
// PublishAsync hands the event to a small worker pool.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[SubscriberID]Subscriber
	lastID      SubscriberID

	metrics *busMetrics
	logger  logging.Logger

	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopOnce   sync.Once
	stopCh     chan struct{}
}

// NewBus starts the async worker pool. reg may be nil to disable metrics.
func NewBus(reg prometheus.Registerer, logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberID]Subscriber),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if reg != nil {
		b.metrics = newBusMetrics(reg)
	}
	for range AsyncWorkerPoolSize {
		b.asyncWg.Add(1)
		go b.asyncWorker()
	}
	return b
}

func (b *Bus) asyncWorker() {
	defer b.asyncWg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		case ae := <-b.asyncQueue:
			b.Publish(ae.eventType, ae.event)
		}
	}
}

// Register adds sub under eventType and returns its id.
func (b *Bus) Register(eventType EventType, sub Subscriber) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	id := b.lastID
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]Subscriber)
	}
	b.subscribers[eventType][id] = sub
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType), kindOf(sub)).Inc()
	}
	return id
}

// Subscribe returns a buffered channel receiving every event of eventType.
// A full channel blocks the publisher.
func (b *Bus) Subscribe(eventType EventType) (SubscriberID, <-chan Event) {
	sub := newChannelSubscriber(EventQueueSize)
	return b.Register(eventType, sub), sub.ch
}

// SubscribeLatest returns a channel that always holds at most the newest
// undelivered event accepted by filter (nil accepts all). Older pending
// events are replaced, so a slow reader never blocks the publisher and never
// misses the final state. For Versioned payloads "newest" means the highest
// version, whatever order they arrive in.
func (b *Bus) SubscribeLatest(eventType EventType, filter func(Event) bool) (SubscriberID, <-chan Event) {
	sub := newLatestSubscriber(filter)
	return b.Register(eventType, sub), sub.ch
}

// SubscribeFunc runs fn for every event of eventType on a dedicated goroutine.
func (b *Bus) SubscribeFunc(eventType EventType, fn HandlerFunc) SubscriberID {
	id, ch := b.Subscribe(eventType)
	go func() {
		for evt := range ch {
			fn(evt)
		}
	}()
	return id
}

func (b *Bus) Unsubscribe(eventType EventType, id SubscriberID) {
	b.mu.Lock()
	sub, ok := b.subscribers[eventType][id]
	if ok {
		delete(b.subscribers[eventType], id)
		if len(b.subscribers[eventType]) == 0 {
			delete(b.subscribers, eventType)
		}
		if b.metrics != nil {
			b.metrics.subscribers.WithLabelValues(string(eventType), kindOf(sub)).Dec()
		}
	}
	b.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Publish delivers evt to every current subscriber of eventType before
// returning. A subscriber that errors or panics is dropped.
func (b *Bus) Publish(eventType EventType, evt Event) {
	b.mu.RLock()
	subs := make(map[SubscriberID]Subscriber, len(b.subscribers[eventType]))
	for id, sub := range b.subscribers[eventType] {
		subs[id] = sub
	}
	b.mu.RUnlock()

	for id, sub := range subs {
		if err := deliver(sub, evt); err != nil {
			b.Unsubscribe(eventType, id)
			if b.metrics != nil {
				b.metrics.deliveryErrors.WithLabelValues(string(eventType), kindOf(sub)).Inc()
			}
			b.logger.Warn(context.Background(), "event delivery failed, subscriber dropped",
				"type", eventType, "subscriber", id, "error", err)
		}
	}
	if b.metrics != nil {
		b.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues evt and returns false when the bus is stopped or the
// queue is full.
func (b *Bus) PublishAsync(eventType EventType, evt Event) bool {
	select {
	case <-b.stopCh:
		return false
	default:
	}

	select {
	case b.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		if b.metrics != nil {
			b.metrics.deliveryErrors.WithLabelValues(string(eventType), "async-dropped").Inc()
		}
		b.logger.Warn(context.Background(), "async event queue full, dropping event", "type", eventType)
		return false
	}
}

// Stop halts the worker pool and closes every subscriber. The bus cannot be
// restarted.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
		b.asyncWg.Wait()

		b.mu.Lock()
		subs := b.subscribers
		b.subscribers = make(map[EventType]map[SubscriberID]Subscriber)
		b.mu.Unlock()

		for _, byID := range subs {
			for _, sub := range byID {
				sub.Close()
			}
		}
		if b.metrics != nil {
			b.metrics.subscribers.Reset()
		}
	})
}
