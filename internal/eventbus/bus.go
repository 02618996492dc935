// Package eventbus routes switch and manual-control events to actuator
// engines. Order-insensitive handlers run on a bounded worker pool;
// handlers registered with SubscribeOrdered share a single worker that
// preserves publish order.
package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/notifyd/internal/color"
)

// EventType represents the type of event
type EventType string

const (
	EventTypeSwitch EventType = "switch"
	EventTypeManual EventType = "manual"
	EventTypeSpecs  EventType = "specs"
)

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// SwitchEvent is a notification toggle: a switch turned on or off.
type SwitchEvent struct {
	NotifyID string
	On       bool
}

// ManualEvent is direct actuator control, outranking all notifications.
type ManualEvent struct {
	ActuatorID string
	On         bool
	Color      *color.Color
	Brightness *uint8
}

// Event represents an event in the system. The payload field matching
// Type is set; Data carries spec-reload payloads.
type Event struct {
	Type   EventType
	Switch *SwitchEvent
	Manual *ManualEvent
	Data   any
}

// Handler is a function that handles events
type Handler func(Event)

// work represents a unit of work for the worker pool
type work struct {
	event   Event
	handler Handler
}

// subscription is a registered handler; ordered handlers are served by
// the dedicated in-order worker instead of the pool.
type subscription struct {
	handler Handler
	ordered bool
}

// Bus provides event routing with a bounded worker pool
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]subscription

	// Worker pool, plus one queue whose single worker keeps publish order
	workQueue    chan work
	orderedQueue chan work
	wg           sync.WaitGroup

	// Shutdown signaling - closing this channel signals publishers to stop
	// Using a channel in select is race-free (unlike mutex + bool)
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	b := &Bus{
		handlers:     make(map[EventType][]subscription),
		workQueue:    make(chan work, queueSize),
		orderedQueue: make(chan work, queueSize),
		closing:      make(chan struct{}),
	}

	// Start worker pool
	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i, b.workQueue)
	}

	// Single worker for ordered handlers
	b.wg.Add(1)
	go b.worker(workerCount, b.orderedQueue)

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

// worker processes events from a work queue
func (b *Bus) worker(id int, queue chan work) {
	defer b.wg.Done()

	for w := range queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.subscribe(eventType, handler, false)
}

// SubscribeOrdered registers a handler whose invocations keep the
// publish order of their events. All ordered handlers share one worker,
// so they must not block.
func (b *Bus) SubscribeOrdered(eventType EventType, handler Handler) {
	b.subscribe(eventType, handler, true)
}

func (b *Bus) subscribe(eventType EventType, handler Handler, ordered bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], subscription{handler: handler, ordered: ordered})
}

// Publish sends an event to all subscribed handlers.
// Non-blocking: if the work queue is full or bus is closing, events are dropped.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, sub := range handlers {
		queue := b.workQueue
		if sub.ordered {
			queue = b.orderedQueue
		}
		select {
		case <-b.closing:
			log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
			return
		case queue <- work{event: event, handler: sub.handler}:
			// Successfully queued
		default:
			// Queue full - drop event with warning
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close shuts down the worker pool gracefully.
// First signals publishers to stop, then closes the work queue and waits for workers.
func (b *Bus) Close(ctx context.Context) {
	// Signal publishers to stop sending
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	// Now it's safe to close the work queues - no new sends after closing is signaled
	close(b.workQueue)
	close(b.orderedQueue)

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}

// Clear removes all handlers
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[EventType][]subscription)
}
