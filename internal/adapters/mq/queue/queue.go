// Package queue provides the bounded buffer between the voice client's
// speaking notifications and the broadcast layer.
//
// Speaking activity arrives in bursts and must never block the producer;
// when the buffer is full the newest notification is dropped.
package queue

import (
	"context"
	"sync"

	"github.com/vaccie/valoverlay-discord/internal/domain/model"
	"github.com/vaccie/valoverlay-discord/pkg/metrics"
)

const defaultCapacity = 256

// Event is the payload type flowing through the queue.
type Event = model.SpeakingEvent

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event to the queue.
	// Returns false if the queue is full and the event was dropped.
	Enqueue(ctx context.Context, e Event) bool

	// Dequeue returns a channel that receives events as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Event

	// Len returns the current number of queued events.
	Len() int

	// Close shuts down the queue. After closing, no new events can be
	// enqueued and the dequeue channel is closed.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)
	return q
}

// Enqueue adds an event to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordSpeakingDropped()
		return false
	}

	select {
	case q.events <- e:
		metrics.RecordSpeakingEvent()
		return true
	case <-ctx.Done():
		metrics.RecordSpeakingDropped()
		return false
	default:
		metrics.RecordSpeakingDropped()
		return false
	}
}

// Dequeue returns a channel that receives events until the queue is closed
// or the context is cancelled.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for e := range q.events {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued events.
func (q *InMemoryQueue) Len() int {
	return len(q.events)
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}
