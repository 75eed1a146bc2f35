package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	e1 := Event{ParticipantID: "user-1", Speaking: true}
	if !q.Enqueue(ctx, e1) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	out := q.Dequeue(ctx)
	got := <-out
	if got.ParticipantID != "user-1" || !got.Speaking {
		t.Errorf("unexpected event: %+v", got)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(1))
	ctx := context.Background()

	if !q.Enqueue(ctx, Event{ParticipantID: "a"}) {
		t.Fatal("first enqueue must succeed")
	}
	if q.Enqueue(ctx, Event{ParticipantID: "b"}) {
		t.Error("enqueue into a full queue must report a drop")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1 after drop, got %d", l)
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, Event{ParticipantID: "a", Speaking: true})
	out := q.Dequeue(ctx)

	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
	if q.Enqueue(ctx, Event{ParticipantID: "b"}) {
		t.Error("enqueue after close must fail")
	}

	// Buffered event drains, then the channel closes.
	if e := <-out; e.ParticipantID != "a" {
		t.Errorf("expected buffered event, got %+v", e)
	}
	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel did not close")
	}
}

func TestInMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx, cancel := context.WithCancel(context.Background())

	q.Enqueue(context.Background(), Event{ParticipantID: "a"})
	out := q.Dequeue(ctx)
	cancel()

	// The buffered event may or may not be delivered before the
	// cancellation is observed; either way the channel must close.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dequeue channel did not close after cancellation")
		}
	}
}
