package core

import (
	"context"
	"sync"
)

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Len      int    `json:"len"`
	Cap      int    `json:"cap"`
	Pushed   uint64 `json:"pushed"`
	Popped   uint64 `json:"popped"`
	Filtered uint64 `json:"filtered"`
	Rejected uint64 `json:"rejected"`
}

// Queue is a bounded FIFO between one producer and one consumer, backed by
// a lock-protected ring buffer. Items whose sender equals the owner id are
// discarded on the way out, never returned.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	head     int
	size     int
	ownID    string
	senderOf func(T) string

	writeClosed bool
	readClosed  bool
	writeDone   chan struct{}
	readDone    chan struct{}

	// Wake-up tokens; a stale token only costs a re-check.
	readable chan struct{}
	writable chan struct{}

	// Serializes consumers. There is one logical consumer.
	consumer sync.Mutex

	pushed   uint64
	popped   uint64
	filtered uint64
	rejected uint64
}

// NewQueue creates a queue holding at most capacity items. senderOf extracts
// the sender id used for self filtering; nil disables filtering.
func NewQueue[T any](capacity int, ownID string, senderOf func(T) string) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{
		items:     make([]T, capacity),
		ownID:     ownID,
		senderOf:  senderOf,
		writeDone: make(chan struct{}),
		readDone:  make(chan struct{}),
		readable:  make(chan struct{}, 1),
		writable:  make(chan struct{}, 1),
	}
}

// TryPush enqueues item without waiting. It returns ErrQueueFull when the
// queue is at capacity and ErrQueueClosed when either side has closed.
func (q *Queue[T]) TryPush(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.readClosed || q.writeClosed {
		return ErrQueueClosed
	}
	if q.size == len(q.items) {
		q.rejected++
		return ErrQueueFull
	}
	q.enqueueLocked(item)
	return nil
}

// Push enqueues item, waiting for space. It fails with ErrQueueClosed once
// the consumer side is gone, or with the context error.
func (q *Queue[T]) Push(ctx context.Context, item T) error {
	for {
		q.mu.Lock()
		if q.readClosed || q.writeClosed {
			q.mu.Unlock()
			return ErrQueueClosed
		}
		if q.size < len(q.items) {
			q.enqueueLocked(item)
			if q.size < len(q.items) {
				signal(q.writable)
			}
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.writable:
		case <-q.readDone:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pop returns the next item not sent by the owner, waiting until one
// arrives. It fails with ErrQueueClosed when the producer side is gone and
// nothing eligible remains, or with the context error.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	q.consumer.Lock()
	defer q.consumer.Unlock()

	var zero T
	for {
		item, ok, err := q.next()
		if ok {
			return item, nil
		}
		if err != nil {
			return zero, err
		}

		select {
		case <-q.readable:
		case <-q.writeDone:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryPop is the non-blocking Pop. It reports false when nothing eligible is
// buffered right now.
func (q *Queue[T]) TryPop() (T, bool, error) {
	var zero T
	if !q.consumer.TryLock() {
		return zero, false, nil
	}
	defer q.consumer.Unlock()

	return q.next()
}

// CloseWrite marks the producer side as gone. Buffered items can still be
// popped.
func (q *Queue[T]) CloseWrite() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.writeClosed {
		q.writeClosed = true
		close(q.writeDone)
	}
}

// CloseRead marks the consumer side as gone. Pending and future pushes fail.
func (q *Queue[T]) CloseRead() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.readClosed {
		q.readClosed = true
		close(q.readDone)
	}
}

// Len returns the number of buffered items, own messages included.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Len:      q.size,
		Cap:      len(q.items),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Filtered: q.filtered,
		Rejected: q.rejected,
	}
}

func (q *Queue[T]) next() (T, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.readClosed {
		return zero, false, ErrQueueClosed
	}
	for q.size > 0 {
		item := q.items[q.head]
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		signal(q.writable)

		if q.senderOf != nil && q.senderOf(item) == q.ownID {
			q.filtered++
			continue
		}
		q.popped++
		return item, true, nil
	}
	if q.writeClosed {
		return zero, false, ErrQueueClosed
	}
	return zero, false, nil
}

func (q *Queue[T]) enqueueLocked(item T) {
	tail := (q.head + q.size) % len(q.items)
	q.items[tail] = item
	q.size++
	q.pushed++
	signal(q.readable)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
