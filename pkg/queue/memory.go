package queue

import "sync"

// InMemoryQueue implements a bounded in-memory queue. Producers never block:
// Enqueue fails with ErrQueueFull instead.
type InMemoryQueue[T any] struct {
	ch   chan T
	lock sync.Mutex
}

// NewInMemoryQueue creates a new queue holding at most size items.
func NewInMemoryQueue[T any](size int) *InMemoryQueue[T] {
	return &InMemoryQueue[T]{
		ch: make(chan T, size),
	}
}

// Enqueue adds an item to the end of the queue.
func (q *InMemoryQueue[T]) Enqueue(item T) error {
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrQueueFull
	}
}

// Size returns the current size of the queue.
func (q *InMemoryQueue[T]) Size() int {
	return len(q.ch)
}

// ReadAllMessages reads all pending messages in the queue
func (q *InMemoryQueue[T]) ReadAllMessages() []T {
	q.lock.Lock()
	defer q.lock.Unlock()

	var items []T
	for {
		select {
		case item := <-q.ch:
			items = append(items, item)
		default:
			return items
		}
	}
}

// ClearQueue clears all messages from the queue.
func (q *InMemoryQueue[T]) ClearQueue() {
	q.lock.Lock()
	defer q.lock.Unlock()

	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
