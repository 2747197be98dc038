package logger

import "sync"

// Queue is a bounded FIFO of formatted log lines with a single consumer
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []string
	capacity int
	closed   bool
}

// NewQueue creates a queue holding at most capacity lines
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue{capacity: capacity, items: make([]string, 0, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// TryPush adds a line without blocking. It reports false when the queue
// is full or closed, in which case the caller writes the line itself.
func (q *Queue) TryPush(line string) bool {
	q.mu.Lock()
	if q.closed || len(q.items) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, line)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// Push adds a line, waiting for room. It reports false if the queue closes.
func (q *Queue) Push(line string) bool {
	q.mu.Lock()
	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, line)
	q.mu.Unlock()
	q.notEmpty.Signal()
	return true
}

// Pop waits for a line. After Close it keeps returning queued lines and
// reports false once the queue is empty.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		q.mu.Unlock()
		return "", false
	}
	line := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	q.mu.Unlock()
	q.notFull.Signal()
	return line, true
}

// Flush wakes the consumer
func (q *Queue) Flush() {
	q.notEmpty.Signal()
}

// Close rejects further pushes and wakes everyone
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Len returns the number of queued lines
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the configured capacity
func (q *Queue) Cap() int {
	return q.capacity
}

// Full reports whether a TryPush would fail for lack of room
func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) >= q.capacity
}
