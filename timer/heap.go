package timer

import (
	"container/heap"
	"sync"
	"time"
)

type node struct {
	id      uint64
	expires time.Time
	cb      func()
	index   int
}

type nodeHeap []*node

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].expires.Before(h[j].expires) }
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*node)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*h = old[:len(old)-1]
	return n
}

// Timer tracks one deadline per connection id. Expired entries are
// removed by Tick, which runs their callbacks outside the lock.
type Timer struct {
	mu    sync.Mutex
	nodes nodeHeap
	ref   map[uint64]*node
	now   func() time.Time
}

// New creates an empty timer
func New() *Timer {
	return &Timer{ref: make(map[uint64]*node), now: time.Now}
}

// Add registers id to fire cb after timeout. Re-adding an id replaces
// its deadline and callback.
func (t *Timer) Add(id uint64, timeout time.Duration, cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expires := t.now().Add(timeout)
	if n, ok := t.ref[id]; ok {
		n.expires = expires
		n.cb = cb
		heap.Fix(&t.nodes, n.index)
		return
	}
	n := &node{id: id, expires: expires, cb: cb}
	heap.Push(&t.nodes, n)
	t.ref[id] = n
}

// Adjust pushes the deadline of id to now+timeout. Unknown ids are ignored.
func (t *Timer) Adjust(id uint64, timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.ref[id]; ok {
		n.expires = t.now().Add(timeout)
		heap.Fix(&t.nodes, n.index)
	}
}

// Cancel drops id without running its callback
func (t *Timer) Cancel(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.ref[id]; ok {
		heap.Remove(&t.nodes, n.index)
		delete(t.ref, id)
	}
}

// Tick pops every expired entry and runs its callback
func (t *Timer) Tick() int {
	var expired []func()

	t.mu.Lock()
	now := t.now()
	for len(t.nodes) > 0 && !t.nodes[0].expires.After(now) {
		n := heap.Pop(&t.nodes).(*node)
		delete(t.ref, n.id)
		if n.cb != nil {
			expired = append(expired, n.cb)
		}
	}
	t.mu.Unlock()

	for _, cb := range expired {
		cb()
	}
	return len(expired)
}

// NextTick runs Tick and returns the time until the next deadline,
// or -1 when nothing is registered.
func (t *Timer) NextTick() time.Duration {
	t.Tick()

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.nodes) == 0 {
		return -1
	}
	d := t.nodes[0].expires.Sub(t.now())
	if d < 0 {
		d = 0
	}
	return d
}

// Len returns the number of registered deadlines
func (t *Timer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}
