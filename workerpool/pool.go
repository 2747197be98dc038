package workerpool

import (
	"errors"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Submit after Close
var ErrClosed = errors.New("workerpool: pool closed")

// ErrNilTask is returned when Submit is given a nil function
var ErrNilTask = errors.New("workerpool: nil task")

// Task is a unit of work. A connection task captures its own net.Conn.
type Task func()

// PanicHandler receives the value and stack of a recovered task panic
type PanicHandler func(v any, stack []byte)

// Pool runs tasks on a fixed set of workers pulling from one FIFO queue.
// The queue is unbounded: Submit never blocks and never rejects work
// while the pool is open.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []Task
	closed  bool
	wg      sync.WaitGroup
	size    int
	onPanic PanicHandler
}

// Option configures a Pool
type Option func(*Pool)

// WithPanicHandler sets the callback for panics escaping a task
func WithPanicHandler(h PanicHandler) Option {
	return func(p *Pool) {
		p.onPanic = h
	}
}

// New starts n workers. n must be at least 1.
func New(n int, opts ...Option) *Pool {
	if n < 1 {
		panic("workerpool: worker count must be >= 1")
	}
	p := &Pool{size: n}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// Submit queues a task and wakes one idle worker
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.tasks = append(p.tasks, task)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

// Pending returns the number of queued tasks not yet picked up
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Close stops accepting tasks. Workers finish everything already queued
// and then exit; running tasks are never interrupted.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Wait blocks until every worker has exited
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown closes the pool and waits for the queue to drain
func (p *Pool) Shutdown() {
	p.Close()
	p.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	p.mu.Lock()
	for {
		if len(p.tasks) > 0 {
			task := p.tasks[0]
			p.tasks[0] = nil
			p.tasks = p.tasks[1:]
			p.mu.Unlock()
			p.run(task)
			p.mu.Lock()
		} else if p.closed {
			break
		} else {
			p.cond.Wait()
		}
	}
	p.mu.Unlock()
}

func (p *Pool) run(task Task) {
	defer func() {
		if v := recover(); v != nil && p.onPanic != nil {
			p.onPanic(v, debug.Stack())
		}
	}()
	task()
}
