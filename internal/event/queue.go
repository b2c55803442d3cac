// Package event provides the serial delivery queue underneath every event
// stream in the wallet core. One queue instance is one ordering domain: the
// listener-delivery queue preserves arrival order toward the application,
// and each wallet manager runs its callback handling on a queue of its own.
package event

import "sync"

// Queue runs queued functions one at a time, in enqueue order, on a single
// dedicated goroutine. Work is never run on the enqueueing goroutine, so
// engine callback frames never nest into listener code.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
	done   chan struct{}
}

// NewQueue creates and starts a queue.
func NewQueue() *Queue {
	q := &Queue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Enqueue appends fn for delivery. FIFO; nothing enqueued before fn can run
// after it. Enqueue on a closed queue silently drops fn.
func (q *Queue) Enqueue(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, fn)
	q.cond.Signal()
}

// Close stops the queue. Pending items are discarded, not run; teardown must
// not deliver into torn-down state. Close returns once the delivery
// goroutine has exited. Closing twice is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.items = nil
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
	}
}
