// Package coordinator tracks outstanding asynchronous completions across
// the engine boundary. The engine APIs are cookie-based: a request carries
// an opaque cookie and the answer comes back later, on an arbitrary engine
// thread, keyed by that cookie. The coordinator guarantees each completion
// fires at most once and never on the engine's calling thread.
package coordinator

import (
	"sync"

	"github.com/coinharbor/walletcore/internal/event"
)

// Cookie identifies one pending request. Zero is never issued and cookies
// are not reused while their handler is pending.
type Cookie uint64

// Coordinator stores completion handlers keyed by cookie and invokes each
// exactly once on a fixed delivery queue. Native layers are not guaranteed
// single-call-exactly-once on every error path, so a second resolution of
// the same cookie is a no-op.
type Coordinator[T any] struct {
	mu       sync.Mutex
	next     Cookie
	handlers map[Cookie]func(T, error)
	queue    *event.Queue
}

// New creates a coordinator that invokes handlers on queue.
func New[T any](queue *event.Queue) *Coordinator[T] {
	return &Coordinator[T]{
		handlers: make(map[Cookie]func(T, error)),
		queue:    queue,
	}
}

// AddHandler registers completion and returns its cookie.
func (c *Coordinator[T]) AddHandler(completion func(T, error)) Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.handlers[c.next] = completion
	return c.next
}

// Resolve removes the handler for cookie and schedules it with the result.
// Returns false when the cookie is unknown or already resolved; the caller
// has nothing further to do in that case.
func (c *Coordinator[T]) Resolve(cookie Cookie, value T, err error) bool {
	c.mu.Lock()
	completion, ok := c.handlers[cookie]
	if ok {
		delete(c.handlers, cookie)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.queue.Enqueue(func() { completion(value, err) })
	return true
}

// Cancel drops the handler for cookie without invoking it.
func (c *Coordinator[T]) Cancel(cookie Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, cookie)
}

// Pending returns the number of unresolved cookies.
func (c *Coordinator[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}
