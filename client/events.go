package client

import "sync"

// LogoutEvent announces a server-initiated session invalidation.
type LogoutEvent struct {
	ErrorCode string
	Message   string
	Reason    string
}

// LogoutBus is the process-wide forced-logout channel. Subscribers are
// invoked synchronously, in subscription order, on the publisher's
// goroutine; handlers must not block.
type LogoutBus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(LogoutEvent)
	order    []int
}

func NewLogoutBus() *LogoutBus {
	return &LogoutBus{handlers: map[int]func(LogoutEvent){}}
}

// Subscribe registers a handler and returns its cancel func. Cancel is
// idempotent.
func (b *LogoutBus) Subscribe(fn func(LogoutEvent)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *LogoutBus) Publish(ev LogoutEvent) {
	b.mu.Lock()
	fns := make([]func(LogoutEvent), 0, len(b.handlers))
	for _, id := range b.order {
		if fn, ok := b.handlers[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
