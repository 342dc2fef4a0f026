package store

import (
	"context"
	"sync"
)

// Broadcaster is the cross-context notification fabric: it carries "key
// changed" signals between Store instances of the same namespace. The
// production implementation rides Redis pub/sub with keyspace events as
// a safety net; tests substitute MemoryBus to wire N instances together
// deterministically.
//
// A broadcaster may deliver a publisher's own messages back to it, and
// the two redundant channels may deliver the same change twice.
// Subscribers must be idempotent.
type Broadcaster interface {
	// Publish announces that key changed. Failures are best-effort; the
	// native change signal (or direct local emit) remains as backstop.
	Publish(ctx context.Context, key string)
	// Subscribe registers fn and returns an unsubscribe func.
	Subscribe(fn func(key string)) (unsubscribe func())
	Close() error
}

// MemoryBus is an in-process Broadcaster. Multiple Store instances
// sharing one MemoryBus behave like same-origin browser tabs.
type MemoryBus struct {
	mu        sync.Mutex
	listeners map[int]func(string)
	nextID    int
	closed    bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{listeners: make(map[int]func(string))}
}

func (b *MemoryBus) Publish(_ context.Context, key string) {
	b.mu.Lock()
	fns := make([]func(string), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	closed := b.closed
	b.mu.Unlock()

	if closed {
		return
	}
	for _, fn := range fns {
		fn(key)
	}
}

func (b *MemoryBus) Subscribe(fn func(key string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = make(map[int]func(string))
	return nil
}

// nopBus is used when no broadcast mechanism is available. The Store
// still emits to its own listeners directly, so same-instance behavior
// is unchanged; only cross-instance delivery is lost.
type nopBus struct{}

func (nopBus) Publish(context.Context, string) {}

func (nopBus) Subscribe(func(string)) func() {
	return func() {}
}

func (nopBus) Close() error { return nil }
