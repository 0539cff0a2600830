package events

import (
	"sync"

	"github.com/lherron/homeplan/internal/domain"
)

// Change announces that records of one kind were written. An empty Kind
// means the whole store changed (import, reset).
type Change struct {
	Kind domain.Kind
	IDs  []string
	Op   string
}

// Bus is an in-process change notification registry. The zero value is
// ready to use.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is harmless.
func (b *Bus) Subscribe(fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(Change))
	}
	key := b.next
	b.next++
	b.subs[key] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, key)
		b.mu.Unlock()
	}
}

// SubscribeChan delivers changes on a buffered channel. Sends never block: a
// full channel already holds a pending notification, so the new one is
// dropped. Unsubscribing closes the channel.
func (b *Bus) SubscribeChan(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	unsub := b.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- c:
		default:
		}
	})
	return ch, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// Publish calls every subscriber synchronously, outside the registry lock.
func (b *Bus) Publish(c Change) {
	b.mu.Lock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
