package stream

import (
	"context"
	"sync"
)

// listenerBuffer is ~3 seconds of 20ms frames per listener.
const listenerBuffer = 150

// Broadcaster fans the engine's rendered frames out to N listeners. The
// render loop is the single producer; listeners that fall behind lose
// frames rather than slowing it down.
type Broadcaster struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*Listener
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	id   uint64
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
}

// NewBroadcaster creates a broadcaster with no listeners.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Listener)}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	l := &Listener{
		id:   b.next,
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.subs[l.id] = l
	return l
}

// Unsubscribe removes a listener and signals it to stop. Safe to call more
// than once.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, registered := b.subs[l.id]
	delete(b.subs, l.id)
	b.mu.Unlock()
	if registered {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// publish hands one frame to every listener, dropping it for any whose
// buffer is full.
func (b *Broadcaster) publish(frame []int16) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.subs {
		select {
		case l.C <- frame:
		default:
		}
	}
}

// Run consumes frames from source until it closes or ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.publish(frame)
		}
	}
}
