package jam

import "sync"

// Arbiter grants exclusive, non-queued access to the single generation
// resource. The on-device inference engine can only render one loop at a
// time, so contention is rejected immediately rather than queued -- queued
// requests would go stale against a live jam.
type Arbiter struct {
	mu     sync.Mutex
	held   bool
	holder Channel
}

// NewArbiter returns an arbiter with no holder.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// TryAcquire records ch as holder iff no holder is currently recorded.
// It never blocks.
func (a *Arbiter) TryAcquire(ch Channel) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held {
		return false
	}
	a.held = true
	a.holder = ch
	return true
}

// Release frees the resource if ch is the current holder. Releasing when ch
// is not the holder, or when there is no holder, is a no-op so overlapping
// failure and cancellation paths cannot double-free.
func (a *Arbiter) Release(ch Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.held && a.holder == ch {
		a.held = false
	}
}

// Holder returns the current holder, or ok=false when the resource is free.
func (a *Arbiter) Holder() (ch Channel, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.holder, a.held
}
