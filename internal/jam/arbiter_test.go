package jam

import (
	"sync"
	"testing"
)

func TestTryAcquireGrantsWhenFree(t *testing.T) {
	a := NewArbiter()
	if !a.TryAcquire(Drums) {
		t.Fatal("TryAcquire on empty arbiter should succeed")
	}
	holder, held := a.Holder()
	if !held || holder != Drums {
		t.Errorf("Holder() = (%v, %v), want (drums, true)", holder, held)
	}
}

func TestTryAcquireRejectsWhenHeld(t *testing.T) {
	a := NewArbiter()
	if !a.TryAcquire(Drums) {
		t.Fatal("first acquire failed")
	}
	if a.TryAcquire(Instruments) {
		t.Error("TryAcquire should reject while drums holds the resource")
	}
	if a.TryAcquire(Drums) {
		t.Error("TryAcquire should reject re-acquire by the holder too")
	}
}

func TestReleaseFreesForNextAcquire(t *testing.T) {
	a := NewArbiter()
	a.TryAcquire(Drums)
	a.Release(Drums)
	if _, held := a.Holder(); held {
		t.Error("arbiter still held after release")
	}
	if !a.TryAcquire(Instruments) {
		t.Error("acquire after release should succeed")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	a := NewArbiter()

	// release with no holder is a no-op
	a.Release(Drums)

	a.TryAcquire(Drums)

	// release by a non-holder is a no-op
	a.Release(Instruments)
	if holder, held := a.Holder(); !held || holder != Drums {
		t.Error("non-holder release must not free the resource")
	}

	// double release by the holder frees once and stays free
	a.Release(Drums)
	a.Release(Drums)
	if !a.TryAcquire(Instruments) {
		t.Error("arbiter should be acquirable after release")
	}
}

func TestConcurrentTryAcquireGrantsExactlyOne(t *testing.T) {
	for round := 0; round < 100; round++ {
		a := NewArbiter()
		var wg sync.WaitGroup
		granted := make(chan Channel, 2)

		for _, ch := range []Channel{Drums, Instruments} {
			wg.Add(1)
			go func(ch Channel) {
				defer wg.Done()
				if a.TryAcquire(ch) {
					granted <- ch
				}
			}(ch)
		}
		wg.Wait()
		close(granted)

		var winners []Channel
		for ch := range granted {
			winners = append(winners, ch)
		}
		if len(winners) != 1 {
			t.Fatalf("round %d: %d channels granted, want exactly 1", round, len(winners))
		}
		holder, held := a.Holder()
		if !held || holder != winners[0] {
			t.Fatalf("round %d: holder %v does not match winner %v", round, holder, winners[0])
		}
	}
}
