package stream

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeTracksListenerCount(t *testing.T) {
	b := NewBroadcaster()
	if b.ListenerCount() != 0 {
		t.Fatalf("fresh broadcaster has %d listeners", b.ListenerCount())
	}

	l1 := b.Subscribe()
	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d after unsubscribe, want 1", b.ListenerCount())
	}

	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d after all unsubscribed, want 0", b.ListenerCount())
	}

	select {
	case <-l1.done:
	default:
		t.Error("unsubscribed listener's done channel not closed")
	}
}

func TestBroadcastFansOutToAllListeners(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listeners := []*Listener{b.Subscribe(), b.Subscribe(), b.Subscribe()}

	frames := make(chan []int16, 4)
	go b.Run(ctx, frames)

	frame := []int16{100, -100, 32767, -32768}
	frames <- frame

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if len(got) != len(frame) {
				t.Fatalf("listener %d: frame length %d, want %d", i, len(got), len(frame))
			}
			for j := range frame {
				if got[j] != frame[j] {
					t.Errorf("listener %d: frame[%d] = %d, want %d", i, j, got[j], frame[j])
				}
			}
		case <-time.After(time.Second):
			t.Fatalf("listener %d never received the frame", i)
		}
	}
}

func TestBroadcastDropsFramesForSlowListener(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slow := b.Subscribe()
	fast := b.Subscribe()

	frames := make(chan []int16, listenerBuffer+50)
	go b.Run(ctx, frames)

	// Push more frames than a listener buffer holds; nobody is reading yet.
	for i := 0; i < listenerBuffer+50; i++ {
		frames <- []int16{int16(i)}
	}

	// Wait for the broadcaster to drain the source.
	deadline := time.Now().Add(2 * time.Second)
	for len(frames) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("broadcaster never drained the source")
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)

	if n := len(slow.C); n > listenerBuffer {
		t.Errorf("slow listener buffered %d frames, cap is %d", n, listenerBuffer)
	}
	if len(fast.C) == 0 {
		t.Error("fast listener received nothing")
	}
	// The overflow must have been dropped, not delivered late: the buffer is
	// full and the oldest frame is frame 0.
	got := <-slow.C
	if got[0] != 0 {
		t.Errorf("slow listener's first frame = %d, want 0 (drop newest, keep oldest)", got[0])
	}
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx, make(chan []int16))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestRunReturnsOnSourceClose(t *testing.T) {
	b := NewBroadcaster()

	frames := make(chan []int16)
	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), frames)
		close(done)
	}()

	close(frames)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after source closed")
	}
}
