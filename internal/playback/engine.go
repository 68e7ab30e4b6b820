package playback

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/arlomorin/loopjam/internal/jam"
)

// fadeFrames is how many 20ms frames the transport gain ramps over when
// starting or stopping, to avoid clicks. The step 1/fadeFrames must be
// exactly representable so the ramp lands on 0 and 1, not a float neighbor.
const fadeFrames = 4

// Engine renders the two loop channels into 20ms PCM frames at real-time
// rate and applies pending buffer swaps at exact bar boundaries.
//
// Two concurrency domains meet here. The render loop owns current[], the
// playhead, and the gain ramp; nothing else touches them. The coordinator
// hands buffers over through mailbox[], a single-slot atomic pointer per
// channel, and gets swap confirmations back over a buffered channel with
// non-blocking sends. The render path never takes a lock and never waits.
type Engine struct {
	clock *Clock

	mailbox [2]atomic.Pointer[audio.LoopBuffer]
	current [2]*audio.LoopBuffer // render loop only

	frameCh chan []int16
	swapCh  chan jam.SwapEvent

	// render-local transport fade state
	gain     float64
	fadeStep float64
}

// NewEngine creates a stopped engine on the given grid.
func NewEngine(grid audio.Grid) *Engine {
	return &Engine{
		clock:    NewClock(grid),
		frameCh:  make(chan []int16, 100),
		swapCh:   make(chan jam.SwapEvent, 8),
		fadeStep: 1.0 / fadeFrames,
	}
}

// Clock exposes the transport clock for status reads.
func (e *Engine) Clock() *Clock { return e.clock }

// Frames returns the channel of rendered 20ms PCM frames.
func (e *Engine) Frames() <-chan []int16 { return e.frameCh }

// SwapEvents returns swap confirmations for the coordinator.
func (e *Engine) SwapEvents() <-chan jam.SwapEvent { return e.swapCh }

// Start rolls the transport.
func (e *Engine) Start() {
	if e.clock.running.CompareAndSwap(false, true) {
		log.Printf("playback: transport started at sample %d", e.clock.Pos())
	}
}

// Stop pauses the transport; the clock holds its position.
func (e *Engine) Stop() {
	if e.clock.running.CompareAndSwap(true, false) {
		log.Printf("playback: transport stopped at sample %d", e.clock.Pos())
	}
}

// EnqueueSwap places a finished buffer in the channel's single-slot mailbox.
// Called from the coordinator's goroutine. A still-unconsumed previous
// buffer is overwritten -- last write wins.
func (e *Engine) EnqueueSwap(ch jam.Channel, buf *audio.LoopBuffer) {
	if !ch.Valid() {
		return
	}
	e.mailbox[ch].Store(buf)
}

// Run pumps frames at real-time rate until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.frameCh)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := e.renderFrame()

		select {
		case e.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// renderFrame produces the next 20ms frame. It is the whole real-time path:
// consume mailboxes at legal points, mix both loops at the global playhead,
// ramp transport gain, advance the clock.
func (e *Engine) renderFrame() []int16 {
	out := make([]int16, audio.FrameSamples)

	// A channel with no current buffer has no boundary to respect: adopt a
	// pending buffer right away.
	for ch := range e.current {
		if e.current[ch] == nil {
			e.consumeMailbox(jam.Channel(ch), e.clock.Pos())
		}
	}

	running := e.clock.Running()
	target := 0.0
	if running {
		target = 1.0
	}

	// Fully faded out and stopped: hold position, emit silence.
	if !running && e.gain == 0 {
		return out
	}

	pos := e.clock.Pos()
	spb := int64(e.clock.grid.SamplesPerBar())

	for s := 0; s < audio.FrameSize; s++ {
		p := pos + int64(s)
		if spb > 0 && p%spb == 0 {
			for ch := range e.current {
				e.consumeMailbox(jam.Channel(ch), p)
			}
		}
		for ch := range e.current {
			buf := e.current[ch]
			if buf == nil {
				continue
			}
			idx := int(p % int64(buf.LenPerChannel()))
			mix(out, s, buf.Samples[idx*audio.Channels:(idx+1)*audio.Channels])
		}
	}

	// Transport gain ramp, one smoothstep increment per frame.
	if e.gain != target {
		if target > e.gain {
			e.gain += e.fadeStep
			if e.gain > 1 {
				e.gain = 1
			}
		} else {
			e.gain -= e.fadeStep
			if e.gain < 0 {
				e.gain = 0
			}
		}
	}
	audio.ApplyGain(out, audio.Smoothstep(e.gain))

	e.clock.advance(audio.FrameSize)
	return out
}

// consumeMailbox installs a pending buffer for ch, if one is waiting, and
// confirms the swap. pos is the sample position the swap takes effect at.
func (e *Engine) consumeMailbox(ch jam.Channel, pos int64) {
	buf := e.mailbox[ch].Swap(nil)
	if buf == nil {
		return
	}
	e.current[ch] = buf
	select {
	case e.swapCh <- jam.SwapEvent{Channel: ch, Seq: buf.Seq, Pos: pos}:
	default:
		// coordinator is behind; dropping the confirmation only delays the
		// Swapping -> Idle transition, never the audio
	}
}

// mix adds one interleaved sample pair into the frame at sample index s,
// clipping to int16.
func mix(frame []int16, s int, pair []int16) {
	base := s * audio.Channels
	for i := 0; i < audio.Channels; i++ {
		v := int32(frame[base+i]) + int32(pair[i])
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		frame[base+i] = int16(v)
	}
}
