package playback

import (
	"testing"

	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/arlomorin/loopjam/internal/jam"
)

// 120 BPM, 4/4 at 48kHz: 24000 samples per beat, 96000 per bar, so one bar
// is exactly 100 render frames.
var engineGrid = audio.Grid{Tempo: 120, BeatsPerBar: 4, SampleRate: audio.SampleRate}

func constLoop(bars int, val int16, seq uint64) *audio.LoopBuffer {
	samples := make([]int16, bars*engineGrid.SamplesPerBar()*audio.Channels)
	for i := range samples {
		samples[i] = val
	}
	return &audio.LoopBuffer{
		ID:         "test",
		Samples:    samples,
		SampleRate: engineGrid.SampleRate,
		Tempo:      engineGrid.Tempo,
		Bars:       bars,
		Seq:        seq,
	}
}

func takeEvent(t *testing.T, e *Engine) jam.SwapEvent {
	t.Helper()
	select {
	case ev := <-e.SwapEvents():
		return ev
	default:
		t.Fatal("expected a swap event")
		return jam.SwapEvent{}
	}
}

func noEvent(t *testing.T, e *Engine) {
	t.Helper()
	select {
	case ev := <-e.SwapEvents():
		t.Fatalf("unexpected swap event: %+v", ev)
	default:
	}
}

// rampUp renders enough frames for the transport gain to reach unity.
func rampUp(e *Engine) {
	e.Start()
	for i := 0; i < fadeFrames; i++ {
		e.renderFrame()
	}
}

func TestEmptyChannelAdoptsBufferImmediately(t *testing.T) {
	e := NewEngine(engineGrid)

	buf := constLoop(1, 1000, 1)
	e.EnqueueSwap(jam.Drums, buf)

	frame := e.renderFrame()

	ev := takeEvent(t, e)
	if ev.Channel != jam.Drums || ev.Seq != 1 {
		t.Errorf("event = %+v, want drums seq 1", ev)
	}
	if e.current[jam.Drums] != buf {
		t.Error("buffer not installed")
	}

	// Transport is stopped: silence, clock holds at zero.
	for i, s := range frame {
		if s != 0 {
			t.Fatalf("frame[%d] = %d, want silence while stopped", i, s)
		}
	}
	if e.Clock().Pos() != 0 {
		t.Errorf("clock advanced while stopped: pos = %d", e.Clock().Pos())
	}
}

func TestSwapAppliedOnlyAtBarBoundary(t *testing.T) {
	e := NewEngine(engineGrid)

	first := constLoop(1, 500, 1)
	e.EnqueueSwap(jam.Drums, first)
	e.renderFrame()
	takeEvent(t, e)

	rampUp(e)

	// Render into the middle of the first bar, then enqueue a replacement.
	for e.Clock().Pos() < 9600 {
		e.renderFrame()
	}
	second := constLoop(1, 700, 2)
	e.EnqueueSwap(jam.Drums, second)

	spb := int64(engineGrid.SamplesPerBar())
	for i := 0; i < 200; i++ {
		e.renderFrame()
		select {
		case ev := <-e.SwapEvents():
			if ev.Seq != 2 {
				t.Fatalf("event seq = %d, want 2", ev.Seq)
			}
			if ev.Pos%spb != 0 {
				t.Fatalf("swap applied at pos %d, not a bar boundary (bar = %d samples)", ev.Pos, spb)
			}
			if e.current[jam.Drums] != second {
				t.Fatal("replacement buffer not installed")
			}
			return
		default:
		}
	}
	t.Fatal("swap never applied")
}

func TestMailboxOverwriteLatestWins(t *testing.T) {
	e := NewEngine(engineGrid)

	e.EnqueueSwap(jam.Drums, constLoop(1, 100, 1))
	winner := constLoop(1, 200, 2)
	e.EnqueueSwap(jam.Drums, winner)

	e.renderFrame()

	ev := takeEvent(t, e)
	if ev.Seq != 2 {
		t.Errorf("event seq = %d, want 2 (last write wins)", ev.Seq)
	}
	noEvent(t, e)
	if e.current[jam.Drums] != winner {
		t.Error("overwritten buffer installed instead of the latest")
	}
}

func TestRenderMixesBothChannels(t *testing.T) {
	e := NewEngine(engineGrid)

	e.EnqueueSwap(jam.Drums, constLoop(1, 1000, 1))
	e.EnqueueSwap(jam.Instruments, constLoop(1, 2000, 2))
	e.renderFrame()
	takeEvent(t, e)
	takeEvent(t, e)

	rampUp(e)
	frame := e.renderFrame()

	for i, s := range frame {
		if s != 3000 {
			t.Fatalf("frame[%d] = %d, want 3000 (1000 + 2000)", i, s)
		}
	}
}

func TestMixClipsToInt16(t *testing.T) {
	e := NewEngine(engineGrid)

	e.EnqueueSwap(jam.Drums, constLoop(1, 30000, 1))
	e.EnqueueSwap(jam.Instruments, constLoop(1, 30000, 2))
	e.renderFrame()
	takeEvent(t, e)
	takeEvent(t, e)

	rampUp(e)
	frame := e.renderFrame()

	for i, s := range frame {
		if s != 32767 {
			t.Fatalf("frame[%d] = %d, want clip at 32767", i, s)
		}
	}
}

func TestLoopWrapsAtBufferEnd(t *testing.T) {
	e := NewEngine(engineGrid)

	buf := constLoop(1, 0, 1)
	buf.Samples[0] = 111
	buf.Samples[1] = 222
	e.EnqueueSwap(jam.Drums, buf)
	e.renderFrame()
	takeEvent(t, e)

	rampUp(e)

	// Render to the end of the bar; the next frame starts back at sample 0.
	framesPerBar := engineGrid.SamplesPerBar() / audio.FrameSize
	for e.Clock().Pos() < int64(framesPerBar*audio.FrameSize) {
		e.renderFrame()
	}
	frame := e.renderFrame()
	if frame[0] != 111 || frame[1] != 222 {
		t.Errorf("wrap frame starts with (%d, %d), want (111, 222)", frame[0], frame[1])
	}
}

func TestStopFadesOutThenHoldsClock(t *testing.T) {
	e := NewEngine(engineGrid)

	e.EnqueueSwap(jam.Drums, constLoop(1, 1000, 1))
	e.renderFrame()
	takeEvent(t, e)
	rampUp(e)
	e.renderFrame()

	e.Stop()
	for i := 0; i < fadeFrames; i++ {
		e.renderFrame() // fade-out frames still advance the clock
	}
	held := e.Clock().Pos()

	frame := e.renderFrame()
	if e.Clock().Pos() != held {
		t.Errorf("clock moved while stopped: %d -> %d", held, e.Clock().Pos())
	}
	for i, s := range frame {
		if s != 0 {
			t.Fatalf("frame[%d] = %d, want silence when stopped", i, s)
		}
	}

	// Restart resumes from the held position.
	rampUp(e)
	if e.Clock().Pos() != held+int64(fadeFrames*audio.FrameSize) {
		t.Errorf("restart did not resume from held position")
	}
}

func TestClockBarIndex(t *testing.T) {
	e := NewEngine(engineGrid)
	e.EnqueueSwap(jam.Drums, constLoop(1, 1, 1))
	e.renderFrame()
	takeEvent(t, e)
	rampUp(e)

	framesPerBar := engineGrid.SamplesPerBar() / audio.FrameSize
	for i := 0; i < framesPerBar+5; i++ {
		e.renderFrame()
	}
	if got := e.Clock().Bar(); got != 1 {
		t.Errorf("Bar() = %d, want 1 after crossing one bar", got)
	}
}
