package jam

import (
	"context"

	"github.com/arlomorin/loopjam/internal/audio"
)

// Request describes one generation attempt handed to the service.
type Request struct {
	Channel       Channel
	Params        audio.LoopParams
	Tempo         float64
	TargetSamples int    // per-channel duration, always a bar multiple
	RefPath       string // resolved style-transfer reference audio, if any
}

// Generator is the external generation service. Generate blocks until the
// service produces a loop or fails; it must honor ctx cancellation. The
// coordinator calls it from a background goroutine, never from the render
// path.
type Generator interface {
	Generate(ctx context.Context, req Request) (*audio.LoopBuffer, error)
}

// Swapper receives finished buffers for bar-aligned substitution. The
// playback engine implements it with a lock-free single-slot mailbox.
type Swapper interface {
	EnqueueSwap(ch Channel, buf *audio.LoopBuffer)
}

// SwapEvent is emitted by the playback engine after it substitutes a pending
// buffer at a bar boundary. Pos is the sample position the swap landed on.
type SwapEvent struct {
	Channel Channel
	Seq     uint64
	Pos     int64
}
