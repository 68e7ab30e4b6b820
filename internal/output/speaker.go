package output

import (
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/arlomorin/loopjam/internal/stream"
)

// Speaker plays the broadcast mix on the local audio device via oto. It
// subscribes to the broadcaster like any network listener and feeds the
// device through oto's pull-based Read callback. When no frame is ready the
// callback emits silence instead of waiting -- the device read path must
// never block on the rest of the system.
type Speaker struct {
	ctx         *oto.Context
	player      *oto.Player
	broadcaster *stream.Broadcaster
	listener    *stream.Listener
	leftover    []byte

	mu      sync.Mutex
	started bool
}

// NewSpeaker opens the audio device at the engine format.
func NewSpeaker(b *stream.Broadcaster) (*Speaker, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return &Speaker{
		ctx:         ctx,
		broadcaster: b,
	}, nil
}

// Start subscribes to the broadcast and begins device playback.
func (s *Speaker) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.listener = s.broadcaster.Subscribe()
	s.player = s.ctx.NewPlayer(s)
	s.player.Play()
	s.started = true
}

// Read is oto's pull callback. It drains buffered frames into p and pads
// with silence when the broadcast has nothing ready.
func (s *Speaker) Read(p []byte) (int, error) {
	filled := 0

	// leftover bytes from a frame that straddled the last Read
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		filled += n
	}

	for filled < len(p) {
		select {
		case frame, ok := <-s.listener.C:
			if !ok {
				for i := filled; i < len(p); i++ {
					p[i] = 0
				}
				return len(p), nil
			}
			raw := audio.SamplesToBytes(frame)
			n := copy(p[filled:], raw)
			filled += n
			if n < len(raw) {
				s.leftover = raw[n:]
			}
		default:
			// underrun: pad with silence rather than stalling the device
			for i := filled; i < len(p); i++ {
				p[i] = 0
			}
			return len(p), nil
		}
	}

	return filled, nil
}

// Close stops playback and releases the broadcast subscription.
func (s *Speaker) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.player.Close()
	s.broadcaster.Unsubscribe(s.listener)
	s.started = false
}
