package audio

import "time"

// LoopBuffer is one rendered loop: interleaved stereo PCM plus the metadata
// needed to place it on the bar grid. Buffers are immutable once handed to
// the playback engine -- they are shared across goroutines by pointer and
// nothing writes to them after hand-off.
type LoopBuffer struct {
	ID         string // uuid assigned at creation
	Path       string // source audio file, kept for style-transfer references
	Samples    []int16
	SampleRate int
	Tempo      float64 // BPM the loop was generated for
	Bars       int
	Params     LoopParams
	Seq        uint64 // monotonic generation sequence number
	Created    time.Time
}

// LenPerChannel returns the loop length in samples per channel.
func (b *LoopBuffer) LenPerChannel() int {
	return len(b.Samples) / Channels
}

// AlignedToBar reports whether the loop length is an exact multiple of one
// bar. The generation request is responsible for making this hold; the
// playback engine refuses buffers where it does not.
func (b *LoopBuffer) AlignedToBar(samplesPerBar int) bool {
	if samplesPerBar <= 0 {
		return false
	}
	n := b.LenPerChannel()
	return n > 0 && n%samplesPerBar == 0
}

// Duration returns the loop's play time.
func (b *LoopBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.LenPerChannel()) * time.Second / time.Duration(b.SampleRate)
}
