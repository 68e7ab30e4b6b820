package audio

import "time"

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// LoopParams are the generation parameters a loop was (or will be) rendered
// from. StyleRef, when non-empty, names an existing loop whose audio is used
// as a style anchor.
type LoopParams struct {
	Prompt   string
	Bars     int
	StyleRef string // LoopBuffer ID of the style-transfer reference, if any
}
