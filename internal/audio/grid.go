package audio

// Grid is the musical time grid shared by request construction and the
// playback clock. All bar math goes through one Grid value so the sample
// position the engine checks and the duration the coordinator requests can
// never disagree.
type Grid struct {
	Tempo       float64 // beats per minute
	BeatsPerBar int
	SampleRate  int
}

// SamplesPerBeat returns the beat length in samples per channel, rounded to
// the nearest sample. Tempos that divide the sample rate evenly (e.g. 120
// BPM at 48kHz) round exactly.
func (g Grid) SamplesPerBeat() int {
	if g.Tempo <= 0 || g.SampleRate <= 0 {
		return 0
	}
	return int(float64(g.SampleRate)*60/g.Tempo + 0.5)
}

// SamplesPerBar returns the bar length in samples per channel.
func (g Grid) SamplesPerBar() int {
	if g.BeatsPerBar <= 0 {
		return 0
	}
	return g.SamplesPerBeat() * g.BeatsPerBar
}

// BarIndex returns which bar the given sample position falls in.
func (g Grid) BarIndex(pos int64) int64 {
	spb := int64(g.SamplesPerBar())
	if spb <= 0 {
		return 0
	}
	return pos / spb
}

// OnBarBoundary reports whether pos is an exact bar boundary.
func (g Grid) OnBarBoundary(pos int64) bool {
	spb := int64(g.SamplesPerBar())
	return spb > 0 && pos%spb == 0
}
