package jam

import "fmt"

// baseCaptions are the fallback generation captions per channel when the
// user gives no style hint and no LLM enhancer is wired. Captions describe
// the sound, not a story -- instruments, timbre, tempo feel, production
// style.
var baseCaptions = map[Channel]string{
	Drums:       "Tight drum loop with punchy kick, crisp snare, shuffling hi-hats, subtle percussion ghost notes, dry modern mix, steady groove locked to the grid",
	Instruments: "Melodic instrumental loop with warm electric piano chords, rounded synth bass, airy pad textures, light sidechain pump, polished contemporary production",
}

// BuildCaption combines the per-channel base caption with an optional user
// style hint. The hint leads so the model weights it most heavily.
func BuildCaption(ch Channel, hint string) string {
	base := baseCaptions[ch]
	if hint == "" {
		return base
	}
	return fmt.Sprintf("%s. %s", hint, base)
}

// ValidBars reports whether a requested loop length is on the supported
// power-of-two grid. Odd lengths would still be bar-aligned but make the
// two channels drift against each other musically.
func ValidBars(bars int) bool {
	switch bars {
	case 1, 2, 4, 8:
		return true
	}
	return false
}
