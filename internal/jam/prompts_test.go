package jam

import (
	"strings"
	"testing"
)

func TestBuildCaptionFallbacks(t *testing.T) {
	for _, ch := range []Channel{Drums, Instruments} {
		c := BuildCaption(ch, "")
		if len(c) < 20 {
			t.Errorf("%s base caption too short: %q", ch, c)
		}
	}
}

func TestBuildCaptionHintLeads(t *testing.T) {
	c := BuildCaption(Drums, "amen break chops")
	if !strings.HasPrefix(c, "amen break chops") {
		t.Errorf("hint should lead the caption: %q", c)
	}
	if !strings.Contains(c, baseCaptions[Drums]) {
		t.Errorf("base caption should still be present: %q", c)
	}
}

func TestValidBars(t *testing.T) {
	for _, bars := range []int{1, 2, 4, 8} {
		if !ValidBars(bars) {
			t.Errorf("ValidBars(%d) = false, want true", bars)
		}
	}
	for _, bars := range []int{0, -1, 3, 5, 6, 7, 16} {
		if ValidBars(bars) {
			t.Errorf("ValidBars(%d) = true, want false", bars)
		}
	}
}
