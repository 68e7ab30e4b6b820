package jam

import "testing"

func TestLifecycleAllowedTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusIdle, StatusRequesting},
		{StatusRequesting, StatusGenerating},
		{StatusRequesting, StatusIdle},
		{StatusRequesting, StatusCancelled},
		{StatusGenerating, StatusSwapping},
		{StatusGenerating, StatusFailed},
		{StatusGenerating, StatusCancelled},
		{StatusSwapping, StatusIdle},
		{StatusFailed, StatusIdle},
		{StatusCancelled, StatusIdle},
	}
	for _, tt := range allowed {
		if !canTransition(tt.from, tt.to) {
			t.Errorf("canTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}
}

func TestLifecycleForbiddenTransitions(t *testing.T) {
	forbidden := []struct{ from, to Status }{
		{StatusIdle, StatusGenerating}, // must go through Requesting
		{StatusIdle, StatusSwapping},
		{StatusIdle, StatusFailed},
		{StatusRequesting, StatusSwapping},
		{StatusRequesting, StatusFailed},
		{StatusGenerating, StatusIdle}, // must go through a terminal state
		{StatusGenerating, StatusRequesting},
		{StatusSwapping, StatusGenerating},
		{StatusSwapping, StatusCancelled}, // cancel is only pre-completion
		{StatusFailed, StatusGenerating},
		{StatusCancelled, StatusGenerating},
	}
	for _, tt := range forbidden {
		if canTransition(tt.from, tt.to) {
			t.Errorf("canTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}

func TestStatusActive(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusIdle, false},
		{StatusRequesting, true},
		{StatusGenerating, true},
		{StatusSwapping, true},
		{StatusFailed, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := tt.status.Active(); got != tt.want {
			t.Errorf("%s.Active() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusStrings(t *testing.T) {
	names := map[Status]string{
		StatusIdle:       "idle",
		StatusRequesting: "requesting",
		StatusGenerating: "generating",
		StatusSwapping:   "swapping",
		StatusFailed:     "failed",
		StatusCancelled:  "cancelled",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestParseChannel(t *testing.T) {
	if ch, err := ParseChannel("drums"); err != nil || ch != Drums {
		t.Errorf("ParseChannel(drums) = (%v, %v)", ch, err)
	}
	if ch, err := ParseChannel("instruments"); err != nil || ch != Instruments {
		t.Errorf("ParseChannel(instruments) = (%v, %v)", ch, err)
	}
	if _, err := ParseChannel("bass"); err == nil {
		t.Error("ParseChannel(bass) should fail")
	}
	if _, err := ParseChannel(""); err == nil {
		t.Error("ParseChannel(\"\") should fail")
	}
}
