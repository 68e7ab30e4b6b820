package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3. Used for click-free transport gain ramps.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// ApplyGain scales a frame in place by gain in [0,1], clipping to int16 range.
func ApplyGain(frame []int16, gain float64) {
	if gain >= 1 {
		return
	}
	if gain <= 0 {
		for i := range frame {
			frame[i] = 0
		}
		return
	}
	for i := range frame {
		v := float64(frame[i]) * gain
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		frame[i] = int16(v)
	}
}
