package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
)

// DecodeFile shells out to FFmpeg to decode an audio file into raw PCM at
// the engine format (48kHz interleaved stereo int16). Generated loops come
// back from the service as flac/mp3/wav; this normalizes all of them.
func DecodeFile(path string) ([]int16, error) {
	cmd := exec.Command("ffmpeg",
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("ffmpeg decode %s: %s", path, bytes.TrimSpace(ee.Stderr))
		}
		return nil, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}

	// Drop a trailing odd byte so int16 alignment holds
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	return BytesToSamples(out), nil
}

// BytesToSamples converts little-endian PCM bytes to int16 samples.
func BytesToSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
