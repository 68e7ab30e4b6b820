package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// ACE-Step connection
	ACEStepAPIURL    string
	ACEStepAPIKey    string
	ACEStepOutputDir string

	// Ollama (optional prompt enhancement)
	OllamaURL   string
	OllamaModel string

	// Server
	Port int

	// Jam grid -- fixed for the process lifetime
	Tempo       float64 // BPM
	BeatsPerBar int
	DefaultBars int

	// Playback
	Speaker    bool          // local speaker output via oto
	FailedHold time.Duration // how long a channel shows Failed before Idle

	// ACE-Step generation quality
	InferenceSteps int     // diffusion steps (base model: 50+, turbo: 8)
	GuidanceScale  float64 // CFG strength
	Shift          float64 // timestep shift
	AudioFormat    string  // output format: flac, mp3, wav
	RefStrength    float64 // style-transfer blend strength
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		ACEStepAPIURL:    envStr("ACESTEP_API_URL", "http://acestep:8000"),
		ACEStepAPIKey:    envStr("ACESTEP_API_KEY", ""),
		ACEStepOutputDir: envStr("ACESTEP_OUTPUT_DIR", "/acestep-outputs"),

		OllamaURL:   envStr("OLLAMA_URL", ""),
		OllamaModel: envStr("OLLAMA_MODEL", "qwen3:8b"),

		Port: envInt("LOOPJAM_PORT", 8080),

		Tempo:       envFloat("LOOPJAM_BPM", 120),
		BeatsPerBar: envInt("LOOPJAM_BEATS_PER_BAR", 4),
		DefaultBars: envInt("LOOPJAM_BARS", 4),

		Speaker:    envBool("LOOPJAM_SPEAKER", false),
		FailedHold: time.Duration(envInt("LOOPJAM_FAILED_HOLD_MS", 1500)) * time.Millisecond,

		InferenceSteps: envInt("LOOPJAM_INFERENCE_STEPS", 50),
		GuidanceScale:  envFloat("LOOPJAM_GUIDANCE_SCALE", 4.0),
		Shift:          envFloat("LOOPJAM_SHIFT", 3.0),
		AudioFormat:    envStr("LOOPJAM_AUDIO_FORMAT", "flac"),
		RefStrength:    envFloat("LOOPJAM_REF_STRENGTH", 0.5),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
