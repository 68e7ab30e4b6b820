package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/arlomorin/loopjam/internal/acestep"
	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/arlomorin/loopjam/internal/config"
	"github.com/arlomorin/loopjam/internal/jam"
	"github.com/arlomorin/loopjam/internal/ollama"
	"github.com/arlomorin/loopjam/internal/output"
	"github.com/arlomorin/loopjam/internal/playback"
	"github.com/arlomorin/loopjam/internal/status"
	"github.com/arlomorin/loopjam/internal/stream"
	"github.com/arlomorin/loopjam/internal/web"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ACE-Step client (the generation service)
	client := acestep.NewClient(cfg.ACEStepAPIURL, cfg.ACEStepAPIKey, cfg.ACEStepOutputDir, acestep.Options{
		InferenceSteps: cfg.InferenceSteps,
		GuidanceScale:  cfg.GuidanceScale,
		Shift:          cfg.Shift,
		AudioFormat:    cfg.AudioFormat,
		RefStrength:    cfg.RefStrength,
	})

	log.Println("loopjam starting up...")

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer healthCancel()
	if err := client.WaitForHealthy(healthCtx); err != nil {
		log.Fatalf("ACE-Step not available: %v", err)
	}

	grid := audio.Grid{
		Tempo:       cfg.Tempo,
		BeatsPerBar: cfg.BeatsPerBar,
		SampleRate:  audio.SampleRate,
	}
	log.Printf("grid: %.1f BPM, %d/4, %d samples per bar", grid.Tempo, grid.BeatsPerBar, grid.SamplesPerBar())

	// Playback engine: render loop + bar-aligned swaps
	engine := playback.NewEngine(grid)
	go engine.Run(ctx)

	// Coordinator: lifecycle + arbitration over the single generation slot
	coord := jam.NewCoordinator(jam.NewArbiter(), client, engine, grid, cfg.FailedHold)
	go coord.RunSwapFeedback(ctx, engine.SwapEvents())

	// Broadcaster: fan-out rendered frames to all listeners
	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, engine.Frames())

	// Ollama LLM (optional -- enhances loop captions)
	var enhancer *ollama.CaptionEnhancer
	if cfg.OllamaURL != "" {
		ollamaClient := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)
		readyCtx, readyCancel := context.WithTimeout(ctx, 30*time.Second)
		if ollamaClient.WaitForReady(readyCtx) {
			enhancer = ollama.NewCaptionEnhancer(ollamaClient)
			log.Printf("Ollama connected: %s (LLM captions enabled)", cfg.OllamaModel)
		} else {
			log.Println("Ollama not available, using static captions")
		}
		readyCancel()
	} else {
		log.Println("Ollama not configured (set OLLAMA_URL to enable LLM captions)")
	}

	// Local speaker output (optional)
	if cfg.Speaker {
		speaker, err := output.NewSpeaker(broadcaster)
		if err != nil {
			log.Printf("Speaker unavailable: %v", err)
		} else {
			speaker.Start()
			defer speaker.Close()
			log.Println("Local speaker output enabled")
		}
	}

	webrtcHandler := stream.NewWebRTCHandler(broadcaster)

	// HTTP routes
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Audio streams
	mux.Handle("/stream", stream.NewHTTPHandler(broadcaster))
	mux.Handle("/offer", webrtcHandler)

	// UI status observers
	mux.Handle("/ws", status.NewHandler(coord))

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		clock := engine.Clock()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(map[string]any{
			"tempo":            grid.Tempo,
			"beats_per_bar":    grid.BeatsPerBar,
			"bar":              clock.Bar(),
			"position":         clock.Pos(),
			"running":          clock.Running(),
			"any_active":       coord.AnyActive(),
			"channels":         coord.Snapshot(),
			"http_listeners":   broadcaster.ListenerCount(),
			"webrtc_listeners": webrtcHandler.PeerCount(),
		})
	})

	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Channel  string `json:"channel"`
			Prompt   string `json:"prompt"`
			Bars     int    `json:"bars"`
			StyleRef string `json:"style_ref"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ch, err := jam.ParseChannel(req.Channel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Bars == 0 {
			req.Bars = cfg.DefaultBars
		}
		if !jam.ValidBars(req.Bars) {
			http.Error(w, "bars must be 1, 2, 4, or 8", http.StatusBadRequest)
			return
		}

		// Try LLM caption first, fall back to static. A short timeout so a
		// slow LLM never blocks the jam.
		var caption string
		if enhancer != nil {
			llmCtx, llmCancel := context.WithTimeout(r.Context(), 15*time.Second)
			caption = enhancer.Enhance(llmCtx, ch.String(), req.Prompt)
			llmCancel()
		}
		if caption == "" {
			caption = jam.BuildCaption(ch, req.Prompt)
		}

		accepted := coord.Submit(ch, audio.LoopParams{
			Prompt:   caption,
			Bars:     req.Bars,
			StyleRef: req.StyleRef,
		})

		w.Header().Set("Content-Type", "application/json")
		if !accepted {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"accepted": false, "status": coord.Status(ch).String()})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"accepted": true, "channel": ch.String()})
	})

	mux.HandleFunc("/api/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Channel string `json:"channel"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		ch, err := jam.ParseChannel(req.Channel)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cancelled := coord.Cancel(ch)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"cancelled": cancelled})
	})

	mux.HandleFunc("/api/transport", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Running bool `json:"running"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if req.Running {
			engine.Start()
		} else {
			engine.Stop()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "running": req.Running})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("loopjam live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
