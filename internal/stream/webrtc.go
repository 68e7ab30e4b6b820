package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/arlomorin/loopjam/internal/audio"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"
)

const opusBitrate = 128000

// WebRTCHandler negotiates WebRTC peers for low-latency Opus streaming of
// the live mix. POST an SDP offer, get the answer back as JSON.
type WebRTCHandler struct {
	b     *Broadcaster
	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}
}

// NewWebRTCHandler creates a WebRTC stream handler on the given broadcaster.
func NewWebRTCHandler(b *Broadcaster) *WebRTCHandler {
	return &WebRTCHandler{
		b:     b,
		peers: make(map[*webrtc.PeerConnection]struct{}),
	}
}

// PeerCount returns the number of connected WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, track, err := negotiate(offer)
	if err != nil {
		log.Printf("stream: webrtc negotiation: %v", err)
		http.Error(w, "negotiation failed", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.peers[pc] = struct{}{}
	h.mu.Unlock()
	log.Printf("stream: webrtc peer connected (%d total)", h.PeerCount())

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			h.mu.Lock()
			delete(h.peers, pc)
			h.mu.Unlock()
			pc.Close()
			log.Printf("stream: webrtc peer disconnected (%d remaining)", h.PeerCount())
		}
	})

	go h.streamToPeer(track)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// negotiate builds a peer connection with one Opus track and completes the
// offer/answer exchange, blocking until ICE gathering finishes.
func negotiate(offer webrtc.SessionDescription) (*webrtc.PeerConnection, *webrtc.TrackLocalStaticSample, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, fmt.Errorf("new peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "loopjam",
	)
	if err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("new track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("add track: %w", err)
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, nil, fmt.Errorf("set local description: %w", err)
	}

	<-webrtc.GatheringCompletePromise(pc)
	return pc, track, nil
}

// streamToPeer encodes broadcaster frames to Opus and writes them to the
// peer's track until the listener or the track goes away.
func (h *WebRTCHandler) streamToPeer(track *webrtc.TrackLocalStaticSample) {
	l := h.b.Subscribe()
	defer h.b.Unsubscribe(l)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("stream: opus encoder: %v", err)
		return
	}
	enc.SetBitrate(opusBitrate)

	out := make([]byte, 4000)
	for {
		select {
		case <-l.done:
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, out)
			if err != nil {
				log.Printf("stream: opus encode: %v", err)
				continue
			}
			sample := media.Sample{Data: out[:n], Duration: audio.FrameDuration}
			if err := track.WriteSample(sample); err != nil {
				return
			}
		}
	}
}
