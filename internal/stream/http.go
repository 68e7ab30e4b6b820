package stream

import (
	"context"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/arlomorin/loopjam/internal/audio"
)

const mp3Bitrate = "192k"

// HTTPHandler streams the live mix as chunked MP3 over plain HTTP. Each
// connection runs its own ffmpeg encoder fed from a broadcaster listener,
// so a stalled client never back-pressures the render loop.
type HTTPHandler struct {
	b *Broadcaster
}

// NewHTTPHandler creates an HTTP stream handler on the given broadcaster.
func NewHTTPHandler(b *Broadcaster) *HTTPHandler {
	return &HTTPHandler{b: b}
}

// mp3Encoder wraps a per-connection ffmpeg process encoding raw PCM from
// stdin to MP3 on stdout.
type mp3Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func newMP3Encoder(ctx context.Context) (*mp3Encoder, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", mp3Bitrate,
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &mp3Encoder{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	enc, err := newMP3Encoder(ctx)
	if err != nil {
		log.Printf("stream: mp3 encoder: %v", err)
		http.Error(w, "encoder unavailable", http.StatusInternalServerError)
		return
	}
	defer enc.cmd.Wait()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "loopjam")

	l := h.b.Subscribe()
	defer h.b.Unsubscribe(l)
	log.Printf("stream: mp3 listener connected (%d total)", h.b.ListenerCount())
	defer log.Printf("stream: mp3 listener disconnected")

	go feedEncoder(ctx, l, enc.stdin)

	buf := make([]byte, 4096)
	for {
		n, err := enc.stdout.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("stream: mp3 read: %v", err)
			}
			return
		}
	}
}

// feedEncoder pumps PCM frames from the listener into ffmpeg's stdin until
// the connection or the listener goes away.
func feedEncoder(ctx context.Context, l *Listener, stdin io.WriteCloser) {
	defer stdin.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case frame, ok := <-l.C:
			if !ok {
				return
			}
			if _, err := stdin.Write(audio.SamplesToBytes(frame)); err != nil {
				return
			}
		}
	}
}
