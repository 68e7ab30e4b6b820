package status

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/arlomorin/loopjam/internal/jam"
)

const writeTimeout = 5 * time.Second

// event is the wire format of one status update.
type event struct {
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	JobID     uint64 `json:"job_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	AnyActive bool   `json:"any_active"`
}

// Handler streams per-channel status changes to UI observers over a
// websocket. Each connection gets the current snapshot first, then live
// events.
type Handler struct {
	coord    *jam.Coordinator
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket status handler.
func NewHandler(coord *jam.Coordinator) *Handler {
	return &Handler{
		coord: coord,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log.Printf("status: observer connected from %s", r.RemoteAddr)
	defer log.Printf("status: observer disconnected")

	// Snapshot first so the UI starts from truth, not from the next change.
	if err := h.sendSnapshot(conn); err != nil {
		return
	}

	watch := h.coord.Watch()
	defer h.coord.Unwatch(watch)

	// Reader goroutine: we never expect messages, but reading is the only
	// way to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-watch.C:
			msg := event{
				Channel:   ev.Channel.String(),
				Status:    ev.Status.String(),
				JobID:     ev.JobID,
				Reason:    ev.Reason,
				AnyActive: h.coord.AnyActive(),
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// sendSnapshot pushes one event per channel reflecting its current status.
func (h *Handler) sendSnapshot(conn *websocket.Conn) error {
	anyActive := h.coord.AnyActive()
	for _, ch := range []jam.Channel{jam.Drums, jam.Instruments} {
		msg := event{
			Channel:   ch.String(),
			Status:    h.coord.Status(ch).String(),
			AnyActive: anyActive,
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}
