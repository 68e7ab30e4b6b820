package jam

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arlomorin/loopjam/internal/audio"
)

// ResourceArbiter grants exclusive, non-blocking access to the generation
// resource. Satisfied by *Arbiter.
type ResourceArbiter interface {
	TryAcquire(Channel) bool
	Release(Channel)
}

// StatusEvent is one observable per-channel status change.
type StatusEvent struct {
	Channel Channel
	Status  Status
	JobID   uint64
	Reason  string // failure reason when Status is Failed
}

// StatusWatch receives status events. Slow watchers get events dropped
// rather than stalling the coordinator.
type StatusWatch struct {
	C chan StatusEvent
}

// ChannelSnapshot is the UI-facing view of one channel.
type ChannelSnapshot struct {
	Status    string `json:"status"`
	JobID     uint64 `json:"job_id,omitempty"`
	CurrentID string `json:"current_id,omitempty"`
	PendingID string `json:"pending_id,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Bars      int    `json:"bars,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// channelState is owned exclusively by the coordinator; the playback engine
// only ever sees buffers through the swap mailbox.
type channelState struct {
	status    Status
	jobID     uint64 // active job, 0 when none
	cancelJob context.CancelFunc
	current   *audio.LoopBuffer // last buffer swapped in
	pending   *audio.LoopBuffer // ready but not yet swapped
	lastErr   string
}

// Coordinator arbitrates the two channels' generation requests against the
// single-slot generation resource and drives each channel's lifecycle. All
// state mutation happens under one mutex; the only blocking work (the
// service call) runs on its own goroutine per job.
type Coordinator struct {
	arb        ResourceArbiter
	gen        Generator
	swaps      Swapper
	grid       audio.Grid
	failedHold time.Duration

	mu      sync.Mutex
	chans   [numChannels]channelState
	nextJob uint64
	nextSeq uint64

	watchMu  sync.RWMutex
	watchers map[*StatusWatch]struct{}
}

// NewCoordinator wires the coordinator to the arbiter, the generation
// service, and the playback engine's swap mailbox. failedHold is how long a
// channel shows Failed before reverting to Idle; zero picks a default.
func NewCoordinator(arb ResourceArbiter, gen Generator, swaps Swapper, grid audio.Grid, failedHold time.Duration) *Coordinator {
	if failedHold <= 0 {
		failedHold = 1500 * time.Millisecond
	}
	return &Coordinator{
		arb:        arb,
		gen:        gen,
		swaps:      swaps,
		grid:       grid,
		failedHold: failedHold,
		watchers:   make(map[*StatusWatch]struct{}),
	}
}

// Submit requests a new loop for ch. It returns false immediately when the
// channel is not idle, the generation resource is held, the bar count is off
// the grid, or a style reference cannot be resolved. Accepted requests leave
// the channel Generating with a dispatched job.
func (c *Coordinator) Submit(ch Channel, params audio.LoopParams) bool {
	if !ch.Valid() {
		log.Printf("jam: submit rejected: invalid channel %v", ch)
		return false
	}
	if !ValidBars(params.Bars) {
		log.Printf("jam: %s submit rejected: bad bar count %d", ch, params.Bars)
		return false
	}

	c.mu.Lock()
	st := &c.chans[ch]
	if st.status != StatusIdle {
		c.mu.Unlock()
		log.Printf("jam: %s submit rejected: channel is %s", ch, st.status)
		return false
	}

	c.transition(ch, StatusRequesting, 0, "")
	if !c.arb.TryAcquire(ch) {
		c.transition(ch, StatusIdle, 0, "")
		c.mu.Unlock()
		log.Printf("jam: %s submit rejected: generation resource busy", ch)
		return false
	}

	var refPath string
	if params.StyleRef != "" {
		ref := c.findBufferLocked(params.StyleRef)
		if ref == nil {
			c.arb.Release(ch)
			c.transition(ch, StatusIdle, 0, "")
			c.mu.Unlock()
			log.Printf("jam: %s submit rejected: unknown style ref %s", ch, params.StyleRef)
			return false
		}
		refPath = ref.Path
	}

	c.nextJob++
	jobID := c.nextJob
	ctx, cancel := context.WithCancel(context.Background())
	st.jobID = jobID
	st.cancelJob = cancel
	st.lastErr = ""
	c.transition(ch, StatusGenerating, jobID, "")

	req := Request{
		Channel:       ch,
		Params:        params,
		Tempo:         c.grid.Tempo,
		TargetSamples: params.Bars * c.grid.SamplesPerBar(),
		RefPath:       refPath,
	}
	c.mu.Unlock()

	log.Printf("jam: %s job %d dispatched (%d bars, style_ref=%q)", ch, jobID, params.Bars, params.StyleRef)
	go func() {
		buf, err := c.gen.Generate(ctx, req)
		cancel()
		c.complete(ch, jobID, buf, err)
	}()
	return true
}

// Cancel aborts the channel's active job. The channel is observably Idle
// before the service acknowledges; a late result for the cancelled job id is
// dropped in complete.
func (c *Coordinator) Cancel(ch Channel) bool {
	if !ch.Valid() {
		return false
	}
	c.mu.Lock()
	st := &c.chans[ch]
	if st.jobID == 0 || (st.status != StatusRequesting && st.status != StatusGenerating) {
		c.mu.Unlock()
		return false
	}
	jobID := st.jobID
	cancel := st.cancelJob
	st.jobID = 0
	st.cancelJob = nil
	c.transition(ch, StatusCancelled, jobID, "")
	c.arb.Release(ch)
	c.transition(ch, StatusIdle, 0, "")
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	log.Printf("jam: %s job %d cancelled", ch, jobID)
	return true
}

// complete handles the service outcome for one job. Results whose job id no
// longer matches the channel's active job are stale (cancelled or
// superseded) and dropped without touching the arbiter -- the cancel path
// already released it.
func (c *Coordinator) complete(ch Channel, jobID uint64, buf *audio.LoopBuffer, err error) {
	c.mu.Lock()
	st := &c.chans[ch]
	if st.jobID != jobID {
		c.mu.Unlock()
		log.Printf("jam: %s dropping stale result for job %d", ch, jobID)
		return
	}
	st.jobID = 0
	st.cancelJob = nil

	if err == nil && !buf.AlignedToBar(c.grid.SamplesPerBar()) {
		err = fmt.Errorf("loop length %d samples is not a bar multiple", buf.LenPerChannel())
		buf = nil
	}

	if err != nil {
		st.lastErr = err.Error()
		c.arb.Release(ch)
		c.transition(ch, StatusFailed, jobID, err.Error())
		c.mu.Unlock()
		log.Printf("jam: %s job %d failed: %v", ch, jobID, err)
		time.AfterFunc(c.failedHold, func() { c.clearFailed(ch) })
		return
	}

	c.nextSeq++
	buf.Seq = c.nextSeq
	st.pending = buf
	c.arb.Release(ch)
	c.transition(ch, StatusSwapping, jobID, "")
	c.mu.Unlock()

	log.Printf("jam: %s job %d ready (seq %d), waiting for bar boundary", ch, jobID, buf.Seq)
	c.swaps.EnqueueSwap(ch, buf)
}

// SwapDone is fed from the playback engine's swap events and closes the
// success path: Swapping -> Idle once the buffer is live.
func (c *Coordinator) SwapDone(ev SwapEvent) {
	c.mu.Lock()
	st := &c.chans[ev.Channel]
	if st.status != StatusSwapping || st.pending == nil || st.pending.Seq != ev.Seq {
		c.mu.Unlock()
		return
	}
	st.current = st.pending
	st.pending = nil
	c.transition(ev.Channel, StatusIdle, 0, "")
	c.mu.Unlock()
	log.Printf("jam: %s swapped in seq %d at sample %d", ev.Channel, ev.Seq, ev.Pos)
}

// RunSwapFeedback drains the engine's swap events until ctx is cancelled.
func (c *Coordinator) RunSwapFeedback(ctx context.Context, events <-chan SwapEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SwapDone(ev)
		}
	}
}

// Status returns the channel's current lifecycle status.
func (c *Coordinator) Status(ch Channel) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chans[ch].status
}

// AnyActive reports whether any channel has a request, generation, or swap
// in flight. UI controls that must disable globally key off this.
func (c *Coordinator) AnyActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.chans {
		if c.chans[i].status.Active() {
			return true
		}
	}
	return false
}

// CurrentBuffer returns the channel's live buffer, nil before the first swap.
func (c *Coordinator) CurrentBuffer(ch Channel) *audio.LoopBuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chans[ch].current
}

// Snapshot returns the UI view of both channels.
func (c *Coordinator) Snapshot() map[string]ChannelSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]ChannelSnapshot, numChannels)
	for i := range c.chans {
		ch := Channel(i)
		st := &c.chans[i]
		snap := ChannelSnapshot{
			Status:    st.status.String(),
			JobID:     st.jobID,
			LastError: st.lastErr,
		}
		if st.current != nil {
			snap.CurrentID = st.current.ID
			snap.Prompt = st.current.Params.Prompt
			snap.Bars = st.current.Bars
		}
		if st.pending != nil {
			snap.PendingID = st.pending.ID
		}
		out[ch.String()] = snap
	}
	return out
}

// Watch subscribes to status events. The returned watch must be released
// with Unwatch.
func (c *Coordinator) Watch() *StatusWatch {
	w := &StatusWatch{C: make(chan StatusEvent, 32)}
	c.watchMu.Lock()
	c.watchers[w] = struct{}{}
	c.watchMu.Unlock()
	return w
}

// Unwatch removes a status subscriber.
func (c *Coordinator) Unwatch(w *StatusWatch) {
	c.watchMu.Lock()
	delete(c.watchers, w)
	c.watchMu.Unlock()
}

// transition performs a lifecycle step and notifies watchers. Caller holds
// c.mu; illegal steps are logged and skipped rather than corrupting state.
func (c *Coordinator) transition(ch Channel, to Status, jobID uint64, reason string) {
	st := &c.chans[ch]
	if !canTransition(st.status, to) {
		log.Printf("jam: %s illegal transition %s -> %s", ch, st.status, to)
		return
	}
	st.status = to
	c.notify(StatusEvent{Channel: ch, Status: to, JobID: jobID, Reason: reason})
}

// notify fans an event out to watchers without ever blocking.
func (c *Coordinator) notify(ev StatusEvent) {
	c.watchMu.RLock()
	for w := range c.watchers {
		select {
		case w.C <- ev:
		default:
		}
	}
	c.watchMu.RUnlock()
}

// clearFailed reverts a transient Failed status to Idle.
func (c *Coordinator) clearFailed(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chans[ch].status == StatusFailed {
		c.transition(ch, StatusIdle, 0, "")
	}
}

// findBufferLocked resolves a style-reference id against both channels'
// current and pending buffers. Caller holds c.mu.
func (c *Coordinator) findBufferLocked(id string) *audio.LoopBuffer {
	for i := range c.chans {
		if b := c.chans[i].current; b != nil && b.ID == id {
			return b
		}
		if b := c.chans[i].pending; b != nil && b.ID == id {
			return b
		}
	}
	return nil
}
