package playback

import (
	"sync/atomic"

	"github.com/arlomorin/loopjam/internal/audio"
)

// Clock is the playback transport clock: a running sample counter on a fixed
// musical grid. Only the render loop advances it; everything else reads it
// through atomics.
type Clock struct {
	grid    audio.Grid
	pos     atomic.Int64
	running atomic.Bool
}

// NewClock returns a stopped clock at position zero.
func NewClock(grid audio.Grid) *Clock {
	return &Clock{grid: grid}
}

// Grid returns the fixed musical grid.
func (c *Clock) Grid() audio.Grid { return c.grid }

// Pos returns the sample position since transport start.
func (c *Clock) Pos() int64 { return c.pos.Load() }

// Bar returns the current bar index.
func (c *Clock) Bar() int64 { return c.grid.BarIndex(c.pos.Load()) }

// Running reports whether the transport is rolling.
func (c *Clock) Running() bool { return c.running.Load() }

// advance moves the counter by n samples. Render loop only.
func (c *Clock) advance(n int) { c.pos.Add(int64(n)) }
