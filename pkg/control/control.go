// Package control is C6 (spec §4.6): translates SDL2 keyboard/quit events
// into the player's seek and close requests. Grounded on the teacher's
// main.go event-poll loop (QuitEvent handling), extended with the
// arrow-key seek bindings original_source/player.cc implements in its own
// event loop (left/right = short seek, up/down = long seek).
package control

import (
	"math"
	"sync/atomic"

	"github.com/veandco/go-sdl2/sdl"
)

func int64FromFloat(f float64) int64  { return int64(math.Float64bits(f)) }
func floatFromInt64(i int64) float64  { return math.Float64frombits(uint64(i)) }

// SeekRequest is armed by a keypress and consumed exactly once by the
// demuxer goroutine. A keypress while a request is still armed is a
// no-op, never queued. TakeIfArmed disarms the request before the seek
// itself runs, so a keypress during the seek arms a new request.
type SeekRequest struct {
	armed atomic.Bool
	delta atomic.Int64 // bits of a float64 offset in seconds
}

func (r *SeekRequest) arm(deltaSeconds float64) {
	if !r.armed.CompareAndSwap(false, true) {
		return
	}
	r.delta.Store(int64FromFloat(deltaSeconds))
}

// TakeIfArmed disarms and returns the pending seek offset, if any.
func (r *SeekRequest) TakeIfArmed() (float64, bool) {
	if !r.armed.CompareAndSwap(true, false) {
		return 0, false
	}
	return floatFromInt64(r.delta.Load()), true
}

// Controller owns the close flag and pending seek request, updated by
// Translate and read by pkg/player's main loop and demuxer goroutine.
type Controller struct {
	Seek  SeekRequest
	close atomic.Bool

	shortSeek float64
	longSeek  float64
}

func New(shortSeekSeconds, longSeekSeconds float64) *Controller {
	return &Controller{shortSeek: shortSeekSeconds, longSeek: longSeekSeconds}
}

// Translate applies one SDL event's effect. Unrecognized events are
// ignored (spec §4.6 names only quit and the four arrow keys).
func (c *Controller) Translate(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		c.close.Store(true)
	case *sdl.KeyboardEvent:
		if e.Type != sdl.KEYDOWN {
			return
		}
		switch e.Keysym.Sym {
		case sdl.K_LEFT:
			c.Seek.arm(-c.shortSeek)
		case sdl.K_RIGHT:
			c.Seek.arm(c.shortSeek)
		case sdl.K_DOWN:
			c.Seek.arm(-c.longSeek)
		case sdl.K_UP:
			c.Seek.arm(c.longSeek)
		}
	}
}

// CloseRequested reports whether a quit event has been seen (spec's
// is_close).
func (c *Controller) CloseRequested() bool {
	return c.close.Load()
}

// SetClose marks the session as closing, the same flag Translate sets on
// a QuitEvent. Called by the demuxer goroutine on end-of-stream/read
// error (spec §4.1 step 2: "On EOF or I/O error: set is_close, break"),
// so every other worker observes it and exits within its own timeout
// cycle (spec §5, §8).
func (c *Controller) SetClose() {
	c.close.Store(true)
}
