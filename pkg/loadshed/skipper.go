// Package loadshed adapts the teacher's FrameSkipper hysteresis state
// machine from a render-side frame-skip decision to a decode-side one:
// when the video decode worker is falling behind, every packet is still
// decoded, but the frames of skipped packets are discarded before the
// scale/convert and queue push. This is adaptive load shedding, not the "adaptive
// streaming" (bitrate ladder switching) SPEC_FULL.md explicitly excludes
// as a non-goal — no bitrate or resolution ever changes here.
package loadshed

import (
	"log"
	"sync"
	"time"

	"avplayer/pkg/performance"
)

// Mode mirrors the teacher's SkipMode: for how many packets out of every
// N the decoded frames are converted and kept.
type Mode int

const (
	ModeNormal Mode = iota // keep every packet's frames
	ModeSkip2              // keep every 2nd packet's frames
	ModeSkip3              // keep every 3rd packet's frames
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeSkip2:
		return "skip2"
	case ModeSkip3:
		return "skip3"
	default:
		return "unknown"
	}
}

// Skipper decides whether the frames of the next video packet should be
// converted and kept, based on a rolling average of recent decode
// durations. The hysteresis
// thresholds and transition counts are carried over unchanged from the
// teacher's FrameSkipper.
type Skipper struct {
	mode            Mode
	packetCounter   uint64
	consecutiveSlow int
	consecutiveGood int

	slowThreshold time.Duration
	goodThreshold time.Duration

	enterSkip2After   int
	enterSkip3After   int
	exitToNormalAfter int
	exitToSkip2After  int

	mu sync.Mutex
}

// New creates a Skipper with the teacher's tuned defaults.
func New() *Skipper {
	return &Skipper{
		mode:          ModeNormal,
		slowThreshold: 30 * time.Millisecond,
		goodThreshold: 20 * time.Millisecond,

		enterSkip2After:   3,
		enterSkip3After:   5,
		exitToNormalAfter: 60,
		exitToSkip2After:  30,
	}
}

// ShouldDecode reports whether the frames of the packet about to be
// decoded should be converted and kept (false: the caller still decodes
// the packet but discards its frames), given the decode worker's current
// rolling performance report.
func (s *Skipper) ShouldDecode(report performance.PerformanceReport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.packetCounter++
	s.updateModeLocked(report)

	switch s.mode {
	case ModeSkip2:
		return s.packetCounter%2 == 0
	case ModeSkip3:
		return s.packetCounter%3 == 0
	default:
		return true
	}
}

func (s *Skipper) updateModeLocked(report performance.PerformanceReport) {
	avgDecode := time.Duration(report.AvgDecodeMs * float64(time.Millisecond))

	switch {
	case avgDecode > s.slowThreshold:
		s.consecutiveSlow++
		s.consecutiveGood = 0
	case avgDecode < s.goodThreshold:
		s.consecutiveGood++
		s.consecutiveSlow = 0
	default:
		s.consecutiveSlow = 0
		s.consecutiveGood = 0
	}

	switch s.mode {
	case ModeNormal:
		if s.consecutiveSlow >= s.enterSkip2After {
			s.mode = ModeSkip2
			s.consecutiveSlow = 0
			log.Printf("loadshed: decode falling behind, entering skip2")
		}
	case ModeSkip2:
		if s.consecutiveSlow >= s.enterSkip3After {
			s.mode = ModeSkip3
			s.consecutiveSlow = 0
			log.Printf("loadshed: still behind, entering skip3")
		} else if s.consecutiveGood >= s.exitToNormalAfter {
			s.mode = ModeNormal
			s.consecutiveGood = 0
			log.Printf("loadshed: recovered, returning to normal")
		}
	case ModeSkip3:
		if s.consecutiveGood >= s.exitToSkip2After {
			s.mode = ModeSkip2
			s.consecutiveGood = 0
			log.Printf("loadshed: improving, upgrading to skip2")
		}
	}
}

// Mode reports the current skip mode, for logging/diagnostics.
func (s *Skipper) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Reset returns the skipper to Normal mode, used when a seek invalidates
// the recent performance history.
func (s *Skipper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = ModeNormal
	s.packetCounter = 0
	s.consecutiveSlow = 0
	s.consecutiveGood = 0
}
