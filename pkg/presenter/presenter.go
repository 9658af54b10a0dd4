// Package presenter is C4 (spec §4.4): the video presentation loop that
// paces decoded frames against the master clock and uploads/presents
// them through pkg/output. Grounded on original_source/player.cc's
// video_refresh_timer/schedule_refresh pacing logic, re-expressed as a
// plain goroutine loop instead of an SDL user-event timer callback, since
// Go has no equivalent of SDL_AddTimer without a spinning goroutine of
// its own — this loop plays that role directly.
package presenter

import (
	"log"
	"time"

	"avplayer/pkg/avsync"
	"avplayer/pkg/clock"
	"avplayer/pkg/media"
	"avplayer/pkg/output"
	"avplayer/pkg/performance"
	"avplayer/pkg/queue"
	"avplayer/pkg/settings"
)

const perfLogInterval = 5 * time.Second

// Presenter drains the video frame queue, paces each frame against the
// master clock, uploads it to the output texture and presents it.
type Presenter struct {
	out      *output.Output
	frames   *queue.Queue[*media.Frame]
	clk      *clock.Clock
	settings settings.Settings
	perf     *performance.PerformanceMonitor
	start    time.Time
	lastPerfLog time.Time

	stop chan struct{}
	done chan struct{}

	// OnTick, if set, runs once per loop iteration before the pacing
	// sleep. Used by pkg/player to poll and translate SDL events on the
	// same OS thread as every other SDL2 call, since Run already owns
	// that thread for the whole session (spec §5's single-render-thread
	// requirement).
	OnTick func()
}

func New(out *output.Output, frames *queue.Queue[*media.Frame], clk *clock.Clock, s settings.Settings, perf *performance.PerformanceMonitor) *Presenter {
	return &Presenter{
		out:      out,
		frames:   frames,
		clk:      clk,
		settings: s,
		perf:     perf,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run is the presentation loop (spec §4.4 steps 1-7). Intended to run on
// whichever goroutine owns SDL2's renderer calls; callers that require
// all SDL2 calls on the main OS thread should invoke Run there directly
// rather than via `go`.
func (p *Presenter) Run() {
	defer close(p.done)
	p.start = time.Now()
	p.lastPerfLog = p.start
	p.clk.FrameTimer = 0

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if p.OnTick != nil {
			p.OnTick()
		}

		frame, ok := p.frames.Pop(time.Duration(p.settings.QueueWaitTimeoutMs) * time.Millisecond)
		if !ok {
			continue
		}
		if frame.Sentinel() {
			// The video decoder worker pushes this right after flushing its
			// codec buffers on a seek (pkg/player.decodeLoop); reset here,
			// not in the demuxer goroutine that requested the seek, so
			// pacing state only resets once we are actually about to
			// present a post-seek frame (spec §3's "reset consistently on
			// seek" invariant).
			p.clk.ResetVideoPacing()
			p.start = time.Now()
			continue
		}

		delay := avsync.VideoPacingDelay(p.clk, frame.PTS)
		actual := avsync.ActualDelay(p.clk, delay, time.Since(p.start).Seconds())
		time.Sleep(time.Duration(actual * float64(time.Second)))

		renderStart := time.Now()
		if err := p.out.UpdateFrame(frame.Video.Width, frame.Video.Height,
			frame.Video.Y, frame.Video.U, frame.Video.V,
			frame.Video.StrideY, frame.Video.StrideU, frame.Video.StrideV); err != nil {
			log.Printf("presenter: upload frame: %v", err)
			frame.Release()
			continue
		}
		if err := p.out.Present(); err != nil {
			log.Printf("presenter: present: %v", err)
		}
		p.clk.SetVideoCurrent(frame.PTS, time.Now())

		if p.perf != nil {
			p.perf.RecordFrameRender(time.Since(renderStart))
			if !frame.DecodedAt.IsZero() {
				p.perf.RecordTotalFrameTime(time.Since(frame.DecodedAt))
			}
			p.logPerformance()
		}

		frame.Release()
	}
}

// logPerformance mirrors the teacher's periodic performance log
// (screens/videoPlayer/screen.go's logPerformanceMetrics), emitted every
// perfLogInterval rather than on every frame.
func (p *Presenter) logPerformance() {
	now := time.Now()
	if now.Sub(p.lastPerfLog) < perfLogInterval {
		return
	}
	p.lastPerfLog = now

	report := p.perf.GetReport()
	status := "OK"
	if !report.IsHealthy {
		status = "DEGRADED"
	}
	if p.perf.IsPerformanceDegrading() {
		status = "WARNING"
	}
	log.Printf("presenter: performance[%s] decode=%.2fms render=%.2fms total=%.2fms frames=%d drops=%d (%.1f%%) uptime=%ds",
		status, report.AvgDecodeMs, report.AvgRenderMs, report.AvgTotalMs,
		report.TotalFrames, report.DroppedFrames, report.DropRate, report.UptimeSeconds)
}

// Stop asks Run to exit and blocks until it has. Safe to call once.
func (p *Presenter) Stop() {
	close(p.stop)
	<-p.done
}
