// Package audioio is C5 (spec §4.5): the worker that pulls decoded,
// resampled audio frames off the audio frame queue, applies
// synchronize_audio's drift correction, and feeds the SDL audio device.
// Grounded on original_source/player.cc's audioDataRead/audioCallback,
// adapted from SDL2's pull callback model to a push-queue producer
// goroutine (see pkg/output.OpenAudio's doc comment for why).
package audioio

import (
	"log"
	"time"

	"avplayer/pkg/avsync"
	"avplayer/pkg/clock"
	"avplayer/pkg/media"
	"avplayer/pkg/output"
	"avplayer/pkg/queue"
	"avplayer/pkg/settings"
)

const (
	bytesPerSample = 2 // S16
	maxQueuedAhead = 4 * 4096 * 2
)

// Producer owns the audio output device and the single resampled-PCM
// queue it drains.
type Producer struct {
	out        *output.Output
	frames     *queue.Queue[*media.Frame]
	clk        *clock.Clock
	settings   settings.Settings
	sampleRate int
	channels   int

	stop chan struct{}
	done chan struct{}
}

// New constructs a Producer targeting the opened audio device's real
// format (sampleRate/channels, which may differ from the stream's
// original format once resampled).
func New(out *output.Output, frames *queue.Queue[*media.Frame], clk *clock.Clock, s settings.Settings, sampleRate, channels int) *Producer {
	return &Producer{
		out:        out,
		frames:     frames,
		clk:        clk,
		settings:   s,
		sampleRate: sampleRate,
		channels:   channels,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run feeds the SDL audio device until Stop is called; a closed, drained
// frame queue does not end it. Intended to run in its own goroutine
// (spec §5's C5).
func (p *Producer) Run() {
	defer close(p.done)
	bytesPerFrame := bytesPerSample * p.channels

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		if p.out.QueuedAudioSize() > maxQueuedAhead {
			time.Sleep(5 * time.Millisecond)
			continue
		}

		frame, ok := p.frames.Pop(time.Duration(p.settings.QueueWaitTimeoutMs) * time.Millisecond)
		if !ok {
			select {
			case <-p.stop:
				return
			default:
				continue
			}
		}
		if frame.Sentinel() {
			// The audio decoder worker pushes this right after flushing its
			// codec buffers on a seek; clear the drift EMA here since this
			// producer is the sole owner/writer of that state (spec §3's
			// "reset consistently on seek" invariant).
			p.clk.ResetAudioDiff()
			continue
		}

		pcm := frame.Audio
		p.clk.SetAudioClock(frame.PTS)

		adjusted, result := avsync.SynchronizeAudio(p.clk, pcm, p.sampleRate, bytesPerFrame)
		if result.Reset {
			log.Printf("audioio: clock discontinuity, resetting drift filter")
		}

		if err := p.out.QueueAudio(adjusted); err != nil {
			log.Printf("audioio: queue audio: %v", err)
		}
		// bufSize/bufIndex track bytes still sitting in the device's queue
		// so GetAudioClock can subtract the not-yet-played duration
		// (spec §4.3); unlike ffplay's single hardware ring buffer, the
		// relevant count is now whatever SDL reports system-wide.
		p.clk.SetAudioBuf(p.out.QueuedAudioSize(), 0)
		frame.Release()
	}
}

// Stop asks Run to exit and blocks until it has. Safe to call once.
func (p *Producer) Stop() {
	close(p.stop)
	<-p.done
}
