// Package player is the top-level orchestrator: it owns every queue,
// clock, decoder and worker goroutine described in spec §3/§5 and wires
// them into a single running session. Grounded on the teacher's
// main.go/root.RootGame composition root (owns window/renderer/game,
// Update/Draw/Close lifecycle), generalized from a single-file cgo
// decoder to the concurrent demux/decode/present/play-audio pipeline.
package player

import (
	"fmt"
	"log"
	"time"

	"github.com/veandco/go-sdl2/sdl"

	"avplayer/pkg/audioio"
	"avplayer/pkg/clock"
	"avplayer/pkg/control"
	"avplayer/pkg/loadshed"
	"avplayer/pkg/media"
	"avplayer/pkg/output"
	"avplayer/pkg/performance"
	"avplayer/pkg/presenter"
	"avplayer/pkg/queue"
	"avplayer/pkg/settings"
	"avplayer/pkg/sourcefetch"
)

const (
	bytesPerSample   = 2
	outputChannels   = 2
	defaultSampleHz  = 48000
	cacheDir         = "assets/cache"
	shutdownDrainCap = 1 * time.Second
)

// Player is a single playback session: one source, one window, one audio
// device, running until closed or the source is exhausted.
type Player struct {
	settings settings.Settings

	demux     *media.Demuxer
	videoDec  *media.StreamDecoder
	audioDec  *media.StreamDecoder
	hasAudio  bool

	videoPkts   *queue.Queue[*media.Packet]
	audioPkts   *queue.Queue[*media.Packet]
	videoFrames *queue.Queue[*media.Frame]
	audioFrames *queue.Queue[*media.Frame]

	clk  *clock.Clock
	out  *output.Output
	ctrl *control.Controller
	pres *presenter.Presenter
	aout *audioio.Producer
	perf *performance.PerformanceMonitor
	skip *loadshed.Skipper

	workersDone chan struct{}
}

// New opens source, probes its streams, brings up SDL2 output and wires
// every worker. A failure to resolve or open the source, bring up SDL2,
// open the window or open the video decoder is a construction failure
// (spec §2's "source does not exist or cannot be demuxed" non-goal
// boundary — treated as fatal, not retried). A failure to open the audio
// device or audio decoder is logged and the Player continues video-only.
func New(source string, s settings.Settings) (*Player, error) {
	path, err := sourcefetch.Resolve(source, cacheDir)
	if err != nil {
		return nil, fmt.Errorf("player: resolve source: %w", err)
	}

	demux, err := media.Open(path)
	if err != nil {
		return nil, fmt.Errorf("player: open source: %w", err)
	}

	sampleRate := defaultSampleHz
	channels := outputChannels

	clk := clock.New(s.SyncType, sampleRate, channels, bytesPerSample)

	if err := output.InitSDL(); err != nil {
		demux.Close()
		return nil, fmt.Errorf("player: init SDL2: %w", err)
	}

	vpar := demux.VideoCodecParameters()
	out, err := output.Open("avplayer", vpar.Width(), vpar.Height())
	if err != nil {
		demux.Close()
		return nil, fmt.Errorf("player: open output window: %w", err)
	}

	videoDec, err := media.NewVideoDecoder(vpar, demux.VideoTimeBase(), clk)
	if err != nil {
		out.Close()
		demux.Close()
		return nil, fmt.Errorf("player: open video decoder: %w", err)
	}

	p := &Player{
		settings:    s,
		demux:       demux,
		videoDec:    videoDec,
		hasAudio:    demux.HasAudio(),
		videoPkts:   queue.New[*media.Packet](s.MaxQueueSize),
		audioPkts:   queue.New[*media.Packet](s.MaxQueueSize),
		videoFrames: queue.New[*media.Frame](s.MaxQueueSize),
		audioFrames: queue.New[*media.Frame](s.MaxQueueSize),
		clk:         clk,
		out:         out,
		ctrl:        control.New(s.SeekShortSeconds, s.SeekLongSeconds),
		perf:        performance.NewMonitor(120),
		skip:        loadshed.New(),
		workersDone: make(chan struct{}),
	}

	if p.hasAudio {
		if err := out.OpenAudio(sampleRate, channels); err != nil {
			log.Printf("player: open audio device failed, continuing video-only: %v", err)
			p.hasAudio = false
		} else {
			audioDec, err := media.NewAudioDecoder(demux.AudioCodecParameters(), demux.AudioTimeBase(), sampleRate, channels)
			if err != nil {
				log.Printf("player: open audio decoder failed, continuing video-only: %v", err)
				p.hasAudio = false
			} else {
				p.audioDec = audioDec
			}
		}
	}

	p.pres = presenter.New(out, p.videoFrames, clk, s, p.perf)
	p.pres.OnTick = p.pollEvents
	if p.hasAudio {
		p.aout = audioio.New(out, p.audioFrames, clk, s, sampleRate, channels)
	}

	return p, nil
}

// Run starts every worker goroutine and then blocks, running the
// presentation loop on the calling goroutine (spec §5: SDL2 calls —
// window, renderer, event pump — all happen on one thread). Callers must
// have already called runtime.LockOSThread, matching the teacher's
// main.go discipline. Run returns once a quit event or end-of-stream
// drain completes.
func (p *Player) Run() error {
	go p.demuxLoop()
	go p.decodeLoop(p.videoPkts, p.videoFrames, p.videoDec, true)
	if p.hasAudio {
		go p.decodeLoop(p.audioPkts, p.audioFrames, p.audioDec, false)
		go p.aout.Run()
	}

	p.pres.Run()
	return nil
}

func (p *Player) pollEvents() {
	for _, event := range p.out.PollEvents() {
		p.ctrl.Translate(event)
	}
	if p.ctrl.CloseRequested() {
		p.pres.Stop()
	}
}

// demuxLoop reads packets and routes them to the right decode worker's
// queue, and services armed seek requests (spec §4.1/§4.6).
func (p *Player) demuxLoop() {
	defer close(p.workersDone)
	for {
		if p.ctrl.CloseRequested() {
			return
		}

		if delta, ok := p.ctrl.Seek.TakeIfArmed(); ok {
			p.performSeek(delta)
		}

		pkt, err := p.demux.ReadPacket()
		if err != nil {
			log.Printf("player: demux ended: %v", err)
			// original_source/player.cc sets is_close on av_read_frame EOF
			// so every other worker observes it and exits (spec §4.1 step
			// 2, §5, §8's "all five threads terminate within 2s").
			p.ctrl.SetClose()
			p.drainDecoders()
			return
		}

		switch pkt.Stream {
		case media.StreamVideo:
			p.videoPkts.Push(pkt)
		case media.StreamAudio:
			if p.hasAudio {
				p.audioPkts.Push(pkt)
			} else {
				pkt.Release()
			}
		}
	}
}

// performSeek implements spec §4.1 step 1: clamp the target, ask the
// demuxer to seek, then flush each stream's packet queue *and* frame
// queue and push a flush sentinel onto the packet queue so the decoder
// resets its codec buffers. If the seek fails, nothing is flushed and
// playback continues where it was. Flushing the frame queues too (not just the packet
// queues) is required so no already-decoded pre-seek frame is presented
// after the seek (spec §8 Scenario 2: the first presented frame must
// have pts >= target).
func (p *Player) performSeek(deltaSeconds float64) {
	target := p.clk.GetMasterClock() + deltaSeconds
	if target < 0 {
		target = 0
	}
	if dur := p.demux.Duration(); dur > 0 && target > dur {
		target = dur
	}

	if err := p.demux.Seek(target); err != nil {
		log.Printf("player: seek to %.2fs failed: %v", target, err)
		return
	}

	p.videoPkts.Flush()
	p.audioPkts.Flush()
	p.videoFrames.Flush()
	p.audioFrames.Flush()
	p.videoPkts.PushSentinel(media.FlushSentinel(media.StreamVideo))
	if p.hasAudio {
		p.audioPkts.PushSentinel(media.FlushSentinel(media.StreamAudio))
	}
	p.skip.Reset()
}

func (p *Player) drainDecoders() {
	if frames, err := p.videoDec.Flush(); err == nil {
		for _, f := range frames {
			p.videoFrames.Push(f)
		}
	}
	if p.hasAudio {
		if frames, err := p.audioDec.Flush(); err == nil {
			for _, f := range frames {
				p.audioFrames.Push(f)
			}
		}
	}
}

// decodeLoop is C2/C3: pop packets, decode, push resulting frames (spec
// §4.2). isVideo gates the decode-skip load shedder, which only applies
// to video (audio must never drop samples or drift accumulates). Every
// packet is always submitted to the decoder — skipping submission would
// leave the decoder's reference-frame state out of sync for subsequent
// P/B frames — the shedder only skips the convert+enqueue step for the
// frames that decode produces (SPEC_FULL.md §4.2).
func (p *Player) decodeLoop(pkts *queue.Queue[*media.Packet], frames *queue.Queue[*media.Frame], dec *media.StreamDecoder, isVideo bool) {
	streamKind := media.StreamAudio
	if isVideo {
		streamKind = media.StreamVideo
	}

	for {
		pkt, ok := pkts.Pop(time.Duration(p.settings.QueueWaitTimeoutMs) * time.Millisecond)
		if !ok {
			if p.ctrl.CloseRequested() {
				return
			}
			continue
		}

		sentinel := pkt.Sentinel()
		skipConvert := isVideo && !sentinel && !p.skip.ShouldDecode(p.perf.GetReport())

		start := time.Now()
		out, err := dec.Decode(pkt, skipConvert)
		pkt.Release()

		if isVideo && !sentinel {
			if skipConvert {
				p.perf.RecordFrameDropped()
			} else {
				p.perf.RecordFrameDecode(time.Since(start))
			}
		}
		if err != nil {
			log.Printf("player: decode error: %v", err)
			continue
		}

		for _, f := range out {
			if isVideo {
				f.DecodedAt = time.Now()
			}
			frames.Push(f)
		}

		if sentinel {
			// Propagate the flush into the frame queue so the presenter/
			// audio producer reset their own pacing/drift state at the
			// point they actually start consuming post-seek frames,
			// rather than racing with the demuxer goroutine's seek call.
			frames.PushSentinel(media.FrameSentinel(streamKind))
		}
	}
}

// Close performs the cooperative shutdown described in spec §5: stop
// accepting new work, drain queues, join workers, then release codec and
// output resources.
func (p *Player) Close() {
	select {
	case <-p.workersDone:
	case <-time.After(shutdownDrainCap):
	}

	if p.hasAudio && p.aout != nil {
		p.aout.Stop()
	}

	p.videoPkts.Close()
	p.audioPkts.Close()
	p.videoFrames.Close()
	p.audioFrames.Close()

	p.videoDec.Close()
	if p.audioDec != nil {
		p.audioDec.Close()
	}
	p.demux.Close()
	p.out.Close()
	sdl.Quit()
}
