// Package clock reconciles the three independent time sources a media
// player juggles: the audio hardware's playback position, the video
// presenter's wall-clock-since-last-frame estimate, and plain system time.
// Grounded on original_source/player.cc's get_audio_clock / get_video_clock
// / get_external_clock.
package clock

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"avplayer/pkg/settings"
)

// Clock holds the shared, cross-goroutine clock state described in spec §3.
// audio_clock and the audio buffer counters are written by the audio
// callback goroutine and read from the presenter goroutine (and vice
// versa for video fields), so they live behind atomics; video_current_pts*
// are single-writer (presenter only) per spec §5 and are read by other
// goroutines as a possibly one-frame-stale snapshot, which the design
// accepts.
type Clock struct {
	syncType settings.AVSyncType

	audioClockBits  atomic.Uint64 // math.Float64bits(audio_clock)
	audioBufSize    atomic.Uint32
	audioBufIndex   atomic.Uint32
	channels        int
	bytesPerSample  int
	sampleRate      int

	mu                  sync.Mutex
	videoCurrentPTS     float64
	videoCurrentPTSTime time.Time

	// frame pacing accumulators, owned exclusively by the presenter.
	FrameTimer     float64
	FrameLastPTS   float64
	FrameLastDelay float64

	// video_clock: predicted PTS of the next decoded video frame, owned by
	// the video decoder worker (single writer, spec §4.2).
	videoClockMu sync.Mutex
	videoClock   float64

	// audio drift EMA state, owned exclusively by the audio callback.
	AudioDiffCum       float64
	AudioDiffAvgCount  int
	AudioDiffAvgCoef   float64
	AudioDiffThreshold float64
}

const (
	// AudioDiffAvgNB is the number of frames over which the EMA half-life
	// is tuned (spec §4.5).
	AudioDiffAvgNB = 10
	// AVNoSyncThreshold disables drift correction when audio/master drift
	// exceeds this many seconds — treated as a discontinuity, not drift.
	AVNoSyncThreshold = 10.0
)

// New creates a Clock for an audio stream with the given format, used to
// convert the SDL audio buffer's remaining byte count into seconds
// (spec §4.3's get_audio_clock subtraction term).
func New(syncType settings.AVSyncType, sampleRate, channels, bytesPerSample int) *Clock {
	c := &Clock{
		syncType:       syncType,
		channels:       channels,
		bytesPerSample: bytesPerSample,
		sampleRate:     sampleRate,
	}
	c.AudioDiffAvgCoef = math.Exp(math.Log(0.01) / AudioDiffAvgNB)
	// audio_diff_threshold defaults to a fixed 50ms; SetAudioDiffThreshold
	// can override it.
	c.AudioDiffThreshold = 0.05
	return c
}

// SetAudioDiffThreshold overrides the drift-significance threshold, used
// once the real SDL callback buffer size (in samples) is known.
func (c *Clock) SetAudioDiffThreshold(seconds float64) {
	c.AudioDiffThreshold = seconds
}

// SetAudioClock records the PTS of the audio frame currently being handed
// to the output device (spec §3's audio_clock).
func (c *Clock) SetAudioClock(pts float64) {
	c.audioClockBits.Store(math.Float64bits(pts))
}

// SetAudioBuf records how much of the current resampled buffer has been
// produced (Size) and consumed (Index) so GetAudioClock can subtract the
// not-yet-played duration.
func (c *Clock) SetAudioBuf(size, index uint32) {
	c.audioBufSize.Store(size)
	c.audioBufIndex.Store(index)
}

// GetAudioClock implements spec §4.3's get_audio_clock.
func (c *Clock) GetAudioClock() float64 {
	audioClock := math.Float64frombits(c.audioClockBits.Load())
	bufSize := c.audioBufSize.Load()
	bufIndex := c.audioBufIndex.Load()

	bytesPerSecond := float64(c.channels * c.bytesPerSample * c.sampleRate)
	if bytesPerSecond == 0 {
		return audioClock
	}
	unplayed := float64(bufSize-bufIndex) / bytesPerSecond
	return audioClock - unplayed
}

// SetVideoCurrent records the last presented video frame's PTS and the
// wall-clock time it was presented at. Called only by the presenter.
func (c *Clock) SetVideoCurrent(pts float64, at time.Time) {
	c.mu.Lock()
	c.videoCurrentPTS = pts
	c.videoCurrentPTSTime = at
	c.mu.Unlock()
}

// GetVideoClock implements spec §4.3's get_video_clock.
func (c *Clock) GetVideoClock() float64 {
	c.mu.Lock()
	pts, at := c.videoCurrentPTS, c.videoCurrentPTSTime
	c.mu.Unlock()
	if at.IsZero() {
		return pts
	}
	return pts + time.Since(at).Seconds()
}

// GetExternalClock implements spec §4.3's get_external_clock: the system
// wall clock as Unix time in seconds (time.Now()), not anchored at process
// or Clock creation.
func (c *Clock) GetExternalClock() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// GetMasterClock dispatches by the configured sync type (spec §4.3).
func (c *Clock) GetMasterClock() float64 {
	switch c.syncType {
	case settings.VideoMaster:
		return c.GetVideoClock()
	case settings.ExternalMaster:
		return c.GetExternalClock()
	default:
		return c.GetAudioClock()
	}
}

// SyncType reports the configured master-clock selector.
func (c *Clock) SyncType() settings.AVSyncType {
	return c.syncType
}

// VideoClock returns the decoder's predicted next-frame PTS, used by
// synchronize_video when an incoming frame carries no timestamp.
func (c *Clock) VideoClock() float64 {
	c.videoClockMu.Lock()
	defer c.videoClockMu.Unlock()
	return c.videoClock
}

// SetVideoClock updates the decoder's predicted next-frame PTS.
func (c *Clock) SetVideoClock(pts float64) {
	c.videoClockMu.Lock()
	c.videoClock = pts
	c.videoClockMu.Unlock()
}

// ResetAudioDiff clears the EMA drift-filter state, used on seek and when
// a discontinuity (|diff| >= AVNoSyncThreshold) is observed.
func (c *Clock) ResetAudioDiff() {
	c.AudioDiffCum = 0
	c.AudioDiffAvgCount = 0
}

// ResetVideoPacing clears the presenter's frame-pacing accumulators and
// the decoder's predicted next-frame clock, called by the presenter
// itself on its own flush sentinel so a seek discontinuity never leaks
// stale pre-seek pacing into post-seek frames (spec §3's "reset
// consistently on seek" invariant, spec §4.4). FrameTimer/FrameLastPTS/
// FrameLastDelay are presenter-owned; video_clock is reset here too since
// the decoder worker that owned it has itself just been flushed.
func (c *Clock) ResetVideoPacing() {
	c.FrameTimer = 0
	c.FrameLastPTS = 0
	c.FrameLastDelay = 0
	c.SetVideoClock(0)
}
