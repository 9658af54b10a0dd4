package avsync

import (
	"testing"
	"time"

	"avplayer/pkg/clock"
	"avplayer/pkg/settings"
)

func newTestClock(sync settings.AVSyncType) *clock.Clock {
	return clock.New(sync, 48000, 2, 2)
}

func TestSynchronizeVideoUsesGivenPTS(t *testing.T) {
	c := newTestClock(settings.AudioMaster)
	pts := SynchronizeVideo(c, 1.5, 0.04)
	if pts != 1.5 {
		t.Fatalf("expected pts 1.5, got %v", pts)
	}
	if c.VideoClock() != 1.5+0.04 {
		t.Fatalf("expected video_clock advanced by frame delay, got %v", c.VideoClock())
	}
}

func TestSynchronizeVideoFallsBackToPredictedClock(t *testing.T) {
	c := newTestClock(settings.AudioMaster)
	c.SetVideoClock(2.0)
	pts := SynchronizeVideo(c, 0, 0.04)
	if pts != 2.0 {
		t.Fatalf("expected fallback pts 2.0, got %v", pts)
	}
	if c.VideoClock() != 2.04 {
		t.Fatalf("expected video_clock advanced, got %v", c.VideoClock())
	}
}

func TestSynchronizeVideoMonotonicWithMissingPTS(t *testing.T) {
	c := newTestClock(settings.AudioMaster)
	frameDelay := 1.0 / 25.0
	last := -1.0
	for i := 0; i < 9; i++ {
		var pts float64
		if i%3 == 0 {
			pts = float64(i) * frameDelay
		}
		out := SynchronizeVideo(c, pts, frameDelay)
		if out < last {
			t.Fatalf("pts went backwards: %v after %v", out, last)
		}
		last = out
	}
}

func TestSynchronizeAudioSkippedUnderAudioMaster(t *testing.T) {
	c := newTestClock(settings.AudioMaster)
	samples := make([]byte, 4096)
	out, res := SynchronizeAudio(c, samples, 48000, 4)
	if res.Size != len(samples) || res.Adjusted {
		t.Fatalf("expected passthrough under audio master, got %+v", res)
	}
	if len(out) != len(samples) {
		t.Fatalf("expected unchanged buffer length")
	}
}

func TestSynchronizeAudioResetsOnDiscontinuity(t *testing.T) {
	c := newTestClock(settings.VideoMaster)
	c.SetAudioClock(100.0)
	c.SetVideoCurrent(0.0, time.Now())

	samples := make([]byte, 4096)
	_, res := SynchronizeAudio(c, samples, 48000, 4)
	if !res.Reset {
		t.Fatalf("expected discontinuity reset when |diff| >= AVNoSyncThreshold, got %+v", res)
	}
}

func TestSynchronizeAudioClampsWithinTenPercent(t *testing.T) {
	c := newTestClock(settings.VideoMaster)
	// drive the EMA past the warmup window with a steady +50ms drift
	c.SetAudioClock(0.05)
	c.SetVideoCurrent(0.0, time.Now())

	samplesSize := 4096
	var out []byte
	var res SyncResult
	for i := 0; i < clock.AudioDiffAvgNB+5; i++ {
		samples := make([]byte, samplesSize)
		out, res = SynchronizeAudio(c, samples, 48000, 4)
	}

	if res.Size < int(float64(samplesSize)*0.9) || res.Size > int(float64(samplesSize)*1.1) {
		t.Fatalf("expected size within +/-10%% of %d, got %d", samplesSize, res.Size)
	}
	if len(out) != res.Size {
		t.Fatalf("returned buffer length %d does not match reported size %d", len(out), res.Size)
	}
}

func TestVideoPacingDelayFallsBackOnOutOfRange(t *testing.T) {
	c := newTestClock(settings.VideoMaster)
	c.FrameLastPTS = 1.0
	c.FrameLastDelay = 0.04
	delay := VideoPacingDelay(c, 1.0+2.0) // delay = 2.0 >= 1.0, should fall back
	if delay != 0.04 {
		t.Fatalf("expected fallback to frame_last_delay 0.04, got %v", delay)
	}
}

func TestVideoPacingDelayIdentityWhenVideoIsMaster(t *testing.T) {
	c := newTestClock(settings.VideoMaster)
	c.FrameLastPTS = 1.0
	c.FrameLastDelay = 0.04
	// audio clock ahead of video (inside the 10s window), would trigger
	// catch-up (delay 0) if video were not the master
	c.SetAudioClock(5.0)
	pts := 1.04
	delay := VideoPacingDelay(c, pts)
	if want := pts - 1.0; delay != want {
		t.Fatalf("expected natural delay %v unaffected when video is master, got %v", want, delay)
	}
}
