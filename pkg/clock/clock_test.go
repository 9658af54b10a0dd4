package clock

import (
	"testing"
	"time"

	"avplayer/pkg/settings"
)

func TestGetAudioClockSubtractsUnplayedBuffer(t *testing.T) {
	c := New(settings.AudioMaster, 48000, 2, 2) // 192000 bytes/sec
	c.SetAudioClock(10.0)
	c.SetAudioBuf(192000, 0) // a full second still queued, none played

	got := c.GetAudioClock()
	if got < 8.99 || got > 9.01 {
		t.Fatalf("expected ~9.0s after subtracting 1s unplayed, got %v", got)
	}
}

func TestGetVideoClockExtrapolatesSinceLastFrame(t *testing.T) {
	c := New(settings.VideoMaster, 48000, 2, 2)
	c.SetVideoCurrent(5.0, time.Now().Add(-200*time.Millisecond))

	got := c.GetVideoClock()
	if got < 5.19 || got > 5.30 {
		t.Fatalf("expected ~5.2s extrapolated, got %v", got)
	}
}

func TestGetMasterClockDispatchesBySyncType(t *testing.T) {
	audio := New(settings.AudioMaster, 48000, 2, 2)
	audio.SetAudioClock(3.0)
	if got := audio.GetMasterClock(); got != 3.0 {
		t.Fatalf("expected audio master to report audio clock 3.0, got %v", got)
	}

	video := New(settings.VideoMaster, 48000, 2, 2)
	video.SetVideoCurrent(7.0, time.Time{})
	if got := video.GetMasterClock(); got != 7.0 {
		t.Fatalf("expected video master to report video clock 7.0, got %v", got)
	}
}

func TestResetVideoPacingClearsPacingAndVideoClock(t *testing.T) {
	c := New(settings.AudioMaster, 48000, 2, 2)
	c.FrameTimer = 1.23
	c.FrameLastPTS = 4.56
	c.FrameLastDelay = 0.04
	c.SetVideoClock(2.5)

	c.ResetVideoPacing()

	if c.FrameTimer != 0 || c.FrameLastPTS != 0 || c.FrameLastDelay != 0 {
		t.Fatalf("expected pacing accumulators cleared, got timer=%v pts=%v delay=%v",
			c.FrameTimer, c.FrameLastPTS, c.FrameLastDelay)
	}
	if c.VideoClock() != 0 {
		t.Fatalf("expected video_clock reset to 0, got %v", c.VideoClock())
	}
}

func TestResetAudioDiffClearsDriftState(t *testing.T) {
	c := New(settings.AudioMaster, 48000, 2, 2)
	c.AudioDiffCum = 9.9
	c.AudioDiffAvgCount = 7

	c.ResetAudioDiff()

	if c.AudioDiffCum != 0 || c.AudioDiffAvgCount != 0 {
		t.Fatalf("expected drift filter cleared, got cum=%v count=%v", c.AudioDiffCum, c.AudioDiffAvgCount)
	}
}
