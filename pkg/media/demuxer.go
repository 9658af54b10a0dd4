// Package media wraps github.com/asticode/go-astiav's demux/decode/scale/
// resample surface behind the Packet/Frame types the rest of the player
// queues and consumes. Grounded on other_examples/4b67db9f_njyeung-reels
// (demuxer shape) and original_source/player.cc (decode_packet, PTS math,
// seek semantics).
package media

import (
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
)

// Demuxer owns the input's format context and the two streams the player
// cares about (spec §2: "exactly one video stream and, optionally, one
// audio stream"). Extra streams of either kind, or of any other media
// type, are read past and discarded.
type Demuxer struct {
	formatCtx *astiav.FormatContext

	videoStream *astiav.Stream
	audioStream *astiav.Stream
	videoIdx    int
	audioIdx    int

	mu     sync.Mutex
	closed bool
}

// Open probes source (a local path or an already-staged file; s3:// URLs
// are resolved to a local path by pkg/sourcefetch before reaching here)
// and selects the first video stream and first audio stream it finds.
func Open(source string) (*Demuxer, error) {
	d := &Demuxer{videoIdx: -1, audioIdx: -1}

	d.formatCtx = astiav.AllocFormatContext()
	if d.formatCtx == nil {
		return nil, fmt.Errorf("media: allocate format context: out of memory")
	}

	if err := d.formatCtx.OpenInput(source, nil, nil); err != nil {
		d.formatCtx.Free()
		return nil, fmt.Errorf("media: open %q: %w", source, err)
	}

	if err := d.formatCtx.FindStreamInfo(nil); err != nil {
		d.Close()
		return nil, fmt.Errorf("media: probe %q: %w", source, err)
	}

	for _, stream := range d.formatCtx.Streams() {
		switch stream.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if d.videoIdx == -1 {
				d.videoIdx = stream.Index()
				d.videoStream = stream
			}
		case astiav.MediaTypeAudio:
			if d.audioIdx == -1 {
				d.audioIdx = stream.Index()
				d.audioStream = stream
			}
		}
	}

	if d.videoIdx == -1 {
		d.Close()
		return nil, fmt.Errorf("media: %q has no video stream", source)
	}

	return d, nil
}

// HasAudio reports whether an audio stream was found (spec §2: audio is
// optional; a video-only source still plays, just without C5/audio-master
// sync being meaningful).
func (d *Demuxer) HasAudio() bool { return d.audioIdx != -1 }

// VideoIndex and AudioIndex report the stream indices ReadPacket's
// returned packets are tagged against. AudioIndex is -1 when HasAudio is
// false.
func (d *Demuxer) VideoIndex() int { return d.videoIdx }
func (d *Demuxer) AudioIndex() int { return d.audioIdx }

func (d *Demuxer) VideoCodecParameters() *astiav.CodecParameters {
	return d.videoStream.CodecParameters()
}

func (d *Demuxer) AudioCodecParameters() *astiav.CodecParameters {
	if d.audioStream == nil {
		return nil
	}
	return d.audioStream.CodecParameters()
}

func (d *Demuxer) VideoTimeBase() astiav.Rational { return d.videoStream.TimeBase() }

func (d *Demuxer) AudioTimeBase() astiav.Rational {
	if d.audioStream == nil {
		return astiav.NewRational(0, 1)
	}
	return d.audioStream.TimeBase()
}

func (d *Demuxer) VideoFrameRate() astiav.Rational { return d.videoStream.AvgFrameRate() }

// ReadPacket reads the next demuxed packet and deep-copies it into a
// Packet the caller owns (spec §4.1 step 3). The returned Packet's Stream
// field identifies which decoder worker's queue it belongs on; packets from
// streams other than the selected video/audio pair are freed here and
// ReadPacket is retried internally so callers never see them.
func (d *Demuxer) ReadPacket() (*Packet, error) {
	raw := astiav.AllocPacket()
	defer raw.Free()

	for {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return nil, fmt.Errorf("media: demuxer closed")
		}
		err := d.formatCtx.ReadFrame(raw)
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}

		var kind StreamKind
		switch raw.StreamIndex() {
		case d.videoIdx:
			kind = StreamVideo
		case d.audioIdx:
			kind = StreamAudio
		default:
			raw.Unref()
			continue
		}

		pkt, err := newPacket(raw, kind)
		raw.Unref()
		if err != nil {
			return nil, fmt.Errorf("media: copy packet: %w", err)
		}
		return pkt, nil
	}
}

// Seek implements spec §4.6's interactive seek: position is an absolute
// timestamp in seconds from the start of the stream, clamped by the
// caller to [0, duration]. Seeking is always "backward to the nearest
// keyframe at or before position" (AVSEEK_FLAG_BACKWARD), matching
// original_source/player.cc's stream_seek, so decoding can resume cleanly
// without requiring every frame to be a keyframe.
func (d *Demuxer) Seek(positionSeconds float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("media: demuxer closed")
	}

	tb := d.videoStream.TimeBase()
	ts := astiav.RescaleQ(int64(positionSeconds*1e6), astiav.NewRational(1, 1000000), tb)

	if err := d.formatCtx.SeekFrame(d.videoIdx, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("media: seek to %.3fs: %w", positionSeconds, err)
	}
	return nil
}

// Duration reports the container's declared duration in seconds, 0 if
// unknown.
func (d *Demuxer) Duration() float64 {
	dur := d.formatCtx.Duration()
	if dur <= 0 {
		return 0
	}
	return float64(dur) / float64(astiav.TimeBase)
}

func (d *Demuxer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	if d.formatCtx != nil {
		d.formatCtx.CloseInput()
		d.formatCtx.Free()
		d.formatCtx = nil
	}
}
