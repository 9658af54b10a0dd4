package media

import (
	"errors"
	"fmt"

	"github.com/asticode/go-astiav"

	"avplayer/pkg/avsync"
	"avplayer/pkg/clock"
)

// StreamDecoder turns the packets read for one stream into presentable
// Frames: FFmpeg decode, then a pixel-format conversion to I420 for video
// or a resample to S16 for audio (spec §4.2/§4.5). One StreamDecoder is
// never shared between the two streams — each owns its own scale/resample
// context, per spec §9's "audio callback and presenter never share a
// resampler/scaler instance" note.
type StreamDecoder struct {
	kind    StreamKind
	codec   *astiav.CodecContext
	timeBase astiav.Rational
	frame   *astiav.Frame

	// video-only
	scaler      *astiav.SoftwareScaleContext
	scaled      *astiav.Frame
	clk         *clock.Clock

	// audio-only
	resampler   *astiav.SoftwareResampleContext
	resampled   *astiav.Frame
	outSampleRate int
	outChannels   int
}

// NewVideoDecoder opens a decoder for params. The swscale context that
// converts each decoded frame to planar I420 (spec §6: "Convert pixel
// format (input pix_fmt → I420)") is created on the first decoded frame
// and re-created when the frame size changes. c is the
// shared clock, used by synchronize_video to track the predicted next
// frame PTS.
func NewVideoDecoder(params *astiav.CodecParameters, timeBase astiav.Rational, c *clock.Clock) (*StreamDecoder, error) {
	codec, err := openCodec(params)
	if err != nil {
		return nil, fmt.Errorf("media: open video decoder: %w", err)
	}
	return &StreamDecoder{
		kind:     StreamVideo,
		codec:    codec,
		timeBase: timeBase,
		frame:    astiav.AllocFrame(),
		clk:      c,
	}, nil
}

// NewAudioDecoder opens a decoder for params and prepares a resampler
// targeting outSampleRate/outChannels interleaved S16, the format the SDL
// audio device is opened with (spec §6's "resample to the output device's
// format").
func NewAudioDecoder(params *astiav.CodecParameters, timeBase astiav.Rational, outSampleRate, outChannels int) (*StreamDecoder, error) {
	codec, err := openCodec(params)
	if err != nil {
		return nil, fmt.Errorf("media: open audio decoder: %w", err)
	}
	resampler := astiav.AllocSoftwareResampleContext()
	if resampler == nil {
		codec.Free()
		return nil, fmt.Errorf("media: allocate resampler: out of memory")
	}
	return &StreamDecoder{
		kind:          StreamAudio,
		codec:         codec,
		timeBase:      timeBase,
		frame:         astiav.AllocFrame(),
		resampler:     resampler,
		resampled:     astiav.AllocFrame(),
		outSampleRate: outSampleRate,
		outChannels:   outChannels,
	}, nil
}

// channelLayoutFor maps the output device's channel count to the matching
// standard layout; the player only ever opens mono or stereo output.
func channelLayoutFor(channels int) astiav.ChannelLayout {
	if channels == 1 {
		return astiav.ChannelLayoutMono
	}
	return astiav.ChannelLayoutStereo
}

func openCodec(params *astiav.CodecParameters) (*astiav.CodecContext, error) {
	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		return nil, fmt.Errorf("no decoder for codec id %v", params.CodecID())
	}
	ctx := astiav.AllocCodecContext(decoder)
	if ctx == nil {
		return nil, fmt.Errorf("allocate codec context: out of memory")
	}
	if err := params.ToCodecContext(ctx); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("copy codec parameters: %w", err)
	}
	if err := ctx.Open(decoder, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("open codec: %w", err)
	}
	return ctx, nil
}

// Decode feeds pkt through the decoder and returns every frame it
// produced. A sentinel packet flushes the codec's internal buffers
// instead of decoding anything (spec §4.1's "decoder resets its internal
// state" on seek) and always returns no frames. skipConvert still submits
// the packet and drains every frame the decoder produces — required to
// keep reference-frame state correct for subsequent P/B frames — but
// discards each frame instead of converting and returning it, for
// SPEC_FULL.md §4.2's decode-skip load-shedding path (caller never pays
// for a scale/resample or a queue push on a skipped frame).
func (d *StreamDecoder) Decode(pkt *Packet, skipConvert bool) ([]*Frame, error) {
	if pkt.Sentinel() {
		d.codec.FlushBuffers()
		return nil, nil
	}

	if err := d.codec.SendPacket(pkt.Raw()); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, fmt.Errorf("media: send packet: %w", err)
	}
	return d.drain(skipConvert)
}

// Flush asks the decoder for any frames still buffered with no further
// input (end of stream), by sending a nil packet per FFmpeg's standard
// drain convention.
func (d *StreamDecoder) Flush() ([]*Frame, error) {
	_ = d.codec.SendPacket(nil)
	return d.drain(false)
}

func (d *StreamDecoder) drain(skipConvert bool) ([]*Frame, error) {
	var out []*Frame
	for {
		err := d.codec.ReceiveFrame(d.frame)
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("media: receive frame: %w", err)
		}

		if skipConvert {
			d.frame.Unref()
			continue
		}

		var frame *Frame
		if d.kind == StreamVideo {
			frame, err = d.convertVideo(d.frame)
		} else {
			frame, err = d.convertAudio(d.frame)
		}
		d.frame.Unref()
		if err != nil {
			return out, err
		}
		if frame != nil {
			out = append(out, frame)
		}
	}
	return out, nil
}

func (d *StreamDecoder) convertVideo(src *astiav.Frame) (*Frame, error) {
	if d.scaler == nil || src.Width() != d.scaled.Width() || src.Height() != d.scaled.Height() {
		if d.scaler != nil {
			d.scaler.Free()
			d.scaled.Free()
		}
		ssc, err := astiav.CreateSoftwareScaleContext(
			src.Width(), src.Height(), src.PixelFormat(),
			src.Width(), src.Height(), astiav.PixelFormatYuv420P,
			astiav.NewSoftwareScaleContextFlags(),
		)
		if err != nil {
			return nil, fmt.Errorf("media: create scaler: %w", err)
		}
		dst := astiav.AllocFrame()
		dst.SetWidth(src.Width())
		dst.SetHeight(src.Height())
		dst.SetPixelFormat(astiav.PixelFormatYuv420P)
		if err := dst.AllocBuffer(1); err != nil {
			dst.Free()
			ssc.Free()
			return nil, fmt.Errorf("media: allocate scaled frame buffer: %w", err)
		}
		d.scaler = ssc
		d.scaled = dst
	}

	if err := d.scaler.ScaleFrame(src, d.scaled); err != nil {
		return nil, fmt.Errorf("media: scale frame: %w", err)
	}

	w, h := d.scaled.Width(), d.scaled.Height()
	ls := d.scaled.Linesize()
	y, err := d.scaled.Data().Bytes(0)
	if err != nil {
		return nil, fmt.Errorf("media: read Y plane: %w", err)
	}
	u, err := d.scaled.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("media: read U plane: %w", err)
	}
	v, err := d.scaled.Data().Bytes(2)
	if err != nil {
		return nil, fmt.Errorf("media: read V plane: %w", err)
	}

	video := &VideoFrame{
		Width: w, Height: h,
		Y: append([]byte(nil), y...),
		U: append([]byte(nil), u...),
		V: append([]byte(nil), v...),
		StrideY: ls[0], StrideU: ls[1], StrideV: ls[2],
	}

	pts := 0.0
	if p := src.Pts(); p != astiav.NoPtsValue {
		pts = float64(p) * float64(d.timeBase.Num()) / float64(d.timeBase.Den())
	}
	frameDelay := avsync.FrameDelay(float64(d.timeBase.Num())/float64(d.timeBase.Den()), 0)
	finalPTS := avsync.SynchronizeVideo(d.clk, pts, frameDelay)

	return &Frame{Stream: StreamVideo, PTS: finalPTS, Video: video}, nil
}

func (d *StreamDecoder) convertAudio(src *astiav.Frame) (*Frame, error) {
	d.resampled.SetSampleRate(d.outSampleRate)
	d.resampled.SetChannelLayout(channelLayoutFor(d.outChannels))
	d.resampled.SetSampleFormat(astiav.SampleFormatS16)

	if err := d.resampler.ConvertFrame(src, d.resampled); err != nil {
		return nil, fmt.Errorf("media: resample audio: %w", err)
	}

	n, err := d.resampled.Data().Bytes(0)
	if err != nil {
		return nil, fmt.Errorf("media: read resampled PCM: %w", err)
	}
	pcm := append([]byte(nil), n...)

	pts := 0.0
	if p := src.Pts(); p != astiav.NoPtsValue {
		pts = float64(p) * float64(d.timeBase.Num()) / float64(d.timeBase.Den())
	}

	return &Frame{Stream: StreamAudio, PTS: pts, Audio: pcm, DataBytes: uint32(len(pcm))}, nil
}

// Close releases the codec context and any scale/resample state.
func (d *StreamDecoder) Close() {
	if d.scaler != nil {
		d.scaler.Free()
		d.scaler = nil
	}
	if d.scaled != nil {
		d.scaled.Free()
		d.scaled = nil
	}
	if d.resampler != nil {
		d.resampler.Free()
		d.resampler = nil
	}
	if d.resampled != nil {
		d.resampled.Free()
		d.resampled = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.codec != nil {
		d.codec.Free()
		d.codec = nil
	}
}
