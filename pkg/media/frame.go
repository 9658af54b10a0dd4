package media

import "time"

// VideoFrame is a decoded, I420-converted picture (spec §6: "Convert pixel
// format (input pix_fmt → I420)").
type VideoFrame struct {
	Width, Height int
	Y, U, V       []byte
	StrideY       int
	StrideU       int
	StrideV       int
}

// Frame is the queue element handed from a decoder worker to the presenter
// or audio callback (spec §3). Exactly one of Video/Audio is populated,
// unless this is a flush sentinel, in which case neither is.
type Frame struct {
	Stream    StreamKind
	PTS       float64
	DataBytes uint32

	// DecodedAt is when the decoder worker finished producing this frame,
	// used by the presenter to track decode-to-present latency.
	DecodedAt time.Time

	Video *VideoFrame
	Audio []byte // resampled S16 PCM for audio frames

	sentinel  bool
	released  bool
	onRelease func()
}

// FrameSentinel builds the distinguished flush marker a decoder worker
// pushes into its own frame queue right after resetting its codec buffers
// on a seek, so the presenter/audio producer can reset their own
// pacing/drift state at the point they actually start consuming
// post-seek frames (spec §3's "reset consistently on seek" invariant).
func FrameSentinel(stream StreamKind) *Frame {
	return &Frame{Stream: stream, sentinel: true}
}

// Sentinel implements queue.Item.
func (f *Frame) Sentinel() bool { return f.sentinel }

// Release implements queue.Item. Idempotent, since both the queue
// (overflow/flush) and the last consumer may call it (spec §9's open
// question on buffer ownership: release happens exactly once).
func (f *Frame) Release() {
	if f.released {
		return
	}
	f.released = true
	if f.onRelease != nil {
		f.onRelease()
	}
}
