package media

import "github.com/asticode/go-astiav"

// StreamKind tags which of the two streams a packet or frame belongs to.
type StreamKind int

const (
	StreamVideo StreamKind = iota
	StreamAudio
)

func (k StreamKind) String() string {
	if k == StreamVideo {
		return "video"
	}
	return "audio"
}

// Packet is the owned handle the demuxer hands to a decoder worker's
// packet queue (spec §3). A zero-value pkt with sentinel set is the flush
// sentinel: an identity-distinguished marker, never a real packet.
type Packet struct {
	raw      *astiav.Packet
	Stream   StreamKind
	sentinel bool
}

// newPacket deep-copies src so the queue owns data independent of the
// demuxer's reusable read buffer (spec §4.1 step 3: "deep-copy it").
func newPacket(src *astiav.Packet, stream StreamKind) (*Packet, error) {
	clone := astiav.AllocPacket()
	if err := clone.Ref(src); err != nil {
		clone.Free()
		return nil, err
	}
	return &Packet{raw: clone, Stream: stream}, nil
}

// FlushSentinel builds the distinguished flush marker for stream.
func FlushSentinel(stream StreamKind) *Packet {
	return &Packet{Stream: stream, sentinel: true}
}

// Sentinel implements queue.Item.
func (p *Packet) Sentinel() bool { return p.sentinel }

// Release implements queue.Item: frees the underlying AVPacket, if any.
func (p *Packet) Release() {
	if p.raw != nil {
		p.raw.Free()
		p.raw = nil
	}
}

// Raw exposes the underlying astiav.Packet for decoding. Returns nil for
// the flush sentinel.
func (p *Packet) Raw() *astiav.Packet { return p.raw }
