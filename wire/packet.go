package wire

import (
	"fmt"

	"github.com/vexholt/netstack-go/addr"
)

// Packet is the L3 protocol data unit. TTL is mutable: routers
// decrement it by exactly one per hop.
type Packet struct {
	SrcVIP  addr.VIP
	DstVIP  addr.VIP
	TTL     int
	Segment []byte // the embedded, already-encoded Segment
}

// Encode serializes the packet to its wire representation.
func (p Packet) Encode() []byte {
	w := &writer{}
	w.writeString(string(p.SrcVIP))
	w.writeString(string(p.DstVIP))
	w.writeUint32(uint32(int32(p.TTL)))
	w.writeUint32(uint32(len(p.Segment)))
	w.writeBytes(p.Segment)
	return w.bytes()
}

// DecodePacket deserializes a packet. A non-nil error means the bytes
// are truncated or malformed.
func DecodePacket(data []byte) (Packet, error) {
	r := newReader(data)

	srcVIP, err := r.readString()
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode packet: %w", err)
	}
	dstVIP, err := r.readString()
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode packet: %w", err)
	}
	ttlRaw, err := r.readUint32()
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode packet: %w", err)
	}
	segLen, err := r.readUint32()
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode packet: %w", err)
	}
	seg, err := r.readBytes(int(segLen))
	if err != nil {
		return Packet{}, fmt.Errorf("wire: decode packet: %w", err)
	}

	return Packet{
		SrcVIP:  addr.VIP(srcVIP),
		DstVIP:  addr.VIP(dstVIP),
		TTL:     int(int32(ttlRaw)),
		Segment: append([]byte(nil), seg...),
	}, nil
}
