package wire

import (
	"fmt"

	"github.com/vexholt/netstack-go/addr"
)

// Segment flag bits within the leading flags byte.
const (
	flagSeqNum  = 1 << 0
	flagIsAck   = 1 << 1
	flagMore    = 1 << 2
	flagFin     = 1 << 3
)

// SegmentPayload is the structured content carried by a Segment: the
// originating endpoint, its destination port on the receiver, the
// chunk of data (empty for ACK/FIN segments), and the More/Fin flags
// that drive the transport's reassembly and teardown state machines.
type SegmentPayload struct {
	SrcVIP  addr.VIP
	SrcPort addr.Port
	DstPort addr.Port
	Data    []byte
	More    bool
	Fin     bool
}

// Segment is the L4 protocol data unit: an alternating sequence bit,
// an ACK discriminant, and the payload above. Data, ACK, and FIN are
// all this one shape, distinguished by IsAck and Payload.Fin — the
// wire format needs exactly one layout, so this is not modeled as a Go
// sum type.
type Segment struct {
	SeqNum  uint8 // 0 or 1
	IsAck   bool
	Payload SegmentPayload
}

// Encode serializes the segment to its wire representation.
func (s Segment) Encode() []byte {
	var flags byte
	if s.SeqNum != 0 {
		flags |= flagSeqNum
	}
	if s.IsAck {
		flags |= flagIsAck
	}
	if s.Payload.More {
		flags |= flagMore
	}
	if s.Payload.Fin {
		flags |= flagFin
	}

	w := &writer{}
	w.writeByte(flags)
	w.writeUint16(uint16(s.Payload.SrcPort))
	w.writeUint16(uint16(s.Payload.DstPort))
	w.writeString(string(s.Payload.SrcVIP))
	w.writeUint32(uint32(len(s.Payload.Data)))
	w.writeBytes(s.Payload.Data)
	return w.bytes()
}

// DecodeSegment deserializes a segment. A non-nil error means the
// bytes are truncated or malformed; callers treat this as a dropped
// segment, same as every other malformed unit in this stack.
func DecodeSegment(data []byte) (Segment, error) {
	r := newReader(data)

	flags, err := r.readByte()
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}
	srcPort, err := r.readUint16()
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}
	dstPort, err := r.readUint16()
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}
	srcVIP, err := r.readString()
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}
	dataLen, err := r.readUint32()
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}
	data, err = r.readBytes(int(dataLen))
	if err != nil {
		return Segment{}, fmt.Errorf("wire: decode segment: %w", err)
	}

	var seq uint8
	if flags&flagSeqNum != 0 {
		seq = 1
	}

	return Segment{
		SeqNum: seq,
		IsAck:  flags&flagIsAck != 0,
		Payload: SegmentPayload{
			SrcVIP:  addr.VIP(srcVIP),
			SrcPort: addr.Port(srcPort),
			DstPort: addr.Port(dstPort),
			Data:    append([]byte(nil), data...),
			More:    flags&flagMore != 0,
			Fin:     flags&flagFin != 0,
		},
	}, nil
}
