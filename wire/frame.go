// Package wire implements the binary (de)serialization of Frame,
// Packet, and Segment — the stack's three protocol data units. This is
// the "fixed, bit-exact, externally provided" format spec.md §6
// refers to: one format, defined once here, never redefined per
// layer. The encoding style (a small reader/writer pair over
// BigEndian fixed-width fields plus length-prefixed strings) is
// grounded in the teacher's BitStream type.
package wire

import (
	"fmt"
	"hash/crc32"

	"github.com/vexholt/netstack-go/addr"
)

const macLen = 6

// Frame is the L2 protocol data unit.
type Frame struct {
	SrcMAC addr.MAC
	DstMAC addr.MAC
	Packet []byte // the embedded, already-encoded Packet
}

func macBytes(m addr.MAC) ([macLen]byte, error) {
	var out [macLen]byte
	s := string(m)
	if len(s) != 17 {
		return out, fmt.Errorf("wire: malformed MAC %q", m)
	}
	for i := 0; i < macLen; i++ {
		hi, lo := s[i*3], s[i*3+1]
		h, err := hexNibble(hi)
		if err != nil {
			return out, err
		}
		l, err := hexNibble(lo)
		if err != nil {
			return out, err
		}
		out[i] = h<<4 | l
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	default:
		return 0, fmt.Errorf("wire: invalid hex digit %q", c)
	}
}

func macString(b []byte) addr.MAC {
	const hex = "0123456789ABCDEF"
	out := make([]byte, 0, 17)
	for i, c := range b {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, hex[c>>4], hex[c&0xF])
	}
	return addr.MAC(out)
}

// Encode serializes the frame, appending a CRC-32 integrity tag over
// everything preceding it.
func (f Frame) Encode() ([]byte, error) {
	src, err := macBytes(f.SrcMAC)
	if err != nil {
		return nil, err
	}
	dst, err := macBytes(f.DstMAC)
	if err != nil {
		return nil, err
	}

	w := &writer{}
	w.writeBytes(src[:])
	w.writeBytes(dst[:])
	w.writeUint32(uint32(len(f.Packet)))
	w.writeBytes(f.Packet)

	checksum := crc32.ChecksumIEEE(w.bytes())
	w.writeUint32(checksum)
	return w.bytes(), nil
}

// PeekDstMAC extracts only the destination MAC from a serialized
// frame's header, without validating its integrity tag. The physical
// layer uses this to resolve a next-hop address; integrity checking is
// the link layer's job, not the physical layer's.
func PeekDstMAC(data []byte) (addr.MAC, bool) {
	if len(data) < macLen*2 {
		return "", false
	}
	return macString(data[macLen : macLen*2]), true
}

// DecodeFrame deserializes a frame and validates its integrity tag.
// The returned bool is false whenever the bytes cannot be decoded at
// all OR the checksum fails — both cases mean "drop this frame", per
// spec.md §4.2.
func DecodeFrame(data []byte) (Frame, bool) {
	if len(data) < macLen*2+4+4 {
		return Frame{}, false
	}

	body := data[:len(data)-4]
	wantChecksum := crc32.ChecksumIEEE(body)

	r := newReader(data)
	srcRaw, err := r.readBytes(macLen)
	if err != nil {
		return Frame{}, false
	}
	dstRaw, err := r.readBytes(macLen)
	if err != nil {
		return Frame{}, false
	}
	packetLen, err := r.readUint32()
	if err != nil {
		return Frame{}, false
	}
	packet, err := r.readBytes(int(packetLen))
	if err != nil {
		return Frame{}, false
	}
	gotChecksum, err := r.readUint32()
	if err != nil {
		return Frame{}, false
	}
	if gotChecksum != wantChecksum {
		return Frame{}, false
	}

	return Frame{
		SrcMAC: macString(srcRaw),
		DstMAC: macString(dstRaw),
		Packet: append([]byte(nil), packet...),
	}, true
}
