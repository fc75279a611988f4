package wire

import (
	"encoding/binary"
	"fmt"
)

// reader walks a byte slice extracting fixed and length-prefixed
// fields, in the style of the stack's original BitStream helper: every
// Read returns an error instead of panicking on a short buffer, so a
// corrupt or truncated frame turns into a dropped frame rather than a
// crash.
type reader struct {
	data   []byte
	offset int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) readByte() (byte, error) {
	if r.offset >= len(r.data) {
		return 0, fmt.Errorf("wire: buffer underrun reading byte")
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *reader) readBytes(n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.data) {
		return nil, fmt.Errorf("wire: buffer underrun reading %d bytes", n)
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

// writer is the append-only counterpart to reader.
type writer struct {
	data []byte
}

func (w *writer) writeByte(b byte) {
	w.data = append(w.data, b)
}

func (w *writer) writeBytes(b []byte) {
	w.data = append(w.data, b...)
}

func (w *writer) writeUint16(v uint16) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	w.data = append(w.data, buf[:]...)
}

func (w *writer) writeUint32(v uint32) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	w.data = append(w.data, buf[:]...)
}

func (w *writer) writeString(s string) {
	w.writeUint16(uint16(len(s)))
	w.data = append(w.data, s...)
}

func (w *writer) bytes() []byte { return w.data }
