package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Writer provides buffered little-endian writing for TBL encoding.
type Writer struct {
	buf *bytes.Buffer
}

// NewWriter creates a new Writer.
func NewWriter() *Writer {
	return &Writer{buf: &bytes.Buffer{}}
}

// Bytes returns the written bytes.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Byte writes a single byte.
func (w *Writer) Byte(b byte) {
	w.buf.WriteByte(b)
}

// WriteBytes writes a byte slice.
func (w *Writer) WriteBytes(data []byte) {
	w.buf.Write(data)
}

// Pad writes n zero bytes.
func (w *Writer) Pad(n int) {
	for i := 0; i < n; i++ {
		w.buf.WriteByte(0)
	}
}

// WriteU16LE writes a little-endian uint16 (fixed 2 bytes).
func (w *Writer) WriteU16LE(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU32LE writes a little-endian uint32 (fixed 4 bytes).
func (w *Writer) WriteU32LE(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteU64LE writes a little-endian uint64 (fixed 8 bytes).
func (w *Writer) WriteU64LE(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.buf.Write(buf[:])
}

// WriteUint writes the low width bytes of v little-endian. width is 1, 2, 4 or 8.
func (w *Writer) WriteUint(v uint64, width int) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	w.buf.Write(buf[:width])
}

// PutU64LEAt overwrites 8 already-written bytes at off.
func (w *Writer) PutU64LEAt(off int, v uint64) error {
	b := w.buf.Bytes()
	if off < 0 || off+8 > len(b) {
		return fmt.Errorf("binary: patch at %d outside %d written bytes", off, len(b))
	}
	binary.LittleEndian.PutUint64(b[off:off+8], v)
	return nil
}
