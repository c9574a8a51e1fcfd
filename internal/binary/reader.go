package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read or seek runs past the end of the buffer.
var ErrTruncated = errors.New("binary: unexpected end of input")

// Cursor is a read position over an immutable byte buffer.
//
// Cursors never copy the buffer. Dereferencing an absolute offset is done by
// taking a fresh view with At instead of seeking and restoring a shared
// position, so one buffer can be read by many cursors at once.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a Cursor at position 0.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Position returns the current byte position.
func (c *Cursor) Position() int {
	return c.pos
}

// Len returns the size of the underlying buffer.
func (c *Cursor) Len() int {
	return len(c.data)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// Seek moves to an absolute position. Seeking to Len() is allowed.
func (c *Cursor) Seek(pos int) error {
	if pos < 0 || pos > len(c.data) {
		return c.wrapError(fmt.Errorf("seek to %d beyond %d bytes: %w", pos, len(c.data), ErrTruncated))
	}
	c.pos = pos
	return nil
}

// At returns a new cursor over the same buffer positioned at pos.
func (c *Cursor) At(pos uint64) (*Cursor, error) {
	if pos > uint64(len(c.data)) {
		return nil, c.wrapError(fmt.Errorf("offset %d beyond %d bytes: %w", pos, len(c.data), ErrTruncated))
	}
	return &Cursor{data: c.data, pos: int(pos)}, nil
}

// ReadByte reads a single byte and advances the position.
func (c *Cursor) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, c.wrapError(ErrTruncated)
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes. The returned slice aliases the buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > len(c.data)-c.pos {
		return nil, c.wrapError(fmt.Errorf("need %d bytes, have %d: %w", n, len(c.data)-c.pos, ErrTruncated))
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	buf, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	buf, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadU64 reads a little-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	buf, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadUint reads a little-endian unsigned integer of 1, 2, 4 or 8 bytes.
func (c *Cursor) ReadUint(width int) (uint64, error) {
	switch width {
	case 1:
		b, err := c.ReadByte()
		return uint64(b), err
	case 2:
		v, err := c.ReadU16()
		return uint64(v), err
	case 4:
		v, err := c.ReadU32()
		return uint64(v), err
	case 8:
		return c.ReadU64()
	default:
		return 0, fmt.Errorf("binary: unsupported integer width %d", width)
	}
}

// ReadCString reads bytes up to and including a NUL terminator. It returns
// the bytes before the terminator and the total number of bytes consumed.
func (c *Cursor) ReadCString() ([]byte, int, error) {
	idx := bytes.IndexByte(c.data[c.pos:], 0)
	if idx < 0 {
		start := c.pos
		c.pos = len(c.data)
		return nil, 0, c.wrapError(fmt.Errorf("unterminated string starting at %d: %w", start, ErrTruncated))
	}
	s := c.data[c.pos : c.pos+idx : c.pos+idx]
	c.pos += idx + 1
	return s, idx + 1, nil
}

func (c *Cursor) wrapError(err error) error {
	return fmt.Errorf("at position %d: %w", c.pos, err)
}
