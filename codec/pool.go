package codec

import "github.com/wippyai/tbl/internal/binary"

// Pool is the pointer pool: the variable-length region after all entry
// regions that holds pointer and array targets. It only grows; targets are
// never shared or deduplicated.
type Pool struct {
	w    *binary.Writer
	base uint64
}

// NewPool creates an empty pool whose first byte lives at absolute offset
// base in the container.
func NewPool(base uint64) *Pool {
	return &Pool{w: binary.NewWriter(), base: base}
}

// Base returns the absolute offset of the pool's first byte.
func (p *Pool) Base() uint64 {
	return p.base
}

// Len returns the number of bytes appended so far.
func (p *Pool) Len() int {
	return p.w.Len()
}

// Next returns the absolute offset the next appended byte will occupy.
func (p *Pool) Next() uint64 {
	return p.base + uint64(p.w.Len())
}

// AlignTo zero-pads the pool until Next is a multiple of width.
func (p *Pool) AlignTo(width int) {
	if width <= 1 {
		return
	}
	if rem := p.Next() % uint64(width); rem != 0 {
		p.w.Pad(width - int(rem))
	}
}

// Bytes returns the pool contents.
func (p *Pool) Bytes() []byte {
	return p.w.Bytes()
}

func (p *Pool) writer() *binary.Writer {
	return p.w
}
