// Package wire implements the PostgreSQL frontend/backend v3 wire format:
// a growable byte buffer, a typed message codec, and a streaming framer
// that turns a byte stream into a sequence of fully parsed messages.
package wire

import "encoding/binary"

// Buffer is a growable byte sequence with a non-decreasing read cursor,
// used to incrementally assemble one message at a time off the wire.
type Buffer struct {
	buf []byte
	pos int
}

// Append adds data to the end of the buffer.
func (b *Buffer) Append(data []byte) {
	b.buf = append(b.buf, data...)
}

// Reset moves the read cursor back to the start without discarding data,
// used when a header can't be parsed yet and must be retried from scratch
// once more bytes arrive.
func (b *Buffer) Reset() {
	b.pos = 0
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Remainder returns the unread tail of the buffer.
func (b *Buffer) Remainder() []byte {
	return b.buf[b.pos:]
}

// Raw returns the full backing slice.
func (b *Buffer) Raw() []byte {
	return b.buf
}

// GetByte reads the next byte and advances the cursor.
func (b *Buffer) GetByte() byte {
	c := b.buf[b.pos]
	b.pos++
	return c
}

// GetUint16 reads a big-endian 16-bit integer and advances the cursor.
func (b *Buffer) GetUint16() uint16 {
	v := binary.BigEndian.Uint16(b.buf[b.pos : b.pos+2])
	b.pos += 2
	return v
}

// GetUint32 reads a big-endian 32-bit integer and advances the cursor.
func (b *Buffer) GetUint32() uint32 {
	v := binary.BigEndian.Uint32(b.buf[b.pos : b.pos+4])
	b.pos += 4
	return v
}

// Truncate cuts the buffer at length, discarding nothing: it retains the
// first `length` bytes and returns whatever came after as leftover.
func (b *Buffer) Truncate(length int) []byte {
	extra := make([]byte, len(b.buf)-length)
	copy(extra, b.buf[length:])
	b.buf = b.buf[:length]
	return extra
}
