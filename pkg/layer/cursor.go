// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: filter/layer.c's need8/need16/need32/needxb/advancexb
// macros (original_source). Each macro there aborts the enclosing
// switch case with a bare `break` the instant the buffer runs short;
// cursor reproduces that as an explicit ok bool so Go call sites can
// express the same "stop and fall back to the last decoded layer"
// policy without a goto.

package layer

import "encoding/binary"

// cursor walks a byte slice front to back, matching the original's
// running (pkt, len) pair.
type cursor struct {
	buf []byte
}

func (c *cursor) len() int { return len(c.buf) }

func (c *cursor) u8() (v uint8, ok bool) {
	if len(c.buf) < 1 {
		return 0, false
	}
	v = c.buf[0]
	c.buf = c.buf[1:]
	return v, true
}

// u4x2 splits one byte into two nibbles, high then low (need4x2).
func (c *cursor) u4x2() (hi, lo uint8, ok bool) {
	b, ok := c.u8()
	if !ok {
		return 0, 0, false
	}
	return b >> 4, b & 0xf, true
}

func (c *cursor) u16() (v uint16, ok bool) {
	if len(c.buf) < 2 {
		return 0, false
	}
	v = binary.BigEndian.Uint16(c.buf)
	c.buf = c.buf[2:]
	return v, true
}

// u16r reads 16 bits then byte-swaps, for fields that are big-endian on
// the wire but the capture's byte order was already swapped once by the
// pcap source's endianness handling (DLT_NULL on a swapped-endian
// capture, per filter/layer.c's needr16/needr32 use).
func (c *cursor) u16r() (v uint16, ok bool) {
	v, ok = c.u16()
	if !ok {
		return 0, false
	}
	return (v >> 8) | (v << 8), true
}

func (c *cursor) u32() (v uint32, ok bool) {
	if len(c.buf) < 4 {
		return 0, false
	}
	v = binary.BigEndian.Uint32(c.buf)
	c.buf = c.buf[4:]
	return v, true
}

func (c *cursor) u32r() (v uint32, ok bool) {
	v, ok = c.u32()
	if !ok {
		return 0, false
	}
	return bswap32(v), true
}

func bswap32(v uint32) uint32 {
	return (v>>24)&0xff | (v>>8)&0xff00 | (v<<8)&0xff0000 | (v << 24)
}

func (c *cursor) bytesN(n int) (v []byte, ok bool) {
	if len(c.buf) < n {
		return nil, false
	}
	v = c.buf[:n]
	c.buf = c.buf[n:]
	return v, true
}

func (c *cursor) advance(n int) bool {
	if len(c.buf) < n {
		return false
	}
	c.buf = c.buf[n:]
	return true
}
