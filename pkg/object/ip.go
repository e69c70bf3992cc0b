// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/ip.hh (original_source).

package object

// IP is an IPv4 header.
type IP struct {
	base

	V    uint8
	HL   uint8
	TOS  uint8
	Len  uint16
	ID   uint16
	Off  uint16
	TTL  uint8
	P    uint8
	Sum  uint16
	Src  [4]byte
	Dst  [4]byte
}

func NewIPView(prev Object, v, hl, tos uint8, length, id, off uint16, ttl, p uint8, sum uint16, src, dst [4]byte) *IP {
	return &IP{
		base: base{prev: prev},
		V:    v, HL: hl, TOS: tos, Len: length, ID: id, Off: off,
		TTL: ttl, P: p, Sum: sum, Src: src, Dst: dst,
	}
}

func (ip *IP) Kind() Kind { return KindIP }

// MoreFragments reports the IPv4 "more fragments" flag (bit 0x2000 of Off).
func (ip *IP) MoreFragments() bool { return ip.Off&0x2000 != 0 }

// FragmentOffset returns the 13-bit fragment offset in 8-byte units.
func (ip *IP) FragmentOffset() uint16 { return ip.Off & 0x1FFF }

func (ip *IP) Copy() *IP {
	cp := *ip
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (ip *IP) Free() { assertOwned(KindIP, ip.owned) }
