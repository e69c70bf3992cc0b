// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/ip6.hh (original_source).

package object

// IP6 is an IPv6 header, with the fragment and routing-destination
// extension headers folded into have_* fields per the original shape.
type IP6 struct {
	base

	Flow uint32
	Plen uint16
	Nxt  uint8
	Hlim uint8
	Src  [16]byte
	Dst  [16]byte

	IsFrag       bool
	HaveRtDst    bool
	FragOffLG    uint16
	FragIdent    uint16
	RtDst        [16]byte
}

func NewIP6View(prev Object, flow uint32, plen uint16, nxt, hlim uint8, src, dst [16]byte) *IP6 {
	return &IP6{base: base{prev: prev}, Flow: flow, Plen: plen, Nxt: nxt, Hlim: hlim, Src: src, Dst: dst}
}

func (ip *IP6) Kind() Kind { return KindIP6 }

// FragmentOffset returns the 13-bit fragment offset in 8-byte units,
// valid only when IsFrag is true.
func (ip *IP6) FragmentOffset() uint16 { return ip.FragOffLG >> 3 }

// MoreFragments reports the fragment header's M bit, valid only when
// IsFrag is true.
func (ip *IP6) MoreFragments() bool { return ip.FragOffLG&0x1 != 0 }

func (ip *IP6) Copy() *IP6 {
	cp := *ip
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (ip *IP6) Free() { assertOwned(KindIP6, ip.owned) }
