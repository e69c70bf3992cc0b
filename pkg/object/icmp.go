// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded in: spec.md §4.E's object kind list ("ICMP/ICMPv6 headers
// only"); no dedicated original_source object header exists, so the
// shape mirrors the minimal fields the decoder needs (type/code/checksum)
// following the sibling UDP/TCP object headers' level of detail.

package object

// ICMP is an ICMPv4 header (type/code/checksum only; the decoder does
// not interpret per-type payloads).
type ICMP struct {
	base

	Type uint8
	Code uint8
	Sum  uint16
}

func NewICMPView(prev Object, typ, code uint8, sum uint16) *ICMP {
	return &ICMP{base: base{prev: prev}, Type: typ, Code: code, Sum: sum}
}

func (i *ICMP) Kind() Kind { return KindICMP }

func (i *ICMP) Copy() *ICMP {
	cp := *i
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (i *ICMP) Free() { assertOwned(KindICMP, i.owned) }
