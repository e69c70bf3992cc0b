// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded in: spec.md §4.E's object kind list; see icmp.go for rationale.

package object

// ICMP6 is an ICMPv6 header (type/code/checksum only).
type ICMP6 struct {
	base

	Type uint8
	Code uint8
	Sum  uint16
}

func NewICMP6View(prev Object, typ, code uint8, sum uint16) *ICMP6 {
	return &ICMP6{base: base{prev: prev}, Type: typ, Code: code, Sum: sum}
}

func (i *ICMP6) Kind() Kind { return KindICMP6 }

func (i *ICMP6) Copy() *ICMP6 {
	cp := *i
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (i *ICMP6) Free() { assertOwned(KindICMP6, i.owned) }
