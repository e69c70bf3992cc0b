// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/udp.hh (original_source).

package object

// UDP is a UDP header.
type UDP struct {
	base

	Sport uint16
	Dport uint16
	Ulen  uint16
	Sum   uint16
}

func NewUDPView(prev Object, sport, dport, ulen, sum uint16) *UDP {
	return &UDP{base: base{prev: prev}, Sport: sport, Dport: dport, Ulen: ulen, Sum: sum}
}

func (u *UDP) Kind() Kind { return KindUDP }

func (u *UDP) Copy() *UDP {
	cp := *u
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (u *UDP) Free() { assertOwned(KindUDP, u.owned) }
