// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/ieee802.hh (original_source).

package object

// IEEE802 is one 802.1Q/802.1ad VLAN tag. The layer decoder (pkg/layer)
// stacks up to three of these per spec.md's documented policy for
// QinQ-in-QinQ captures.
type IEEE802 struct {
	base

	TPID      uint16
	PCP       uint8
	DEI       uint8
	VID       uint16
	EtherType uint16
}

func NewIEEE802View(prev Object, tpid uint16, pcp, dei uint8, vid, etherType uint16) *IEEE802 {
	return &IEEE802{base: base{prev: prev}, TPID: tpid, PCP: pcp, DEI: dei, VID: vid, EtherType: etherType}
}

func (i *IEEE802) Kind() Kind { return KindIEEE802 }

func (i *IEEE802) Copy() *IEEE802 {
	cp := *i
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (i *IEEE802) Free() { assertOwned(KindIEEE802, i.owned) }
