// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/ether.hh (original_source).

package object

// Ether is an Ethernet II frame header.
type Ether struct {
	base

	DHost [6]byte
	SHost [6]byte
	Type  uint16
}

func NewEtherView(prev Object, dhost, shost [6]byte, typ uint16) *Ether {
	return &Ether{base: base{prev: prev}, DHost: dhost, SHost: shost, Type: typ}
}

func (e *Ether) Kind() Kind { return KindEther }

func (e *Ether) Copy() *Ether {
	cp := *e
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (e *Ether) Free() { assertOwned(KindEther, e.owned) }
