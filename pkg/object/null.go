// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded in: DLT_NULL handling implied by spec.md §4.E (BSD loopback,
// 4-byte host-order address-family header); no dedicated original_source
// object header exists for it, so the shape follows the sibling object
// kinds (Ether, Loop) in this package.

package object

// Null is the 4-byte DLT_NULL pseudo-header BSD loopback captures use.
type Null struct {
	base

	Family uint32
}

func NewNullView(prev Object, family uint32) *Null {
	return &Null{base: base{prev: prev}, Family: family}
}

func (n *Null) Kind() Kind { return KindNull }

func (n *Null) Copy() *Null {
	cp := *n
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (n *Null) Free() { assertOwned(KindNull, n.owned) }
