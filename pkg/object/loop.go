// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded in: DLT_LOOP handling implied by spec.md §4.E; DLT_LOOP is
// identical in shape to DLT_NULL except its address family field is
// always network byte order, so it gets its own Kind per the spec's
// object kind list rather than being folded into Null.

package object

// Loop is the 4-byte DLT_LOOP pseudo-header, network-byte-order variant
// of [Null].
type Loop struct {
	base

	Family uint32
}

func NewLoopView(prev Object, family uint32) *Loop {
	return &Loop{base: base{prev: prev}, Family: family}
}

func (l *Loop) Kind() Kind { return KindLoop }

func (l *Loop) Copy() *Loop {
	cp := *l
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (l *Loop) Free() { assertOwned(KindLoop, l.owned) }
