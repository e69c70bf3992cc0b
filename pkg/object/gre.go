// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded in: spec.md §4.E's object kind list (GRE headers only, no
// original_source object header exists); fields follow RFC 2784's GRE
// header layout. The layer decoder reads the flags and protocol words
// and stops at this object.

package object

// GRE is a Generic Routing Encapsulation header. Only the flags and
// protocol type are kept; the decoder neither parses GRE's optional
// checksum/key/sequence fields nor decodes the encapsulated packet.
type GRE struct {
	base

	Flags    uint16
	Protocol uint16
}

func NewGREView(prev Object, flags, protocol uint16) *GRE {
	return &GRE{base: base{prev: prev}, Flags: flags, Protocol: protocol}
}

func (g *GRE) Kind() Kind { return KindGRE }

func (g *GRE) Copy() *GRE {
	cp := *g
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (g *GRE) Free() { assertOwned(KindGRE, g.owned) }
