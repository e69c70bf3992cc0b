// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/payload.hh, core/object/payload.c (original_source).

package object

// Payload is the generic fallback the layer decoder (pkg/layer)
// produces for bytes it does not decode further (an IP fragment, an
// IPv6 packet with no next header, or a UDP/TCP payload), and is the
// innermost object handed to pkg/dnswire.
type Payload struct {
	base

	Bytes []byte

	// Padding is the number of trailing bytes belonging to the frame's
	// minimum length rather than to this layer's payload (e.g. Ethernet
	// padding on short frames).
	Padding int
}

// NewPayloadView wraps bytes without copying.
func NewPayloadView(prev Object, bytes []byte, padding int) *Payload {
	return &Payload{base: base{prev: prev}, Bytes: bytes, Padding: padding}
}

func (p *Payload) Kind() Kind { return KindPayload }

func (p *Payload) Copy() *Payload {
	cp := *p
	cp.owned = true
	cp.prev = nil
	cp.Bytes = append([]byte(nil), p.Bytes...)
	return &cp
}

func (p *Payload) Free() {
	assertOwned(KindPayload, p.owned)
	p.Bytes = nil
}
