// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: filter/layer.c (original_source): _link, _ieee802 and
// the top-level _receive/_produce dispatch.

// Package layer decodes a captured frame into the deepest recognized
// [object.Object] the pipeline can reach, producing a view chain linked
// via Prev back to the originating [object.PCAP] record.
package layer

import (
	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/telemetry"
)

// Link-layer type constants (libpcap DLT_*), matching the values the
// pcap source's linktype remap table (pkg/pcapsrc) produces.
const (
	dltNull     = 0
	dltEN10MB   = 1
	dltRaw      = 12
	dltLoop     = 108
	dltLinuxSLL = 113
	dltLinuxSLL2 = 276
)

const (
	etherTypeIP    = 0x0800
	etherTypeIPv6  = 0x86DD
	etherType8021Q = 0x8100
	etherType8021AD = 0x88A8
	etherTypeQinQ  = 0x9100
)

// maxIEEE802Tags bounds stacked VLAN tags (spec.md's open question:
// stop at the third tag, fall back to the last decoded layer, and log).
const maxIEEE802Tags = 3

// Decoder walks one captured frame's encapsulation. It holds no
// per-packet state; a single Decoder is safe to reuse (and share)
// across every record in a capture.
type Decoder struct {
	Logger telemetry.SLogger
}

// New creates a Decoder. A nil logger is replaced with a no-op one.
func New(logger telemetry.SLogger) *Decoder {
	if logger == nil {
		logger = telemetry.DefaultSLogger()
	}
	return &Decoder{Logger: logger}
}

// Decode walks pkt's link layer and every encapsulation it recognizes,
// returning the deepest object produced. It never returns nil for a
// pcap record with a recognized link type: decode failures at any
// depth fall back to the last successfully decoded layer, per
// spec.md's §9 "drop to the last-decoded layer" policy — except for a
// small number of structural invariant violations (a malformed IPv6
// extension header chain) where the whole record is dropped, matching
// the reference implementation's explicit error return.
func (d *Decoder) Decode(pkt *object.PCAP) (obj object.Object, deliver bool) {
	c := &cursor{buf: pkt.Bytes}

	switch pkt.Linktype {
	case dltNull:
		return d.decodeNull(pkt, c)
	case dltEN10MB:
		return d.decodeEther(pkt, c)
	case dltLoop:
		return d.decodeLoop(pkt, c)
	case dltRaw:
		return d.decodeIP(pkt, c)
	case dltLinuxSLL:
		return d.decodeLinuxSLL(pkt, c)
	case dltLinuxSLL2:
		return d.decodeLinuxSLL2(pkt, c)
	default:
		return pkt, true
	}
}

func (d *Decoder) decodeNull(pkt *object.PCAP, c *cursor) (object.Object, bool) {
	var family uint32
	var ok bool
	if pkt.Swapped {
		family, ok = c.u32r()
	} else {
		family, ok = c.u32()
	}
	if !ok {
		return pkt, true
	}
	n := object.NewNullView(pkt, family)
	switch family {
	case 2, 24, 28, 30:
		return d.decodeIP(n, c)
	default:
		return n, true
	}
}

func (d *Decoder) decodeLoop(pkt *object.PCAP, c *cursor) (object.Object, bool) {
	family, ok := c.u32()
	if !ok {
		return pkt, true
	}
	l := object.NewLoopView(pkt, family)
	switch family {
	case 2, 24, 28, 30:
		return d.decodeIP(l, c)
	default:
		return l, true
	}
}

func (d *Decoder) decodeEther(pkt *object.PCAP, c *cursor) (object.Object, bool) {
	dhost, ok := c.bytesN(6)
	if !ok {
		return pkt, true
	}
	shost, ok := c.bytesN(6)
	if !ok {
		return pkt, true
	}
	typ, ok := c.u16()
	if !ok {
		return pkt, true
	}
	var dh, sh [6]byte
	copy(dh[:], dhost)
	copy(sh[:], shost)
	e := object.NewEtherView(pkt, dh, sh, typ)

	switch typ {
	case etherType8021Q, etherType8021AD, etherTypeQinQ:
		return d.decodeIEEE802(e, typ, c, 0)
	case etherTypeIP, etherTypeIPv6:
		return d.decodeIP(e, c)
	default:
		return e, true
	}
}

func (d *Decoder) decodeLinuxSLL(pkt *object.PCAP, c *cursor) (object.Object, bool) {
	packetType, ok := c.u16()
	if !ok {
		return pkt, true
	}
	arpHW, ok := c.u16()
	if !ok {
		return pkt, true
	}
	addrLen, ok := c.u16()
	if !ok {
		return pkt, true
	}
	addrBytes, ok := c.bytesN(8)
	if !ok {
		return pkt, true
	}
	etherType, ok := c.u16()
	if !ok {
		return pkt, true
	}
	var addr [8]byte
	copy(addr[:], addrBytes)
	l := object.NewLinuxSLLView(pkt, packetType, arpHW, addrLen, addr, etherType)

	switch etherType {
	case etherType8021Q, etherType8021AD, etherTypeQinQ:
		return d.decodeIEEE802(l, etherType, c, 0)
	case etherTypeIP, etherTypeIPv6:
		return d.decodeIP(l, c)
	default:
		return l, true
	}
}

func (d *Decoder) decodeLinuxSLL2(pkt *object.PCAP, c *cursor) (object.Object, bool) {
	protocolType, ok := c.u16()
	if !ok {
		return pkt, true
	}
	if !c.advance(2) { // reserved
		return pkt, true
	}
	ifIndex, ok := c.u32()
	if !ok {
		return pkt, true
	}
	arphrdType, ok := c.u16()
	if !ok {
		return pkt, true
	}
	packetType, ok := c.u8()
	if !ok {
		return pkt, true
	}
	addrLen, ok := c.u8()
	if !ok {
		return pkt, true
	}
	addrBytes, ok := c.bytesN(8)
	if !ok {
		return pkt, true
	}
	var addr [8]byte
	copy(addr[:], addrBytes)
	l := object.NewLinuxSLL2View(pkt, protocolType, ifIndex, arphrdType, packetType, addrLen, addr)

	switch protocolType {
	case etherType8021Q, etherType8021AD, etherTypeQinQ:
		return d.decodeIEEE802(l, protocolType, c, 0)
	case etherTypeIP, etherTypeIPv6:
		return d.decodeIP(l, c)
	default:
		return l, true
	}
}

// decodeIEEE802 walks up to maxIEEE802Tags stacked VLAN tags.
func (d *Decoder) decodeIEEE802(prev object.Object, tpid uint16, c *cursor, depth int) (object.Object, bool) {
	tci, ok := c.u16()
	if !ok {
		return prev, true
	}
	pcp := uint8((tci & 0xe000) >> 13)
	dei := uint8((tci & 0x1000) >> 12)
	vid := tci & 0x0fff
	etherType, ok := c.u16()
	if !ok {
		return prev, true
	}
	tag := object.NewIEEE802View(prev, tpid, pcp, dei, vid, etherType)

	switch etherType {
	case etherType8021AD, etherTypeQinQ:
		depth++
		if depth >= maxIEEE802Tags {
			d.Logger.Info("layer: stopping after max stacked IEEE 802.1x tags", "depth", depth)
			return tag, true
		}
		return d.decodeIEEE802(tag, etherType, c, depth)
	case etherTypeIP, etherTypeIPv6:
		return d.decodeIP(tag, c)
	default:
		return tag, true
	}
}
