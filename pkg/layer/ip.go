// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: filter/layer.c's _ip (original_source): IPv4 header
// parsing (with options skipped, not stored — "TODO: IPv4 options" in
// the source, carried forward here), fragment detection, and the IPv6
// extension header walk (hop-by-hop/routing/fragment/destination
// options), stopping at the first header the decoder cannot see past.

package layer

import "github.com/dnsreplay/engine/pkg/object"

const (
	ipProtoICMP     = 1
	ipProtoTCP      = 6
	ipProtoUDP      = 17
	ipProtoGRE      = 47
	ipProtoICMPv6   = 58
	ipProtoNone     = 59
	ipProtoFragment = 44
	ipProtoRouting  = 43
)

func (d *Decoder) decodeIP(prev object.Object, c *cursor) (object.Object, bool) {
	if c.len() == 0 {
		return prev, true
	}
	version := c.buf[0] >> 4
	switch version {
	case 4:
		return d.decodeIPv4(prev, c)
	case 6:
		return d.decodeIPv6(prev, c)
	default:
		return prev, true
	}
}

func (d *Decoder) decodeIPv4(prev object.Object, c *cursor) (object.Object, bool) {
	v, hl, ok := c.u4x2()
	if !ok {
		return prev, true
	}
	tos, ok := c.u8()
	if !ok {
		return prev, true
	}
	length, ok := c.u16()
	if !ok {
		return prev, true
	}
	id, ok := c.u16()
	if !ok {
		return prev, true
	}
	off, ok := c.u16()
	if !ok {
		return prev, true
	}
	ttl, ok := c.u8()
	if !ok {
		return prev, true
	}
	p, ok := c.u8()
	if !ok {
		return prev, true
	}
	sum, ok := c.u16()
	if !ok {
		return prev, true
	}
	srcB, ok := c.bytesN(4)
	if !ok {
		return prev, true
	}
	dstB, ok := c.bytesN(4)
	if !ok {
		return prev, true
	}
	var src, dst [4]byte
	copy(src[:], srcB)
	copy(dst[:], dstB)

	ip := object.NewIPView(prev, v, hl, tos, length, id, off, ttl, p, sum, src, dst)

	if hl < 5 {
		return prev, true
	}
	if hl > 5 {
		if !c.advance(int(hl-5) * 4) {
			return prev, true
		}
	}

	headerLen := uint16(hl) * 4
	if length < headerLen {
		return prev, true
	}
	payloadLen := int(length - headerLen)
	if c.len() < payloadLen {
		return prev, true
	}

	if ip.MoreFragments() || ip.FragmentOffset() != 0 {
		return payloadFor(ip, c, payloadLen), true
	}

	return d.decodeTransport(p, ip, c, payloadLen)
}

func (d *Decoder) decodeIPv6(prev object.Object, c *cursor) (object.Object, bool) {
	flow, ok := c.u32()
	if !ok {
		return prev, true
	}
	plen, ok := c.u16()
	if !ok {
		return prev, true
	}
	nxt, ok := c.u8()
	if !ok {
		return prev, true
	}
	hlim, ok := c.u8()
	if !ok {
		return prev, true
	}
	srcB, ok := c.bytesN(16)
	if !ok {
		return prev, true
	}
	dstB, ok := c.bytesN(16)
	if !ok {
		return prev, true
	}
	var src, dst [16]byte
	copy(src[:], srcB)
	copy(dst[:], dstB)

	if c.len() < int(plen) {
		return prev, true
	}

	ip6 := object.NewIP6View(prev, flow, plen, nxt, hlim, src, dst)

	nextHeader := nxt
	extLen := 0
	for nextHeader != ipProtoNone && nextHeader != ipProtoGRE && nextHeader != ipProtoICMPv6 &&
		nextHeader != ipProtoUDP && nextHeader != ipProtoTCP {

		if extLen > 0 {
			if !c.advance(extLen * 8) {
				return prev, true
			}
		}

		switch nextHeader {
		case ipProtoFragment:
			if ip6.IsFrag {
				return prev, false // duplicate fragment header: malformed chain, drop
			}
			var ok1, ok2 bool
			nextHeader, ok1 = c.u8()
			var l uint8
			l, ok2 = c.u8()
			if !ok1 || !ok2 {
				return prev, true
			}
			if l != 0 {
				return prev, false
			}
			extLen = 0
			offlg, ok3 := c.u16()
			ident, ok4 := c.u32()
			if !ok3 || !ok4 {
				return prev, true
			}
			ip6.IsFrag = true
			ip6.FragOffLG = offlg
			ip6.FragIdent = uint16(ident)

		case ipProtoRouting:
			if ip6.HaveRtDst {
				return prev, false
			}
			var ok1, ok2, ok3, ok4 bool
			nextHeader, ok1 = c.u8()
			var l uint8
			l, ok2 = c.u8()
			rtType, _ := c.u8()
			segLeft, ok3b := c.u8()
			ok3 = ok3b
			if !ok1 || !ok2 || !ok3 {
				return prev, true
			}
			if !c.advance(4) {
				return prev, true
			}
			extLen = int(l)
			if rtType == 0 && segLeft != 0 {
				if l&1 != 0 {
					return prev, false
				}
				if l > 2 {
					if !c.advance(int(l-2) * 8) {
						return prev, true
					}
				}
				rtdstB, ok5 := c.bytesN(16)
				ok4 = ok5
				if !ok4 {
					return prev, true
				}
				var rtdst [16]byte
				copy(rtdst[:], rtdstB)
				ip6.RtDst = rtdst
				ip6.HaveRtDst = true
			}

		default:
			var ok1, ok2 bool
			nextHeader, ok1 = c.u8()
			var l uint8
			l, ok2 = c.u8()
			if !ok1 || !ok2 {
				return prev, true
			}
			extLen = int(l)
			if !c.advance(6) {
				return prev, true
			}
		}
	}

	payloadLen := c.len()
	if nextHeader == ipProtoNone || ip6.IsFrag {
		return payloadFor(ip6, c, payloadLen), true
	}

	return d.decodeTransport(nextHeader, ip6, c, payloadLen)
}

// payloadFor wraps the cursor's remaining bytes as a Payload view. Bytes
// spans the full captured remainder; Padding counts how much of it lies
// beyond declaredLen (the enclosing header's reported payload length),
// matching the original's payload->payload/payload->len/payload->padding
// split.
func payloadFor(prev object.Object, c *cursor, declaredLen int) *object.Payload {
	remaining := c.len()
	if remaining > declaredLen {
		return object.NewPayloadView(prev, c.buf, remaining-declaredLen)
	}
	return object.NewPayloadView(prev, c.buf, 0)
}

func (d *Decoder) decodeTransport(proto uint8, prev object.Object, c *cursor, declaredLen int) (object.Object, bool) {
	switch proto {
	case ipProtoGRE:
		flags, ok := c.u16()
		if !ok {
			return prev, true
		}
		protocol, ok := c.u16()
		if !ok {
			return prev, true
		}
		return object.NewGREView(prev, flags, protocol), true

	case ipProtoICMP:
		typ, ok := c.u8()
		if !ok {
			return prev, true
		}
		code, ok := c.u8()
		if !ok {
			return prev, true
		}
		sum, ok := c.u16()
		if !ok {
			return prev, true
		}
		return object.NewICMPView(prev, typ, code, sum), true

	case ipProtoICMPv6:
		typ, ok := c.u8()
		if !ok {
			return prev, true
		}
		code, ok := c.u8()
		if !ok {
			return prev, true
		}
		sum, ok := c.u16()
		if !ok {
			return prev, true
		}
		return object.NewICMP6View(prev, typ, code, sum), true

	case ipProtoUDP:
		sport, ok := c.u16()
		if !ok {
			return prev, true
		}
		dport, ok := c.u16()
		if !ok {
			return prev, true
		}
		ulen, ok := c.u16()
		if !ok {
			return prev, true
		}
		sum, ok := c.u16()
		if !ok {
			return prev, true
		}
		udp := object.NewUDPView(prev, sport, dport, ulen, sum)
		return udpPayload(udp, c, ulen), true

	case ipProtoTCP:
		sport, ok := c.u16()
		if !ok {
			return prev, true
		}
		dport, ok := c.u16()
		if !ok {
			return prev, true
		}
		seq, ok := c.u32()
		if !ok {
			return prev, true
		}
		ack, ok := c.u32()
		if !ok {
			return prev, true
		}
		off, x2, ok := c.u4x2()
		_ = x2
		if !ok {
			return prev, true
		}
		flags, ok := c.u8()
		if !ok {
			return prev, true
		}
		win, ok := c.u16()
		if !ok {
			return prev, true
		}
		sum, ok := c.u16()
		if !ok {
			return prev, true
		}
		urp, ok := c.u16()
		if !ok {
			return prev, true
		}
		var opts []byte
		if off > 5 {
			opts, ok = c.bytesN(int(off-5) * 4)
			if !ok {
				return prev, true
			}
		}
		tcp := object.NewTCPView(prev, sport, dport, seq, ack, off, flags, win, sum, urp, opts)
		return tcpPayload(tcp, c, prev, declaredLen), true

	default:
		return prev, true
	}
}

func udpPayload(udp *object.UDP, c *cursor, ulen uint16) *object.Payload {
	remaining := c.len()
	if remaining > int(ulen) {
		padding := remaining - int(ulen)
		return object.NewPayloadView(udp, c.buf, padding)
	}
	return object.NewPayloadView(udp, c.buf, 0)
}

func tcpPayload(tcp *object.TCP, c *cursor, ipLayer object.Object, declaredLen int) *object.Payload {
	remaining := c.len()
	switch ip := ipLayer.(type) {
	case *object.IP:
		want := int(ip.Len) - int(ip.HL)*4
		if remaining > want && want >= 0 {
			return object.NewPayloadView(tcp, c.buf, remaining-want)
		}
	case *object.IP6:
		want := int(ip.Plen)
		if remaining > want {
			return object.NewPayloadView(tcp, c.buf, remaining-want)
		}
	}
	return object.NewPayloadView(tcp, c.buf, 0)
}
