// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/dns.c's core_object_dns_parse_header,
// core_object_dns_parse_q and core_object_dns_parse_rr (original_source).
// The C functions wrap their body in a one-shot `for(;;) { ...; return
// 0; }` purely so the need*/needxb macros can `break` out to a single
// `return _ERR_MALFORMED` on a short read; that collapses here into
// each helper returning ErrMalformed directly at the point of failure.

// Package dnswire decodes the wire format of a DNS message directly
// over a captured payload, without building an intermediate tree: each
// Parse* call advances the message's cursor and fills in only the
// fields it could read, mirroring the have_* presence bits the
// original tracks per field.
package dnswire

import (
	"errors"

	"github.com/dnsreplay/engine/pkg/object"
)

// ErrMalformed marks a message whose header, question or resource
// record layout doesn't fit the declared/captured length.
var ErrMalformed = errors.New("dnswire: malformed message")

// ErrNeedLabels marks a name whose label chain didn't fit in the
// caller-supplied label buffer; callers should retry with a larger one
// or give up on the message.
var ErrNeedLabels = errors.New("dnswire: label buffer too small")

// ParseHeader reads the 12-byte DNS header (plus, when d.IncludesDNSLen
// is set, the 2-byte TCP/TLS length prefix that precedes it) from the
// start of d.Payload, resetting the cursor first so ParseHeader can be
// called more than once over the same view.
func ParseHeader(d *object.DNS) error {
	d.At = 0
	d.Left = d.Len

	if d.IncludesDNSLen {
		v, ok := need16(d)
		if !ok {
			return ErrMalformed
		}
		d.DNSLen = v
		d.HaveDNSLen = true
	}

	id, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	d.ID = id
	d.HaveID = true

	b0, ok := need8(d)
	if !ok {
		return ErrMalformed
	}
	d.QR = b0&(1<<7) != 0
	d.Opcode = (b0 >> 3) & 0xf
	d.AA = b0&(1<<2) != 0
	d.TC = b0&(1<<1) != 0
	d.RD = b0&(1<<0) != 0
	d.HaveQR, d.HaveOpcode, d.HaveAA, d.HaveTC, d.HaveRD = true, true, true, true, true

	b1, ok := need8(d)
	if !ok {
		return ErrMalformed
	}
	d.RA = b1&(1<<7) != 0
	d.Z = b1&(1<<6) != 0
	d.AD = b1&(1<<5) != 0
	d.CD = b1&(1<<4) != 0
	d.Rcode = b1 & 0xf
	d.HaveRA, d.HaveZ, d.HaveAD, d.HaveCD, d.HaveRcode = true, true, true, true, true

	qd, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	d.QDCount, d.HaveQDCount = qd, true

	an, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	d.ANCount, d.HaveANCount = an, true

	ns, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	d.NSCount, d.HaveNSCount = ns, true

	ar, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	d.ARCount, d.HaveARCount = ar, true

	return nil
}

// label walks one domain name starting at d.At, writing up to
// len(labels) entries and returning how many it filled. It stops as
// soon as it reads a terminal (zero) octet, a compression pointer, or
// an extension-bit marker — the only three ways a label chain ends —
// or when the buffer runs out, whichever comes first.
func label(d *object.DNS, labels []object.Label) int {
	n := 0
	for ; d.Left > 0 && n < len(labels); n++ {
		l := &labels[n]
		*l = object.Label{}

		length, ok := need8(d)
		if !ok {
			break
		}

		switch {
		case length&0xc0 == 0xc0:
			lo, ok := need8(d)
			if !ok {
				break
			}
			l.Offset = uint16(lo) | uint16(length&0x3f)<<8
			l.HaveOffset = true
			return n

		case length&0xc0 != 0:
			l.ExtensionBits = length >> 6
			l.HaveExtensionBits = true
			return n

		case length != 0:
			l.HaveLength = true
			l.Length = length
			l.Offset = uint16(d.At - 1)
			if !advancexb(d, int(length)) {
				return n
			}
			l.HaveDN = true

		default:
			l.IsEnd = true
			return n
		}
	}
	return n
}

// labelChainOKAt checks, after a label() call consumed up through index
// idx-1 of the shared labels buffer, that the chain actually terminated
// there (offset/extension-bits/end marker) rather than simply running
// out of buffer space.
func labelChainOKAt(labels []object.Label, idx int) error {
	if idx >= len(labels) {
		return ErrNeedLabels
	}
	l := &labels[idx]
	if !(l.HaveOffset || l.HaveExtensionBits || l.IsEnd) {
		return ErrMalformed
	}
	return nil
}

// ParseQuestion reads one question-section entry (owner name, type,
// class) starting at d.At. labels must have room for the owner name's
// full label chain; ErrNeedLabels means it didn't.
func ParseQuestion(d *object.DNS, q *object.Q, labels []object.Label) error {
	*q = object.Q{}

	q.Labels = label(d, labels)
	if err := labelChainOKAt(labels, q.Labels); err != nil {
		return err
	}
	q.Labels++

	typ, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	q.Type, q.HaveType = typ, true

	class, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	q.Class, q.HaveClass = class, true

	return nil
}

// ParseRR reads one resource record (owner name, type, class, TTL,
// RDLENGTH, and — for the record types whose RDATA embeds compressible
// names — the RDATA's own label chains) starting at d.At. labels must
// have room for both the owner name and every embedded name RDATA
// carries.
func ParseRR(d *object.DNS, rr *object.RR, labels []object.Label) error {
	*rr = object.RR{}

	rr.Labels = label(d, labels)
	if err := labelChainOKAt(labels, rr.Labels); err != nil {
		return err
	}
	rr.Labels++

	typ, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	rr.Type, rr.HaveType = typ, true

	class, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	rr.Class, rr.HaveClass = class, true

	ttl, ok := need32(d)
	if !ok {
		return ErrMalformed
	}
	rr.TTL, rr.HaveTTL = ttl, true

	rdlength, ok := need16(d)
	if !ok {
		return ErrMalformed
	}
	rr.RDLength, rr.HaveRDLength = rdlength, true

	rr.RDataOffset = d.At
	rdataLabelSets := rdataLabels(rr.Type)
	if rdataLabelSets == 0 {
		if !advancexb(d, int(rr.RDLength)) {
			return ErrMalformed
		}
		rr.HaveRData = true
		return nil
	}

	switch rr.Type {
	case typeMX, typeAFSDB, typeRT, typeKX, typeLP, typePX:
		if !advancexb(d, 2) {
			return ErrMalformed
		}

	case typeSIG, typeRRSIG:
		if !advancexb(d, 18) {
			return ErrMalformed
		}

	case typeSRV:
		if !advancexb(d, 6) {
			return ErrMalformed
		}

	case typeNAPTR:
		if !advancexb(d, 4) {
			return ErrMalformed
		}
		for i := 0; i < 3; i++ {
			n, ok := need8(d)
			if !ok {
				return ErrMalformed
			}
			if !advancexb(d, int(n)) {
				return ErrMalformed
			}
		}

	case typeHIP:
		hitLength, ok := need8(d)
		if !ok {
			return ErrMalformed
		}
		if !advancexb(d, 1) {
			return ErrMalformed
		}
		pkLength, ok := need16(d)
		if !ok {
			return ErrMalformed
		}
		if !advancexb(d, int(hitLength)) {
			return ErrMalformed
		}
		if !advancexb(d, int(pkLength)) {
			return ErrMalformed
		}
		if d.At >= rr.RDataOffset+int(rr.RDLength) {
			rdataLabelSets = 0
		}
	}

	for rdataLabelSets > 0 {
		n := label(d, labels[rr.Labels+rr.RDataLabels:])
		rr.RDataLabels += n
		if err := labelChainOKAt(labels, rr.Labels+rr.RDataLabels); err != nil {
			return err
		}
		rr.RDataLabels++

		if rr.Type == typeHIP && d.At < rr.RDataOffset+int(rr.RDLength) {
			continue
		}
		rdataLabelSets--
	}

	switch {
	case d.At < rr.RDataOffset+int(rr.RDLength):
		rr.PaddingOffset = d.At
		rr.PaddingLength = int(rr.RDLength) - (rr.PaddingOffset - rr.RDataOffset)
		if !advancexb(d, rr.PaddingLength) {
			return ErrMalformed
		}
	case d.At > rr.RDataOffset+int(rr.RDLength):
		return ErrMalformed
	}
	rr.HaveRData = true

	return nil
}
