// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/pcap.hh, core/object/pcap.c (original_source).

package object

import "time"

// PCAP is the root of every object chain: one captured packet record as
// read from a pcap source (pkg/pcapsrc).
type PCAP struct {
	base

	// Snaplen and Linktype come from the file's global header and are
	// copied onto every record so downstream stages don't need to
	// thread the source alongside the object.
	Snaplen  uint32
	Linktype uint32

	Timestamp time.Time

	// Caplen is len(Bytes); Len is the on-the-wire length, which can
	// exceed Caplen when the capture truncated the packet.
	Caplen uint32
	Len    uint32
	Bytes  []byte

	// Swapped records whether the source file's byte order differed
	// from the host's. The layer decoder reads it to choose the byte
	// order of a DLT_NULL link header.
	Swapped bool
}

// NewPCAPView wraps bytes (owned by the pcap source, not copied) as a
// view PCAP object. The pcap source must keep bytes alive for as long
// as any object views it.
func NewPCAPView(snaplen, linktype uint32, ts time.Time, caplen, length uint32, bytes []byte, swapped bool) *PCAP {
	return &PCAP{
		base:      base{owned: false},
		Snaplen:   snaplen,
		Linktype:  linktype,
		Timestamp: ts,
		Caplen:    caplen,
		Len:       length,
		Bytes:     bytes,
		Swapped:   swapped,
	}
}

func (p *PCAP) Kind() Kind { return KindPCAP }

// Copy returns an owned deep copy whose Bytes slice is private.
func (p *PCAP) Copy() *PCAP {
	cp := *p
	cp.owned = true
	cp.Bytes = append([]byte(nil), p.Bytes...)
	return &cp
}

// Free releases an owned copy's backing buffer. Calling Free on a view
// is a programming error, detected when [Debug] is enabled.
func (p *PCAP) Free() {
	assertOwned(KindPCAP, p.owned)
	p.Bytes = nil
}
