// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: input/fpcap.c's _open (original_source): magic-byte
// endianness/timestamp-unit detection, the 24-byte global header, the
// version check, the snaplen ceiling and the LINKTYPE_* -> DLT_*
// remapping table (itself credited there to libpcap's pcap-common.c).

// Package pcapsrc reads classic (libpcap, version 2.4) capture files,
// producing a view [object.PCAP] per record for the layer decoder.
package pcapsrc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxSnaplen is the largest snaplen this reader accepts, matching the
// reference implementation's MAX_SNAPLEN guard.
const MaxSnaplen = 0x40000

const (
	magicBE         = 0xa1b2c3d4 // native-endian, microsecond timestamps
	magicLE         = 0xd4c3b2a1 // swapped-endian, microsecond timestamps
	magicNanosecBE  = 0xa1b23c4d // native-endian, nanosecond timestamps
	magicNanosecLE  = 0x4d3cb2a1 // swapped-endian, nanosecond timestamps
)

// GlobalHeader is the 24-byte file header of a classic pcap capture.
type GlobalHeader struct {
	Magic       uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone    int32
	Sigfigs     uint32
	Snaplen     uint32
	Network     uint32

	Swapped    bool
	IsNanosec  bool
	Linktype   uint32
}

// linktypeRemap translates a handful of pcap LINKTYPE_* values to the
// DLT_* constant libpcap's own readers would have produced, per the
// table in fpcap.c (credited there to pcap-common.c). Any value absent
// from this table passes through unchanged.
var linktypeRemap = map[uint32]uint32{
	101: 12,  // LINKTYPE_RAW -> DLT_RAW
	107: 107, // LINKTYPE_FRELAY -> DLT_FR (numerically identical on Linux)
	100: 11,  // LINKTYPE_ATM_RFC1483 -> DLT_ATM_RFC1483
	102: 15,  // LINKTYPE_SLIP_BSDOS -> DLT_SLIP_BSDOS
	103: 16,  // LINKTYPE_PPP_BSDOS -> DLT_PPP_BSDOS
	104: 104, // LINKTYPE_C_HDLC -> DLT_C_HDLC
	106: 106, // LINKTYPE_ATM_CLIP -> DLT_ATM_CLIP
	50:  50,  // LINKTYPE_PPP_HDLC -> DLT_PPP_SERIAL
	51:  51,  // LINKTYPE_PPP_ETHER -> DLT_PPP_ETHER
}

// readGlobalHeader reads and validates the 24-byte file header from r.
func readGlobalHeader(r io.Reader) (GlobalHeader, error) {
	var raw [24]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return GlobalHeader{}, fmt.Errorf("pcapsrc: reading global header: %w", err)
	}

	var h GlobalHeader
	h.Magic = binary.LittleEndian.Uint32(raw[0:4])

	var order binary.ByteOrder = binary.LittleEndian
	switch h.Magic {
	case magicBE:
	case magicNanosecBE:
		h.IsNanosec = true
	case magicLE:
		h.Swapped = true
		order = binary.BigEndian
	case magicNanosecLE:
		h.Swapped = true
		h.IsNanosec = true
		order = binary.BigEndian
	default:
		return GlobalHeader{}, fmt.Errorf("pcapsrc: invalid magic number %#x", h.Magic)
	}

	h.VersionMajor = order.Uint16(raw[4:6])
	h.VersionMinor = order.Uint16(raw[6:8])
	h.ThisZone = int32(order.Uint32(raw[8:12]))
	h.Sigfigs = order.Uint32(raw[12:16])
	h.Snaplen = order.Uint32(raw[16:20])
	h.Network = order.Uint32(raw[20:24])

	if h.Snaplen > MaxSnaplen {
		return GlobalHeader{}, fmt.Errorf("pcapsrc: snaplen %d exceeds maximum %d", h.Snaplen, MaxSnaplen)
	}
	if h.VersionMajor != 2 || h.VersionMinor != 4 {
		return GlobalHeader{}, fmt.Errorf("pcapsrc: unsupported pcap version v%d.%d", h.VersionMajor, h.VersionMinor)
	}

	if mapped, ok := linktypeRemap[h.Network]; ok {
		h.Linktype = mapped
	} else {
		h.Linktype = h.Network
	}

	return h, nil
}

// recordHeader is the 16-byte per-packet header.
type recordHeader struct {
	TsSec   uint32
	TsUsec  uint32
	InclLen uint32
	OrigLen uint32
}

func readRecordHeader(r io.Reader, order binary.ByteOrder) (recordHeader, error) {
	var raw [16]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return recordHeader{}, err
	}
	return recordHeader{
		TsSec:   order.Uint32(raw[0:4]),
		TsUsec:  order.Uint32(raw[4:8]),
		InclLen: order.Uint32(raw[8:12]),
		OrigLen: order.Uint32(raw[12:16]),
	}, nil
}
