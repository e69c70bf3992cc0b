// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/src/output/fpcap.c's writer half (the
// same 24-byte global header and 16-byte per-record header pkg/pcapsrc
// reads are written back out here) and spec.md §4.J's "PCAP writer:
// writes records back in PCAP format at configured linktype and
// snaplen".

package sinks

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/routing"
)

const pcapMagicNanosec = 0xa1b23c4d

// PCAPWriter writes [object.PCAP] records back out in classic pcap
// format (version 2.4, nanosecond-resolution timestamps) at a fixed
// snaplen and linktype, truncating any record whose captured length
// exceeds the configured snaplen.
type PCAPWriter struct {
	w        *bufio.Writer
	snaplen  uint32
	linktype uint32
	wroteHdr bool
}

// NewPCAPWriter creates a writer emitting records at linktype, each
// truncated to at most snaplen captured bytes.
func NewPCAPWriter(w io.Writer, linktype, snaplen uint32) *PCAPWriter {
	return &PCAPWriter{w: bufio.NewWriter(w), linktype: linktype, snaplen: snaplen}
}

func (p *PCAPWriter) writeGlobalHeader() error {
	var hdr [24]byte
	binary.LittleEndian.PutUint32(hdr[0:4], pcapMagicNanosec)
	binary.LittleEndian.PutUint16(hdr[4:6], 2)
	binary.LittleEndian.PutUint16(hdr[6:8], 4)
	binary.LittleEndian.PutUint32(hdr[16:20], p.snaplen)
	binary.LittleEndian.PutUint32(hdr[20:24], p.linktype)
	_, err := p.w.Write(hdr[:])
	return err
}

// Put writes one record. The first call also writes the file's global
// header. obj must carry a [object.KindPCAP] ancestor.
func (p *PCAPWriter) Put(obj object.Object) error {
	pcap, ok := object.Chain(obj, object.KindPCAP).(*object.PCAP)
	if !ok {
		return fmt.Errorf("sinks: PCAPWriter.Put: object has no pcap ancestor")
	}
	if !p.wroteHdr {
		if err := p.writeGlobalHeader(); err != nil {
			return fmt.Errorf("sinks: writing global header: %w", err)
		}
		p.wroteHdr = true
	}

	data := pcap.Bytes
	caplen := uint32(len(data))
	if caplen > p.snaplen {
		caplen = p.snaplen
		data = data[:caplen]
	}

	var rec [16]byte
	sec := pcap.Timestamp.Unix()
	nsec := pcap.Timestamp.Nanosecond()
	binary.LittleEndian.PutUint32(rec[0:4], uint32(sec))
	binary.LittleEndian.PutUint32(rec[4:8], uint32(nsec))
	binary.LittleEndian.PutUint32(rec[8:12], caplen)
	binary.LittleEndian.PutUint32(rec[12:16], pcap.Len)

	if _, err := p.w.Write(rec[:]); err != nil {
		return fmt.Errorf("sinks: writing record header: %w", err)
	}
	if _, err := p.w.Write(data); err != nil {
		return fmt.Errorf("sinks: writing record body: %w", err)
	}
	return nil
}

// Receiver returns a [routing.Receiver] adapting Put for the push
// contract; write errors are silently dropped from this entry point
// since routing.Receiver has no error return — callers who need to
// observe write failures should call Put directly instead.
func (p *PCAPWriter) Receiver() routing.Receiver {
	return func(obj object.Object) {
		_ = p.Put(obj)
	}
}

// Flush flushes any buffered output to the underlying writer.
func (p *PCAPWriter) Flush() error {
	return p.w.Flush()
}
