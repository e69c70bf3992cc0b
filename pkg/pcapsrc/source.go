// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: input/fpcap.c's _open/input_fpcap_run (original_source).
// The reference implementation reuses one malloc'd buffer across every
// record, relying on single-threaded, synchronous delivery to the
// registered receiver before the next read overwrites it; this Source
// does the same with one reused []byte, so callers (pkg/layer, the
// worker pool's Copy hook) must treat the [object.PCAP] handed to recv
// as a view valid only until the next call to Run's receiver returns.

package pcapsrc

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/dnsreplay/engine/pkg/object"
)

// Receiver consumes one decoded pcap record.
type Receiver func(pkt *object.PCAP)

// Source reads sequential pcap records from an io.Reader.
type Source struct {
	r     io.Reader
	order binary.ByteOrder
	hdr   GlobalHeader
	buf   []byte
	closer func() error

	Packets uint64
}

// Close releases any resources backing the Source (an mmap'd region, an
// open file). Sources created from a plain io.Reader via [Open] have
// nothing to release and Close is a no-op.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Open reads and validates the global header from r, returning a
// Source ready to Run over its records.
func Open(r io.Reader) (*Source, error) {
	hdr, err := readGlobalHeader(r)
	if err != nil {
		return nil, err
	}
	order := byteOrderFor(hdr)
	return &Source{
		r:     r,
		order: order,
		hdr:   hdr,
		buf:   make([]byte, hdr.Snaplen),
	}, nil
}

func byteOrderFor(hdr GlobalHeader) binary.ByteOrder {
	if hdr.Swapped {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Header returns the parsed global header.
func (s *Source) Header() GlobalHeader { return s.hdr }

// Next reads and returns one record as a view PCAP object reusing the
// Source's internal buffer, or io.EOF when the stream is exhausted.
func (s *Source) Next() (*object.PCAP, error) {
	rh, err := readRecordHeader(s.r, s.order)
	if err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if rh.InclLen > s.hdr.Snaplen {
		return nil, fmt.Errorf("pcapsrc: record length %d exceeds snaplen %d", rh.InclLen, s.hdr.Snaplen)
	}

	n, err := io.ReadFull(s.r, s.buf[:rh.InclLen])
	if err != nil {
		return nil, fmt.Errorf("pcapsrc: short record read: %w", err)
	}
	s.Packets++

	ts := tsFromRecord(rh, s.hdr.IsNanosec)
	return object.NewPCAPView(s.hdr.Snaplen, s.hdr.Linktype, ts, uint32(n), rh.OrigLen, s.buf[:n], s.hdr.Swapped), nil
}

func tsFromRecord(rh recordHeader, nanosec bool) time.Time {
	if nanosec {
		return time.Unix(int64(rh.TsSec), int64(rh.TsUsec)).UTC()
	}
	return time.Unix(int64(rh.TsSec), int64(rh.TsUsec)*1000).UTC()
}

// Run delivers every record in order to recv until the stream is
// exhausted or a read error occurs.
func (s *Source) Run(recv Receiver) error {
	for {
		pkt, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		recv(pkt)
	}
}
