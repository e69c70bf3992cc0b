// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/tcp.hh (original_source).

package object

// TCP is a TCP header, including raw option bytes: Opts holds exactly
// the (Off-5)*4 option bytes the header declares (at most 40 per RFC 793).
type TCP struct {
	base

	Sport uint16
	Dport uint16
	Seq   uint32
	Ack   uint32
	Off   uint8 // data offset in 4-byte words
	Flags uint8
	Win   uint16
	Sum   uint16
	Urp   uint16

	Opts []byte
}

func NewTCPView(prev Object, sport, dport uint16, seq, ack uint32, off, flags uint8, win, sum, urp uint16, opts []byte) *TCP {
	return &TCP{
		base: base{prev: prev},
		Sport: sport, Dport: dport, Seq: seq, Ack: ack,
		Off: off, Flags: flags, Win: win, Sum: sum, Urp: urp, Opts: opts,
	}
}

func (t *TCP) Kind() Kind { return KindTCP }

func (t *TCP) Copy() *TCP {
	cp := *t
	cp.owned = true
	cp.prev = nil
	cp.Opts = append([]byte(nil), t.Opts...)
	return &cp
}

func (t *TCP) Free() {
	assertOwned(KindTCP, t.owned)
	t.Opts = nil
}
