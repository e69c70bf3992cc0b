// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/dns.c's need8/need16/need32/needxb/advancexb
// macros (original_source), operating directly on an object.DNS's
// At/Left cursor instead of a local (p, l) pair so every parse step
// leaves the view in a state callers can inspect after a short read.

package dnswire

import (
	"encoding/binary"

	"github.com/dnsreplay/engine/pkg/object"
)

func need8(d *object.DNS) (v uint8, ok bool) {
	if d.Left < 1 {
		return 0, false
	}
	v = d.Payload[d.At]
	d.At++
	d.Left--
	return v, true
}

func need16(d *object.DNS) (v uint16, ok bool) {
	if d.Left < 2 {
		return 0, false
	}
	v = binary.BigEndian.Uint16(d.Payload[d.At:])
	d.At += 2
	d.Left -= 2
	return v, true
}

func need32(d *object.DNS) (v uint32, ok bool) {
	if d.Left < 4 {
		return 0, false
	}
	v = binary.BigEndian.Uint32(d.Payload[d.At:])
	d.At += 4
	d.Left -= 4
	return v, true
}

func advancexb(d *object.DNS, n int) bool {
	if n < 0 || d.Left < n {
		return false
	}
	d.At += n
	d.Left -= n
	return true
}
