// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object.c, core/object/*.hh (original_source), which
// define a chain of C structs sharing an obj_prev/obj_type header. Go has
// no struct-header aliasing, so the chain is reconstructed with an
// interface and an explicit Prev() accessor instead.

// Package object defines the packet object chain that flows between
// pipeline stages: a PCAP record decodes into a link-layer object, which
// decodes into a network-layer object, and so on up to a DNS message.
// Every stage after the first reaches its ancestors through Prev.
package object

import "fmt"

// Kind identifies the concrete type carried by an Object.
type Kind int32

const (
	KindNone Kind = iota
	KindPCAP
	KindEther
	KindNull
	KindLoop
	KindLinuxSLL
	KindLinuxSLL2
	KindIEEE802
	KindGRE
	KindIP
	KindIP6
	KindICMP
	KindICMP6
	KindUDP
	KindTCP
	KindPayload
	KindDNS
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindPCAP:
		return "pcap"
	case KindEther:
		return "ether"
	case KindNull:
		return "null"
	case KindLoop:
		return "loop"
	case KindLinuxSLL:
		return "linuxsll"
	case KindLinuxSLL2:
		return "linuxsll2"
	case KindIEEE802:
		return "ieee802"
	case KindGRE:
		return "gre"
	case KindIP:
		return "ip"
	case KindIP6:
		return "ip6"
	case KindICMP:
		return "icmp"
	case KindICMP6:
		return "icmp6"
	case KindUDP:
		return "udp"
	case KindTCP:
		return "tcp"
	case KindPayload:
		return "payload"
	case KindDNS:
		return "dns"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Object is the common contract implemented by every object kind in the
// chain. Kind reports the concrete type without a type switch in the hot
// path; Prev walks back toward the capture record.
//
// An Object is either a view or owned. A view borrows the byte slices of
// an earlier object (typically the PCAP record's captured bytes) and
// must never be freed on its own; only the owning object's Free call
// releases the backing storage. Owned objects (produced by Copy) hold
// private copies and must be freed exactly once. See Viewed.
type Object interface {
	Kind() Kind
	Prev() Object
}

// Viewed reports whether obj borrows memory from an ancestor instead of
// owning private storage. Decoder output is always a view over the
// PCAP record's captured bytes; Copy produces owned objects that answer
// false here.
func Viewed(obj Object) bool {
	v, ok := obj.(interface{ viewed() bool })
	return ok && v.viewed()
}

// base is embedded by every concrete object kind. It carries the chain
// link and the owned/view flag so Copy/Free can be implemented once per
// kind without repeating the bookkeeping.
type base struct {
	prev  Object
	owned bool
}

func (b *base) Prev() Object     { return b.prev }
func (b *base) viewed() bool     { return !b.owned }
func (b *base) setPrev(p Object) { b.prev = p }

// Chain walks from obj back through Prev, returning the first ancestor
// (including obj itself) whose Kind equals k, or nil if none matches.
func Chain(obj Object, k Kind) Object {
	for o := obj; o != nil; o = o.Prev() {
		if o.Kind() == k {
			return o
		}
	}
	return nil
}
