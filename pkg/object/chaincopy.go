// SPDX-License-Identifier: GPL-3.0-or-later

package object

// CopyChain returns a fully owned copy of obj and every object in its
// Prev chain, suitable for crossing a goroutine boundary (spec.md §5,
// §9: objects crossing threads are deep-copied at the boundary). Each
// kind's own Copy detaches its result's Prev, so CopyChain recurses
// into the ancestor first and relinks the copy afterward, leaving the
// copied chain the same shape as the original.
func CopyChain(obj Object) Object {
	if obj == nil {
		return nil
	}
	var prevCopy Object
	if p := obj.Prev(); p != nil {
		prevCopy = CopyChain(p)
	}
	cp := copyOne(obj)
	if s, ok := cp.(prevSetter); ok {
		s.setPrev(prevCopy)
	}
	return cp
}

// FreeChain releases obj and every object in its Prev chain, undoing a
// prior CopyChain. Every object in the chain must be owned.
func FreeChain(obj Object) {
	for o := obj; o != nil; {
		next := o.Prev()
		freeOne(o)
		o = next
	}
}

type prevSetter interface {
	setPrev(Object)
}

func copyOne(obj Object) Object {
	switch v := obj.(type) {
	case *PCAP:
		return v.Copy()
	case *Ether:
		return v.Copy()
	case *Null:
		return v.Copy()
	case *Loop:
		return v.Copy()
	case *LinuxSLL:
		return v.Copy()
	case *LinuxSLL2:
		return v.Copy()
	case *IEEE802:
		return v.Copy()
	case *GRE:
		return v.Copy()
	case *IP:
		return v.Copy()
	case *IP6:
		return v.Copy()
	case *ICMP:
		return v.Copy()
	case *ICMP6:
		return v.Copy()
	case *UDP:
		return v.Copy()
	case *TCP:
		return v.Copy()
	case *Payload:
		return v.Copy()
	case *DNS:
		return v.Copy()
	default:
		return obj
	}
}

func freeOne(obj Object) {
	switch v := obj.(type) {
	case *PCAP:
		v.Free()
	case *Ether:
		v.Free()
	case *Null:
		v.Free()
	case *Loop:
		v.Free()
	case *LinuxSLL:
		v.Free()
	case *LinuxSLL2:
		v.Free()
	case *IEEE802:
		v.Free()
	case *GRE:
		v.Free()
	case *IP:
		v.Free()
	case *IP6:
		v.Free()
	case *ICMP:
		v.Free()
	case *ICMP6:
		v.Free()
	case *UDP:
		v.Free()
	case *TCP:
		v.Free()
	case *Payload:
		v.Free()
	case *DNS:
		v.Free()
	}
}
