// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/linuxsll2.hh (original_source).

package object

// LinuxSLL2 is a Linux "cooked" capture (DLT_LINUX_SLL2, v2) header.
type LinuxSLL2 struct {
	base

	ProtocolType           uint16
	InterfaceIndex         uint32
	ARPHRDType             uint16
	PacketType             uint8
	LinkLayerAddressLength uint8
	LinkLayerAddress       [8]byte
}

func NewLinuxSLL2View(prev Object, protocolType uint16, ifIndex uint32, arphrdType uint16, packetType, addrLen uint8, addr [8]byte) *LinuxSLL2 {
	return &LinuxSLL2{
		base:                   base{prev: prev},
		ProtocolType:           protocolType,
		InterfaceIndex:         ifIndex,
		ARPHRDType:             arphrdType,
		PacketType:             packetType,
		LinkLayerAddressLength: addrLen,
		LinkLayerAddress:       addr,
	}
}

func (l *LinuxSLL2) Kind() Kind { return KindLinuxSLL2 }

func (l *LinuxSLL2) Copy() *LinuxSLL2 {
	cp := *l
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (l *LinuxSLL2) Free() { assertOwned(KindLinuxSLL2, l.owned) }
