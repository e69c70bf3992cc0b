// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/object/linuxsll.hh (original_source).

package object

// LinuxSLL is a Linux "cooked" capture (DLT_LINUX_SLL, v1) header.
type LinuxSLL struct {
	base

	PacketType             uint16
	ARPHardware            uint16
	LinkLayerAddressLength uint16
	LinkLayerAddress       [8]byte
	EtherType              uint16
}

func NewLinuxSLLView(prev Object, packetType, arpHardware, addrLen uint16, addr [8]byte, etherType uint16) *LinuxSLL {
	return &LinuxSLL{
		base:                   base{prev: prev},
		PacketType:             packetType,
		ARPHardware:            arpHardware,
		LinkLayerAddressLength: addrLen,
		LinkLayerAddress:       addr,
		EtherType:              etherType,
	}
}

func (l *LinuxSLL) Kind() Kind { return KindLinuxSLL }

func (l *LinuxSLL) Copy() *LinuxSLL {
	cp := *l
	cp.owned = true
	cp.prev = nil
	return &cp
}

func (l *LinuxSLL) Free() { assertOwned(KindLinuxSLL, l.owned) }
