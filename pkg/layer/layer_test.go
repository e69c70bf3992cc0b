// SPDX-License-Identifier: GPL-3.0-or-later

package layer_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/layer"
	"github.com/dnsreplay/engine/pkg/object"
)

func pcapFrame(linktype uint32, bytes []byte) *object.PCAP {
	return object.NewPCAPView(65535, linktype, time.Now(), uint32(len(bytes)), uint32(len(bytes)), bytes, false)
}

// buildEtherIPv4UDP builds an Ethernet/IPv4/UDP frame carrying payload.
func buildEtherIPv4UDP(t *testing.T, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 0, 14+20+8+len(payload))
	buf = append(buf, make([]byte, 12)...) // dhost+shost
	buf = appendU16(buf, 0x0800)           // ethertype IPv4

	ipHeaderLen := 20
	totalLen := ipHeaderLen + 8 + len(payload)
	ipHdr := make([]byte, ipHeaderLen)
	ipHdr[0] = 0x45 // version 4, hl 5
	binary.BigEndian.PutUint16(ipHdr[2:4], uint16(totalLen))
	ipHdr[8] = 64   // ttl
	ipHdr[9] = 17   // udp
	copy(ipHdr[12:16], []byte{10, 0, 0, 1})
	copy(ipHdr[16:20], []byte{10, 0, 0, 2})
	buf = append(buf, ipHdr...)

	udpHdr := make([]byte, 8)
	binary.BigEndian.PutUint16(udpHdr[0:2], 5353)
	binary.BigEndian.PutUint16(udpHdr[2:4], 53)
	binary.BigEndian.PutUint16(udpHdr[4:6], uint16(8+len(payload)))
	buf = append(buf, udpHdr...)
	buf = append(buf, payload...)

	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func TestDecodeEtherIPv4UDPReachesPayload(t *testing.T) {
	payload := []byte("hello dns")
	frame := buildEtherIPv4UDP(t, payload)
	pkt := pcapFrame(1, frame) // DLT_EN10MB

	d := layer.New(nil)
	obj, deliver := d.Decode(pkt)
	require.True(t, deliver)

	p, ok := obj.(*object.Payload)
	require.True(t, ok, "expected a Payload object, got %T", obj)
	assert.Equal(t, payload, p.Bytes)
	assert.Equal(t, 0, p.Padding)

	udp, _ := p.Prev().(*object.UDP)
	require.NotNil(t, udp)
	assert.Equal(t, uint16(5353), udp.Sport)
	assert.Equal(t, uint16(53), udp.Dport)

	ip, _ := object.Chain(p, object.KindIP).(*object.IP)
	require.NotNil(t, ip)
	assert.Equal(t, [4]byte{10, 0, 0, 1}, ip.Src)

	ether := object.Chain(p, object.KindEther)
	require.NotNil(t, ether)

	pcapAncestor := object.Chain(p, object.KindPCAP)
	assert.Same(t, pkt, pcapAncestor)
}

func TestDecodeTruncatedEtherFallsBackToPCAP(t *testing.T) {
	frame := []byte{1, 2, 3} // far too short for an Ethernet header
	pkt := pcapFrame(1, frame)

	d := layer.New(nil)
	obj, deliver := d.Decode(pkt)
	require.True(t, deliver)
	assert.Same(t, pkt, obj)
}

func TestDecodeUnknownLinktypeReturnsPCAP(t *testing.T) {
	pkt := pcapFrame(9999, []byte{1, 2, 3, 4})
	d := layer.New(nil)
	obj, deliver := d.Decode(pkt)
	require.True(t, deliver)
	assert.Same(t, pkt, obj)
}

func TestDecodeRawIPv4(t *testing.T) {
	ipHdr := make([]byte, 20)
	ipHdr[0] = 0x45
	binary.BigEndian.PutUint16(ipHdr[2:4], 20)
	ipHdr[9] = 6 // tcp, but no tcp header bytes follow -> falls back to IP
	pkt := pcapFrame(12, ipHdr) // DLT_RAW (remapped)

	d := layer.New(nil)
	obj, deliver := d.Decode(pkt)
	require.True(t, deliver)
	ip, ok := obj.(*object.IP)
	require.True(t, ok, "expected fallback to IP object, got %T", obj)
	assert.Equal(t, uint8(6), ip.P)
}
