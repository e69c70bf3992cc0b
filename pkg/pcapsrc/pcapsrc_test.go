// SPDX-License-Identifier: GPL-3.0-or-later

package pcapsrc_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/pcapsrc"
)

func globalHeader(order binary.ByteOrder, magic uint32, snaplen, network uint32) []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], magic) // magic is always read little-endian first
	order.PutUint16(buf[4:6], 2)
	order.PutUint16(buf[6:8], 4)
	order.PutUint32(buf[8:12], 0)
	order.PutUint32(buf[12:16], 0)
	order.PutUint32(buf[16:20], snaplen)
	order.PutUint32(buf[20:24], network)
	return buf
}

func record(order binary.ByteOrder, sec, usec uint32, payload []byte) []byte {
	buf := make([]byte, 16+len(payload))
	order.PutUint32(buf[0:4], sec)
	order.PutUint32(buf[4:8], usec)
	order.PutUint32(buf[8:12], uint32(len(payload)))
	order.PutUint32(buf[12:16], uint32(len(payload)))
	copy(buf[16:], payload)
	return buf
}

func TestOpenNativeEndianAndOneRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0xa1b2c3d4, 65535, 1))
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	buf.Write(record(binary.LittleEndian, 1700000000, 123456, payload))

	src, err := pcapsrc.Open(&buf)
	require.NoError(t, err)
	assert.False(t, src.Header().Swapped)
	assert.Equal(t, uint32(1), src.Header().Linktype)

	pkt, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, payload, pkt.Bytes)
	assert.Equal(t, uint32(len(payload)), pkt.Caplen)
}

func TestOpenSwappedEndian(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.BigEndian, 0xd4c3b2a1, 65535, 1))
	buf.Write(record(binary.BigEndian, 1, 2, []byte{1, 2, 3}))

	src, err := pcapsrc.Open(&buf)
	require.NoError(t, err)
	assert.True(t, src.Header().Swapped)

	pkt, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, pkt.Bytes)
}

func TestOpenRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0x12345678, 65535, 1))
	_, err := pcapsrc.Open(&buf)
	assert.Error(t, err)
}

func TestOpenRejectsOversizeSnaplen(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0xa1b2c3d4, pcapsrc.MaxSnaplen+1, 1))
	_, err := pcapsrc.Open(&buf)
	assert.Error(t, err)
}

func TestOpenRejectsUnsupportedVersion(t *testing.T) {
	buf24 := globalHeader(binary.LittleEndian, 0xa1b2c3d4, 65535, 1)
	binary.LittleEndian.PutUint16(buf24[6:8], 3) // minor version 3
	_, err := pcapsrc.Open(bytes.NewReader(buf24))
	assert.Error(t, err)
}

func TestLinktypeRemapApplied(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0xa1b2c3d4, 65535, 101)) // LINKTYPE_RAW
	src, err := pcapsrc.Open(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(12), src.Header().Linktype)
}

func TestRecordLargerThanSnaplenFails(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0xa1b2c3d4, 4, 1))
	buf.Write(record(binary.LittleEndian, 0, 0, []byte{1, 2, 3, 4, 5}))

	src, err := pcapsrc.Open(&buf)
	require.NoError(t, err)
	_, err = src.Next()
	assert.Error(t, err)
}

func TestRunDeliversAllRecordsInOrder(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(globalHeader(binary.LittleEndian, 0xa1b2c3d4, 65535, 1))
	buf.Write(record(binary.LittleEndian, 1, 0, []byte{1}))
	buf.Write(record(binary.LittleEndian, 2, 0, []byte{2}))
	buf.Write(record(binary.LittleEndian, 3, 0, []byte{3}))

	src, err := pcapsrc.Open(&buf)
	require.NoError(t, err)

	var got []byte
	require.NoError(t, src.Run(func(pkt *object.PCAP) {
		got = append(got, pkt.Bytes[0])
	}))
	assert.Equal(t, []byte{1, 2, 3}, got)
}
