// SPDX-License-Identifier: GPL-3.0-or-later

package dnswire_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/dnswire"
	"github.com/dnsreplay/engine/pkg/object"
)

func appendU16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendU32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendName(b []byte, labels ...string) []byte {
	for _, l := range labels {
		b = append(b, byte(len(l)))
		b = append(b, l...)
	}
	return append(b, 0)
}

func queryMessage(t *testing.T, id uint16, qname []string, qtype, qclass uint16) []byte {
	t.Helper()
	msg := appendU16(nil, id)
	msg = append(msg, 0x01, 0x00) // RD set, standard query
	msg = appendU16(msg, 1)       // QDCOUNT
	msg = appendU16(msg, 0)       // ANCOUNT
	msg = appendU16(msg, 0)       // NSCOUNT
	msg = appendU16(msg, 0)       // ARCOUNT
	msg = appendName(msg, qname...)
	msg = appendU16(msg, qtype)
	msg = appendU16(msg, qclass)
	return msg
}

func TestParseHeaderQuery(t *testing.T) {
	msg := queryMessage(t, 0x1234, []string{"example", "com"}, 1, 1)
	d := object.NewDNSView(nil, msg)

	require.NoError(t, dnswire.ParseHeader(d))
	assert.True(t, d.HaveID)
	assert.EqualValues(t, 0x1234, d.ID)
	assert.True(t, d.RD)
	assert.False(t, d.QR)
	assert.EqualValues(t, 1, d.QDCount)
	assert.EqualValues(t, 0, d.ANCount)
}

func TestParseHeaderWithDNSLenPrefix(t *testing.T) {
	msg := queryMessage(t, 7, []string{"a"}, 1, 1)
	framed := appendU16(nil, uint16(len(msg)))
	framed = append(framed, msg...)

	d := object.NewDNSView(nil, framed)
	d.IncludesDNSLen = true

	require.NoError(t, dnswire.ParseHeader(d))
	assert.True(t, d.HaveDNSLen)
	assert.EqualValues(t, len(msg), d.DNSLen)
	assert.EqualValues(t, 7, d.ID)
}

func TestParseHeaderTruncatedReturnsMalformed(t *testing.T) {
	d := object.NewDNSView(nil, []byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, dnswire.ParseHeader(d), dnswire.ErrMalformed)
}

func TestParseQuestionReadsOwnerNameAndType(t *testing.T) {
	msg := queryMessage(t, 1, []string{"www", "example", "org"}, 28, 1) // AAAA
	d := object.NewDNSView(nil, msg)
	require.NoError(t, dnswire.ParseHeader(d))

	labels := make([]object.Label, 8)
	var q object.Q
	require.NoError(t, dnswire.ParseQuestion(d, &q, labels))

	assert.EqualValues(t, 28, q.Type)
	assert.EqualValues(t, 1, q.Class)
	assert.Equal(t, 4, q.Labels) // www, example, org, terminal

	assert.True(t, labels[0].HaveDN)
	assert.EqualValues(t, 3, labels[0].Length)
	assert.True(t, labels[1].HaveDN)
	assert.EqualValues(t, 7, labels[1].Length)
	assert.True(t, labels[2].HaveDN)
	assert.EqualValues(t, 3, labels[2].Length)
	assert.True(t, labels[3].IsEnd)
}

func TestParseQuestionNeedsMoreLabelsWhenBufferTooSmall(t *testing.T) {
	msg := queryMessage(t, 1, []string{"www", "example", "org"}, 1, 1)
	d := object.NewDNSView(nil, msg)
	require.NoError(t, dnswire.ParseHeader(d))

	labels := make([]object.Label, 2) // too small for 4 labels (3 + terminal)
	var q object.Q
	assert.ErrorIs(t, dnswire.ParseQuestion(d, &q, labels), dnswire.ErrNeedLabels)
}

func TestParseQuestionFollowsCompressionPointer(t *testing.T) {
	// Owner name is a pointer to offset 0 (not resolved here — dnswire
	// only records the pointer, resolution is a caller concern).
	msg := []byte{0xc0, 0x00}
	msg = appendU16(msg, 1)
	msg = appendU16(msg, 1)
	d := object.NewDNSView(nil, msg)
	d.At, d.Left = 0, len(msg)

	labels := make([]object.Label, 4)
	var q object.Q
	require.NoError(t, dnswire.ParseQuestion(d, &q, labels))
	assert.Equal(t, 1, q.Labels)
	assert.True(t, labels[0].HaveOffset)
	assert.EqualValues(t, 0, labels[0].Offset)
}

func TestParseRROpaqueRDATA(t *testing.T) {
	buf := appendName(nil, "host", "example", "net")
	buf = appendU16(buf, 1)          // A
	buf = appendU16(buf, 1)          // IN
	buf = appendU32(buf, 300)        // TTL
	buf = appendU16(buf, 4)          // RDLENGTH
	buf = append(buf, 192, 0, 2, 1) // RDATA

	d := object.NewDNSView(nil, buf)
	d.At, d.Left = 0, len(buf)

	labels := make([]object.Label, 8)
	var rr object.RR
	require.NoError(t, dnswire.ParseRR(d, &rr, labels))

	assert.EqualValues(t, 1, rr.Type)
	assert.EqualValues(t, 300, rr.TTL)
	assert.EqualValues(t, 4, rr.RDLength)
	assert.True(t, rr.HaveRData)
	assert.Equal(t, 0, rr.RDataLabels)
	assert.Equal(t, len(buf), d.At) // fully consumed, no trailing padding
}

func TestParseRRCNAMEWalksRDATALabels(t *testing.T) {
	buf := appendName(nil, "alias", "example", "com")
	buf = appendU16(buf, 5) // CNAME
	buf = appendU16(buf, 1)
	buf = appendU32(buf, 60)
	rdata := appendName(nil, "target", "example", "com")
	buf = appendU16(buf, uint16(len(rdata)))
	buf = append(buf, rdata...)

	d := object.NewDNSView(nil, buf)
	d.At, d.Left = 0, len(buf)

	labels := make([]object.Label, 16)
	var rr object.RR
	require.NoError(t, dnswire.ParseRR(d, &rr, labels))

	assert.True(t, rr.HaveRData)
	assert.Equal(t, 4, rr.RDataLabels) // target, example, com, terminal
	assert.True(t, labels[rr.Labels].HaveDN)
}

func TestParseRRPaddingWhenRDATANameIsShorterThanDeclaredLength(t *testing.T) {
	// NS records carry a single compressible name in RDATA; declaring
	// RDLENGTH two bytes longer than the encoded name's actual length
	// leaves trailing captured bytes as padding once the name is walked.
	buf := appendName(nil, "owner")
	buf = appendU16(buf, 2) // NS
	buf = appendU16(buf, 1)
	buf = appendU32(buf, 60)

	rdataName := appendName(nil, "ns1", "example", "com")
	buf = appendU16(buf, uint16(len(rdataName)+2)) // RDLENGTH overstates by 2
	buf = append(buf, rdataName...)
	buf = append(buf, 0xAA, 0xBB) // the 2 extra captured bytes

	d := object.NewDNSView(nil, buf)
	d.At, d.Left = 0, len(buf)

	labels := make([]object.Label, 8)
	var rr object.RR
	require.NoError(t, dnswire.ParseRR(d, &rr, labels))
	assert.Equal(t, 2, rr.PaddingLength)
	assert.Equal(t, len(buf), d.At)
}
