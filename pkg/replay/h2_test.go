// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

func TestAllocStreamOddIncreasingIDs(t *testing.T) {
	h := newH2State(&fakeConn{}, "a", "/p", false, 512)

	q1, q2 := &Query{ID: 1}, &Query{ID: 2}
	id1 := h.allocStream(q1)
	id2 := h.allocStream(q2)

	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(3), id2)
	assert.Equal(t, id1, q1.StreamID)
	assert.Equal(t, id2, q2.StreamID)
	assert.Equal(t, 2, h.openStreams)
}

func TestCongestedReflectsPeerCeiling(t *testing.T) {
	h := newH2State(&fakeConn{}, "a", "/p", false, 512)
	h.maxConcurrentStreams = 2

	assert.False(t, h.congested())
	h.allocStream(&Query{ID: 1})
	assert.False(t, h.congested())
	h.allocStream(&Query{ID: 2})
	assert.True(t, h.congested())
}

func TestCloseStreamDecrementsOpenStreams(t *testing.T) {
	h := newH2State(&fakeConn{}, "a", "/p", false, 512)
	id := h.allocStream(&Query{ID: 1})
	h.closeStream(id)
	assert.Equal(t, 0, h.openStreams)
	_, ok := h.streams[id]
	assert.False(t, ok)
}

func TestHandshakeWritesPrefaceThenSettings(t *testing.T) {
	fc := &fakeConn{}
	h := newH2State(fc, "a", "/p", false, 512)

	require.NoError(t, h.handshake(fc))
	require.GreaterOrEqual(t, fc.writeCount(), 2)
	assert.Equal(t, []byte(h2Preface), fc.writes[0])
}

func TestSubmitPOSTWritesHeadersAndData(t *testing.T) {
	fc := &fakeConn{}
	h := newH2State(fc, "resolver.example", "/dns-query", false, 512)

	q := &Query{ID: 42, Raw: []byte{1, 2, 3}}
	id, err := h.submit(q)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, uint32(1), q.StreamID)
	assert.GreaterOrEqual(t, fc.writeCount(), 2)
}

func TestSubmitGETEnforcesLengthBound(t *testing.T) {
	fc := &fakeConn{}
	h := newH2State(fc, "resolver.example", "/dns-query", true, 20)

	q := &Query{ID: 1, Raw: []byte("0123456789abcdef")}
	_, err := h.submit(q)
	assert.Error(t, err)
}

func TestSubmitGETWithinBoundEncodesQuery(t *testing.T) {
	fc := &fakeConn{}
	h := newH2State(fc, "resolver.example", "/dns-query", true, 4096)

	q := &Query{ID: 1, Raw: []byte{1, 2, 3}}
	id, err := h.submit(q)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), id)
}

func TestDoHPathSplitsAuthorityAndPath(t *testing.T) {
	authority, path, err := doHPath("https://resolver.example/dns-query")
	require.NoError(t, err)
	assert.Equal(t, "resolver.example", authority)
	assert.Equal(t, "/dns-query", path)
}

func TestDoHPathDefaultsToRootPath(t *testing.T) {
	authority, path, err := doHPath("https://resolver.example")
	require.NoError(t, err)
	assert.Equal(t, "resolver.example", authority)
	assert.Equal(t, "/", path)
}

func TestApplyPeerSettingsTracksExplicitLimit(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)
	go peer.WriteSettings(http2.Setting{ID: http2.SettingMaxConcurrentStreams, Val: 5})

	h := newH2State(c2, "resolver.example", "/dns-query", false, 512)
	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	sf, ok := f.(*http2.SettingsFrame)
	require.True(t, ok)

	drained := make(chan struct{})
	go func() {
		buf := make([]byte, 64)
		c1.Read(buf)
		close(drained)
	}()

	require.NoError(t, h.applyPeerSettings(sf))
	<-drained
	assert.Equal(t, 5, h.maxConcurrentStreams)
	assert.True(t, h.peerSettingsSeen)
}

func TestApplyPeerSettingsUnlimitedFallbackWhenOmitted(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)
	go peer.WriteSettings(http2.Setting{ID: http2.SettingMaxFrameSize, Val: 16384})

	h := newH2State(c2, "resolver.example", "/dns-query", false, 512)
	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	sf := f.(*http2.SettingsFrame)

	go func() {
		buf := make([]byte, 64)
		c1.Read(buf)
	}()

	require.NoError(t, h.applyPeerSettings(sf))
	assert.Equal(t, h2Unlimited, h.maxConcurrentStreams)
}

func TestHandleHeadersAcceptsSuccessStatus(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)

	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	enc.WriteField(hpack.HeaderField{Name: ":status", Value: "200"})
	go peer.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: buf.Bytes(), EndStream: true, EndHeaders: true})

	h := newH2State(c2, "a", "/p", false, 512)
	h.streams[1] = &h2Stream{query: &Query{ID: 7}}

	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	hf, ok := f.(*http2.HeadersFrame)
	require.True(t, ok)

	st, err := h.handleHeaders(hf)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 200, st.status)
	assert.True(t, st.sawHeader)
}

func TestHandleHeadersRejectsNonSuccessStatus(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)

	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	enc.WriteField(hpack.HeaderField{Name: ":status", Value: "500"})
	go peer.WriteHeaders(http2.HeadersFrameParam{StreamID: 1, BlockFragment: buf.Bytes(), EndStream: true, EndHeaders: true})

	h := newH2State(c2, "a", "/p", false, 512)
	h.streams[1] = &h2Stream{query: &Query{ID: 7}}

	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	hf := f.(*http2.HeadersFrame)

	st, err := h.handleHeaders(hf)
	assert.ErrorIs(t, err, ErrH2StatusRejected)
	require.NotNil(t, st)
	assert.Equal(t, 500, st.status)
}

func TestHandleHeadersIgnoresUnknownStream(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)

	var buf bytes.Buffer
	enc := hpack.NewEncoder(&buf)
	enc.WriteField(hpack.HeaderField{Name: ":status", Value: "200"})
	go peer.WriteHeaders(http2.HeadersFrameParam{StreamID: 9, BlockFragment: buf.Bytes(), EndStream: true, EndHeaders: true})

	h := newH2State(c2, "a", "/p", false, 512)

	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	hf := f.(*http2.HeadersFrame)

	st, err := h.handleHeaders(hf)
	assert.NoError(t, err)
	assert.Nil(t, st)
}

func TestHandleDataAccumulatesPayload(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)
	go peer.WriteData(1, true, []byte("hello"))

	h := newH2State(c2, "a", "/p", false, 512)
	h.streams[1] = &h2Stream{query: &Query{ID: 7}}

	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	df := f.(*http2.DataFrame)

	st, err := h.handleData(df)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, []byte("hello"), st.data)
}

func TestHandleDataEnforcesAccumulatedCap(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()
	peer := http2.NewFramer(c1, c1)
	go peer.WriteData(1, true, []byte("X"))

	h := newH2State(c2, "a", "/p", false, 512)
	h.streams[1] = &h2Stream{query: &Query{ID: 7}, data: make([]byte, h2MaxResponseAccumulated)}

	f, err := h.framer.ReadFrame()
	require.NoError(t, err)
	df := f.(*http2.DataFrame)

	st, err := h.handleData(df)
	assert.ErrorIs(t, err, ErrH2ResponseTooLarge)
	require.NotNil(t, st)
}
