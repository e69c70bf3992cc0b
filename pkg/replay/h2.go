// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I's HTTP/2 mode description, implemented
// directly against golang.org/x/net/http2's frame-level Framer/hpack
// primitives (rather than http2.Transport, which hides exactly the
// peer-SETTINGS/congestion bookkeeping this mode must track) —
// generalizing the teacher's own use of golang.org/x/net/http2 in
// httpconn.go (there, as a client transport's ALPN-selected
// round-tripper) to a hand-rolled minimal client that can observe and
// react to individual frames.

package replay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

const (
	h2Preface               = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"
	h2DefaultMaxConcurrent   = 100
	h2Unlimited              = 1 << 30
	h2MaxFrameSize           = 65535
	h2MaxResponseAccumulated = 65535
)

// h2State is the HTTP/2-specific bookkeeping attached to a [Connection]
// in H2 mode.
type h2State struct {
	framer *http2.Framer
	hpackW *hpack.Encoder
	hpackWBuf bytes.Buffer

	nextStreamID uint32

	maxConcurrentStreams int
	peerSettingsSeen     bool
	openStreams          int

	// streams maps an open HTTP/2 stream id to the query it is
	// carrying the request/response for.
	streams map[uint32]*h2Stream

	authority string
	path      string
	useGET    bool
	maxGETLen int
}

// h2Stream accumulates one request/response exchange.
type h2Stream struct {
	query     *Query
	data      []byte
	status    int
	sawHeader bool
}

func newH2State(conn net.Conn, authority, path string, useGET bool, maxGETLen int) *h2State {
	fr := http2.NewFramer(conn, conn)
	return &h2State{
		framer:                fr,
		nextStreamID:          1,
		maxConcurrentStreams:  h2DefaultMaxConcurrent,
		streams:               make(map[uint32]*h2Stream),
		authority:             authority,
		path:                  path,
		useGET:                useGET,
		maxGETLen:             maxGETLen,
	}
}

// handshake writes the client preface and initial SETTINGS frame,
// advertising MAX_FRAME_SIZE=65535 and ENABLE_PUSH=0 per spec.md §4.I.
func (h *h2State) handshake(conn net.Conn) error {
	if _, err := conn.Write([]byte(h2Preface)); err != nil {
		return err
	}
	return h.framer.WriteSettings(
		http2.Setting{ID: http2.SettingMaxFrameSize, Val: h2MaxFrameSize},
		http2.Setting{ID: http2.SettingEnablePush, Val: 0},
	)
}

// applyPeerSettings updates maxConcurrentStreams from the peer's
// SETTINGS frame. The first SETTINGS frame that omits
// MAX_CONCURRENT_STREAMS switches the limit to "unlimited", per
// spec.md §4.I.
func (h *h2State) applyPeerSettings(f *http2.SettingsFrame) error {
	if f.IsAck() {
		return nil
	}
	sawLimit := false
	err := f.ForeachSetting(func(s http2.Setting) error {
		if s.ID == http2.SettingMaxConcurrentStreams {
			sawLimit = true
			h.maxConcurrentStreams = int(s.Val)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !h.peerSettingsSeen && !sawLimit {
		h.maxConcurrentStreams = h2Unlimited
	}
	h.peerSettingsSeen = true
	return h.framer.WriteSettingsAck()
}

// congested reports whether open_streams has reached the peer's
// advertised ceiling.
func (h *h2State) congested() bool {
	return h.openStreams >= h.maxConcurrentStreams
}

// submit issues a new request for query over a fresh stream, using
// POST (DATA frame payload) or GET (base64url query parameter)
// depending on h.useGET.
func (h *h2State) submit(q *Query) (uint32, error) {
	if h.useGET {
		return h.submitGET(q)
	}
	return h.submitPOST(q)
}

func (h *h2State) submitPOST(q *Query) (uint32, error) {
	streamID := h.allocStream(q)
	h.hpackWBuf.Reset()
	enc := hpack.NewEncoder(&h.hpackWBuf)
	enc.WriteField(hpack.HeaderField{Name: ":method", Value: "POST"})
	enc.WriteField(hpack.HeaderField{Name: ":scheme", Value: "https"})
	enc.WriteField(hpack.HeaderField{Name: ":authority", Value: h.authority})
	enc.WriteField(hpack.HeaderField{Name: ":path", Value: h.path})
	enc.WriteField(hpack.HeaderField{Name: "content-type", Value: "application/dns-message"})
	enc.WriteField(hpack.HeaderField{Name: "accept", Value: "application/dns-message"})
	if err := h.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: h.hpackWBuf.Bytes(),
		EndStream:     false,
		EndHeaders:    true,
	}); err != nil {
		return 0, err
	}
	if err := h.framer.WriteData(streamID, true, q.Raw); err != nil {
		return 0, err
	}
	return streamID, nil
}

func (h *h2State) submitGET(q *Query) (uint32, error) {
	b64 := base64.RawURLEncoding.EncodeToString(q.Raw)
	path := h.path + "?dns=" + b64
	if len(path) > h.maxGETLen {
		return 0, fmt.Errorf("replay: DoH GET URI exceeds configured bound (%d > %d)", len(path), h.maxGETLen)
	}
	streamID := h.allocStream(q)
	h.hpackWBuf.Reset()
	enc := hpack.NewEncoder(&h.hpackWBuf)
	enc.WriteField(hpack.HeaderField{Name: ":method", Value: "GET"})
	enc.WriteField(hpack.HeaderField{Name: ":scheme", Value: "https"})
	enc.WriteField(hpack.HeaderField{Name: ":authority", Value: h.authority})
	enc.WriteField(hpack.HeaderField{Name: ":path", Value: path})
	enc.WriteField(hpack.HeaderField{Name: "accept", Value: "application/dns-message"})
	if err := h.framer.WriteHeaders(http2.HeadersFrameParam{
		StreamID:      streamID,
		BlockFragment: h.hpackWBuf.Bytes(),
		EndStream:     true,
		EndHeaders:    true,
	}); err != nil {
		return 0, err
	}
	return streamID, nil
}

func (h *h2State) allocStream(q *Query) uint32 {
	id := h.nextStreamID
	h.nextStreamID += 2
	h.streams[id] = &h2Stream{query: q}
	h.openStreams++
	q.StreamID = id
	return id
}

// ErrH2ResponseTooLarge is returned when accumulated DATA for one
// stream exceeds 65535 bytes, per spec.md §4.I.
var ErrH2ResponseTooLarge = fmt.Errorf("replay: h2 response exceeds 65535 bytes")

// ErrH2StatusRejected is returned when a response's :status is outside
// 1xx/2xx.
var ErrH2StatusRejected = fmt.Errorf("replay: h2 response status outside 1xx/2xx")

// handleHeaders decodes a HEADERS frame's :status pseudo-header.
func (h *h2State) handleHeaders(f *http2.HeadersFrame) (*h2Stream, error) {
	st, ok := h.streams[f.StreamID]
	if !ok {
		return nil, nil
	}
	st.sawHeader = true
	status := 200
	dec := hpack.NewDecoder(4096, func(hf hpack.HeaderField) {
		if hf.Name == ":status" {
			fmt.Sscanf(hf.Value, "%d", &status)
		}
	})
	if _, err := dec.Write(f.HeaderBlockFragment()); err != nil {
		return nil, err
	}
	st.status = status
	if !(status < 200 || (status >= 200 && status < 300) || (status >= 100 && status < 200)) {
		return st, ErrH2StatusRejected
	}
	return st, nil
}

// handleData accumulates DATA frame payload for its stream, enforcing
// the 65535-byte cap.
func (h *h2State) handleData(f *http2.DataFrame) (*h2Stream, error) {
	st, ok := h.streams[f.Header().StreamID]
	if !ok {
		return nil, nil
	}
	st.data = append(st.data, f.Data()...)
	if len(st.data) > h2MaxResponseAccumulated {
		return st, ErrH2ResponseTooLarge
	}
	return st, nil
}

func (h *h2State) closeStream(streamID uint32) {
	delete(h.streams, streamID)
	if h.openStreams > 0 {
		h.openStreams--
	}
}

// doHPath splits a configured DoH URL into its authority and path.
func doHPath(rawURL string) (authority, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return u.Host, path, nil
}
