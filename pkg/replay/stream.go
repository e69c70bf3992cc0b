// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I's TCP/TLS/H2 connection establishment,
// DNSLEN/DNSMSG stream framing, and closing/orphaning protocol, plus
// original_source/src/output/dnssim/common.c's _handle_pending_queries
// (a closed or failed connection's in-flight queries are resent over a
// remaining or freshly opened connection each time their connection
// closes, until they are answered or time out).

package replay

import (
	"encoding/binary"
	"time"

	"golang.org/x/net/http2"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/dnswire"
	"github.com/dnsreplay/engine/pkg/object"
)

// establishStream dials (and, for TLS, handshakes) conn's underlying
// net.Conn off the event loop, reporting the outcome back as
// evConnEstablished.
func (c *Client) establishStream(conn *Connection) {
	go func() {
		ctx, cancel := c.dialCtx()
		defer cancel()

		netConn, err := dial(ctx, c.engine.Config, c.engine.Logger, "tcp", c.engine.Address)
		if err != nil {
			c.postConnEstablished(conn, err)
			return
		}
		if conn.transport == config.TransportTLS {
			tconn, terr := tlsHandshake(ctx, netConn, c.engine.serverName(), nil, c.engine.Logger, c.engine.Config.ErrClassifier, c.engine.Config.TimeNow)
			if terr != nil {
				c.postConnEstablished(conn, terr)
				return
			}
			netConn = tconn
		}
		conn.netConn = netConn
		c.postConnEstablished(conn, nil)
	}()
}

// establishH2 dials, TLS-handshakes with ALPN h2, and completes the
// HTTP/2 connection preface off the event loop.
func (c *Client) establishH2(conn *Connection) {
	go func() {
		ctx, cancel := c.dialCtx()
		defer cancel()

		netConn, err := dial(ctx, c.engine.Config, c.engine.Logger, "tcp", c.engine.Address)
		if err != nil {
			c.postConnEstablished(conn, err)
			return
		}
		tconn, err := tlsHandshake(ctx, netConn, c.engine.serverName(), []string{"h2"}, c.engine.Logger, c.engine.Config.ErrClassifier, c.engine.Config.TimeNow)
		if err != nil {
			c.postConnEstablished(conn, err)
			return
		}
		h := newH2State(tconn, c.engine.h2Authority, c.engine.h2Path, c.engine.Config.DoHUseGET, c.engine.Config.DoHMaxGETURILen)
		if err := h.handshake(tconn); err != nil {
			tconn.Close()
			c.postConnEstablished(conn, err)
			return
		}
		conn.netConn = tconn
		conn.h2 = h
		c.postConnEstablished(conn, nil)
	}()
}

func (c *Client) postConnEstablished(conn *Connection, err error) {
	select {
	case c.events <- clientEvent{kind: evConnEstablished, conn: conn, err: err}:
	case <-c.ctx.Done():
	}
}

// onConnEstablished reacts to a dial/handshake outcome, starting the
// connection's reader goroutine and flushing any queries that queued
// up while the connection was being established.
func (c *Client) onConnEstablished(conn *Connection, err error) {
	if conn.handshakeTimer != nil {
		conn.handshakeTimer.Stop()
		conn.handshakeTimer = nil
	}
	isHandshaking := conn.transport == config.TransportTLS || conn.transport == config.TransportH2
	if err != nil {
		if isHandshaking {
			c.engine.Series.RecordHandshake(false, false)
		}
		c.closeConnection(conn)
		return
	}
	if isHandshaking {
		c.engine.Series.RecordHandshake(true, false)
	}

	conn.state = ConnActive
	conn.resetFraming()
	if conn.transport == config.TransportH2 {
		go c.readLoopH2(conn)
	} else {
		go c.readLoop(conn)
	}
	c.armIdleTimeout(conn)

	if conn.transport == config.TransportH2 {
		c.flushH2Queued(conn)
		return
	}
	for {
		q := conn.queued.popFront()
		if q == nil {
			break
		}
		if !c.writeQueued(conn, q) {
			break
		}
	}
}

// readLoop copies raw bytes off a TCP/TLS connection and hands them to
// the owning client's event loop as evConnData.
func (c *Client) readLoop(conn *Connection) {
	buf := make([]byte, 65536)
	for {
		n, err := conn.netConn.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case c.events <- clientEvent{kind: evConnData, conn: conn, data: chunk}:
			case <-c.ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case c.events <- clientEvent{kind: evConnClosed, conn: conn, err: err}:
			case <-c.ctx.Done():
			}
			return
		}
	}
}

// readLoopH2 reads HTTP/2 frames off an H2 connection and hands each
// one to the owning client's event loop as evH2Frame.
func (c *Client) readLoopH2(conn *Connection) {
	for {
		f, err := conn.h2.framer.ReadFrame()
		if err != nil {
			select {
			case c.events <- clientEvent{kind: evConnClosed, conn: conn, err: err}:
			case <-c.ctx.Done():
			}
			return
		}
		select {
		case c.events <- clientEvent{kind: evH2Frame, conn: conn, frame: f}:
		case <-c.ctx.Done():
			return
		}
	}
}

// writeQueued writes q's 2-byte length prefix and raw bytes to conn,
// per spec.md §4.I's DNSLEN/DNSMSG TCP/TLS framing, moving q from
// queued to sent on success. Reports whether the write succeeded; on
// failure the connection has already been torn down via
// closeConnection.
func (c *Client) writeQueued(conn *Connection, q *Query) bool {
	q.Conn = conn
	q.State = StatePendingWriteCB

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(q.Raw)))
	if _, err := conn.netConn.Write(lenPrefix[:]); err != nil {
		q.State = StateWriteFailed
		c.closeConnection(conn)
		return false
	}
	if _, err := conn.netConn.Write(q.Raw); err != nil {
		q.State = StateWriteFailed
		c.closeConnection(conn)
		return false
	}
	q.State = StateSent
	conn.sent.push(q)
	return true
}

// submitH2 issues q over conn's H2 connection, moving it from queued
// to sent and marking the connection congested once the peer's
// MAX_CONCURRENT_STREAMS ceiling is reached.
func (c *Client) submitH2(conn *Connection, q *Query) {
	q.Conn = conn
	if _, err := conn.h2.submit(q); err != nil {
		q.State = StateWriteFailed
		return
	}
	q.State = StateSent
	conn.sent.push(q)
	if conn.h2.congested() {
		conn.state = ConnCongested
	}
}

// flushH2Queued submits as many queued queries as the peer's
// concurrency ceiling allows.
func (c *Client) flushH2Queued(conn *Connection) {
	for !conn.queued.empty() {
		if conn.h2.congested() {
			conn.state = ConnCongested
			return
		}
		q := conn.queued.popFront()
		c.submitH2(conn, q)
	}
	if conn.state == ConnCongested && !conn.h2.congested() {
		conn.state = ConnActive
	}
}

// feed consumes a chunk of a TCP/TLS byte stream through the
// DNSLEN/DNSMSG framing accumulator, completing every fully received
// message it finds.
func (c *Client) feed(conn *Connection, data []byte) {
	for len(data) > 0 {
		switch conn.rs {
		case readDNSLen:
			n := copy(conn.dnsbuf[conn.dnsbufPos:2], data)
			conn.dnsbufPos += n
			data = data[n:]
			if conn.dnsbufPos != 2 {
				break
			}
			conn.dnslen = binary.BigEndian.Uint16(conn.dnsbuf[:2])
			conn.rs = readDNSMsg
			conn.dnsbuf = make([]byte, conn.dnslen)
			conn.dnsbufPos = 0
			if conn.dnslen == 0 {
				conn.resetFraming()
			}
		case readDNSMsg:
			n := copy(conn.dnsbuf[conn.dnsbufPos:], data)
			conn.dnsbufPos += n
			data = data[n:]
			if conn.dnsbufPos == len(conn.dnsbuf) {
				c.completeStreamMessage(conn, conn.dnsbuf)
				conn.resetFraming()
			}
		}
	}
}

func (c *Client) completeStreamMessage(conn *Connection, msg []byte) {
	d := object.NewDNSView(nil, msg)
	if err := dnswire.ParseHeader(d); err != nil {
		return
	}
	q := conn.sent.removeByID(d.ID)
	if q == nil {
		return // unmatched response, no in-flight query with this id
	}
	now := c.engine.Config.TimeNow()
	latency := now.Sub(q.CreatedAt)
	if limit := time.Duration(c.engine.Config.TimeoutMs) * time.Millisecond; latency > limit {
		latency = limit
	}
	c.engine.Series.RecordAnswer(latency, int(d.Rcode))
	q.State = StateSent
	c.observeAnswer(q, msg, latency, false)
	c.armIdleTimeout(conn)
}

// feedH2 dispatches one HTTP/2 frame read off conn.
func (c *Client) feedH2(conn *Connection, f http2.Frame) {
	switch fr := f.(type) {
	case *http2.SettingsFrame:
		if err := conn.h2.applyPeerSettings(fr); err != nil {
			c.closeConnection(conn)
			return
		}
		c.flushH2Queued(conn)
	case *http2.HeadersFrame:
		st, err := conn.h2.handleHeaders(fr)
		if st == nil {
			return
		}
		if err != nil {
			c.completeH2Stream(conn, st, err)
			return
		}
		if fr.StreamEnded() {
			c.completeH2Stream(conn, st, nil)
		}
	case *http2.DataFrame:
		st, err := conn.h2.handleData(fr)
		if st == nil {
			return
		}
		if err != nil {
			c.completeH2Stream(conn, st, err)
			return
		}
		if fr.StreamEnded() {
			c.completeH2Stream(conn, st, nil)
		}
	case *http2.GoAwayFrame:
		c.closeConnection(conn)
	}
}

func (c *Client) completeH2Stream(conn *Connection, st *h2Stream, err error) {
	q := st.query
	conn.h2.closeStream(q.StreamID)
	conn.sent.removeByID(q.ID)
	if conn.state == ConnCongested && !conn.h2.congested() {
		conn.state = ConnActive
		c.flushH2Queued(conn)
	}
	if err != nil {
		q.State = StateWriteFailed
		c.observeAnswer(q, nil, c.engine.Config.TimeNow().Sub(q.CreatedAt), false)
		return
	}

	d := object.NewDNSView(nil, st.data)
	if perr := dnswire.ParseHeader(d); perr != nil {
		q.State = StateWriteFailed
		return
	}
	now := c.engine.Config.TimeNow()
	latency := now.Sub(q.CreatedAt)
	if limit := time.Duration(c.engine.Config.TimeoutMs) * time.Millisecond; latency > limit {
		latency = limit
	}
	c.engine.Series.RecordAnswer(latency, int(d.Rcode))
	q.State = StateSent
	c.observeAnswer(q, st.data, latency, false)
	c.armIdleTimeout(conn)
}

// closeConnection tears conn down, orphaning every query still queued
// or in flight onto the client's pending list and giving each one
// another chance to go out over a different connection, mirroring
// _handle_pending_queries.
func (c *Client) closeConnection(conn *Connection) {
	if conn.state == ConnClosed {
		return
	}
	conn.state = ConnClosed
	if conn.handshakeTimer != nil {
		conn.handshakeTimer.Stop()
	}
	if conn.idleTimer != nil {
		conn.idleTimer.Stop()
	}
	if conn.netConn != nil {
		conn.netConn.Close()
	}
	c.removeConn(conn)

	for _, q := range conn.sent.drain() {
		q.State = StateOrphaned
		q.Conn = nil
		c.pending.push(q)
	}
	for _, q := range conn.queued.drain() {
		q.State = StateOrphaned
		q.Conn = nil
		c.pending.push(q)
	}
	c.retryPending()
}

// retryPending redispatches every orphaned query, per spec.md §4.I's
// "a closed connection's pending queries are resent over a remaining
// or freshly opened connection".
func (c *Client) retryPending() {
	for {
		q := c.pending.popFront()
		if q == nil {
			return
		}
		if q.State == StatePendingClose {
			continue // already timed out, drop instead of resending
		}
		switch c.engine.Config.Transport {
		case config.TransportTCP, config.TransportTLS:
			c.dispatchStream(q)
		case config.TransportH2:
			c.dispatchH2(q)
		default:
			c.sendUDP(q)
		}
	}
}
