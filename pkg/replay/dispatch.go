// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"context"
	"time"

	"github.com/dnsreplay/engine/pkg/config"
)

// dispatch routes a freshly captured payload to the configured
// transport, per spec.md §4.I.
func (c *Client) dispatch(seq uint64, raw []byte) {
	q := c.newQuery(seq, raw)
	c.armRequestTimeout(q)

	switch c.engine.Config.Transport {
	case config.TransportUDP, config.TransportUDPThenTCPFallback:
		c.sendUDP(q)
	case config.TransportTCP, config.TransportTLS:
		c.dispatchStream(q)
	case config.TransportH2:
		c.dispatchH2(q)
	}
}

// activeStreamConn returns this client's TCP/TLS connection currently
// able to accept writes (ConnActive), or nil.
func (c *Client) activeStreamConn() *Connection {
	for _, conn := range c.conns {
		if conn.state == ConnActive {
			return conn
		}
	}
	return nil
}

// handshakingStreamConn returns a connection still establishing, or nil.
func (c *Client) handshakingStreamConn() *Connection {
	for _, conn := range c.conns {
		if conn.state == ConnTCPHandshake || conn.state == ConnTLSHandshake {
			return conn
		}
	}
	return nil
}

func (c *Client) dispatchStream(q *Query) {
	if conn := c.activeStreamConn(); conn != nil {
		c.writeQueued(conn, q)
		return
	}
	if conn := c.handshakingStreamConn(); conn != nil {
		conn.queued.push(q)
		q.Conn = conn
		return
	}
	conn := c.newStreamConnection()
	conn.queued.push(q)
	q.Conn = conn
	c.establishStream(conn)
}

// h2ActiveConn returns this client's non-congested H2 connection, or nil.
func (c *Client) h2ActiveConn() *Connection {
	for _, conn := range c.conns {
		if conn.state == ConnActive && conn.h2 != nil && !conn.h2.congested() {
			return conn
		}
	}
	return nil
}

func (c *Client) dispatchH2(q *Query) {
	if conn := c.h2ActiveConn(); conn != nil {
		c.submitH2(conn, q)
		return
	}
	for _, conn := range c.conns {
		if conn.h2 != nil && conn.state != ConnClosed && conn.state != ConnClosing {
			conn.queued.push(q)
			q.Conn = conn
			return
		}
	}
	conn := c.newStreamConnection()
	conn.queued.push(q)
	q.Conn = conn
	c.establishH2(conn)
}

func (c *Client) newStreamConnection() *Connection {
	transport := c.engine.Config.Transport
	conn := newConnection(c, nil, transport)
	conn.state = ConnTCPHandshake
	c.conns = append(c.conns, conn)
	c.armHandshakeTimeout(conn)
	return conn
}

func (c *Client) armHandshakeTimeout(conn *Connection) {
	d := time.Duration(c.engine.Config.HandshakeTimeoutMs) * time.Millisecond
	conn.handshakeTimer = time.AfterFunc(d, func() {
		select {
		case c.events <- clientEvent{kind: evHandshakeTimeout, conn: conn}:
		case <-c.ctx.Done():
		}
	})
}

func (c *Client) armIdleTimeout(conn *Connection) {
	if c.engine.Config.IdleTimeoutMs <= 0 {
		return
	}
	if conn.idleTimer != nil {
		conn.idleTimer.Stop()
	}
	d := time.Duration(c.engine.Config.IdleTimeoutMs) * time.Millisecond
	conn.idleTimer = time.AfterFunc(d, func() {
		select {
		case c.events <- clientEvent{kind: evIdleTimeout, conn: conn}:
		case <-c.ctx.Done():
		}
	})
}

// dialCtx bounds connection establishment by the handshake timeout.
func (c *Client) dialCtx() (context.Context, context.CancelFunc) {
	d := time.Duration(c.engine.Config.HandshakeTimeoutMs) * time.Millisecond
	return context.WithTimeout(c.ctx, d)
}
