// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md's Connection (TCP-family) state model (§3) and
// the TCP/TLS/H2 mode descriptions in §4.I.

package replay

import (
	"net"
	"time"

	"github.com/dnsreplay/engine/pkg/config"
)

// ConnState is a TCP-family connection's lifecycle state.
type ConnState int

const (
	ConnInit ConnState = iota
	ConnTCPHandshake
	ConnTLSHandshake
	ConnActive
	// ConnCongested is an H2-only state: open_streams has reached the
	// peer's advertised MAX_CONCURRENT_STREAMS.
	ConnCongested
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnInit:
		return "init"
	case ConnTCPHandshake:
		return "tcp-handshake"
	case ConnTLSHandshake:
		return "tls-handshake"
	case ConnActive:
		return "active"
	case ConnCongested:
		return "congested"
	case ConnClosing:
		return "closing"
	case ConnClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// readState is the TCP/TLS stream framing accumulator's phase.
type readState int

const (
	readDNSLen readState = iota
	readDNSMsg
)

// Connection is one TCP, TLS, or H2 connection owned by a [Client].
// Every field is touched only from the owning Client's event-loop
// goroutine; there is deliberately no internal locking, matching
// spec.md §4.I's single-threaded event loop per client.
type Connection struct {
	netConn   net.Conn
	transport config.Transport
	state     ConnState
	client    *Client

	queued queryList
	sent   queryList

	// TCP/TLS stream framing accumulator.
	rs        readState
	dnslen    uint16
	dnsbuf    []byte
	dnsbufPos int

	h2 *h2State

	handshakeTimer *time.Timer
	idleTimer      *time.Timer
}

func newConnection(c *Client, conn net.Conn, transport config.Transport) *Connection {
	return &Connection{
		netConn:   conn,
		transport: transport,
		state:     ConnInit,
		client:    c,
		dnsbuf:    make([]byte, 2),
	}
}

// resetFraming rewinds the stream accumulator to expect a fresh 2-byte
// length prefix, per spec.md §4.I's DNSLEN/DNSMSG alternation.
func (c *Connection) resetFraming() {
	c.rs = readDNSLen
	c.dnsbuf = make([]byte, 2)
	c.dnsbufPos = 0
}

// idle reports whether both lists are drained, the trigger for arming
// the idle timer per spec.md §4.I's reuse/idle section.
func (c *Connection) idle() bool {
	return c.queued.empty() && c.sent.empty()
}
