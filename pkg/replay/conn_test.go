// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnsreplay/engine/pkg/config"
)

func TestConnStateString(t *testing.T) {
	cases := map[ConnState]string{
		ConnInit:         "init",
		ConnTCPHandshake: "tcp-handshake",
		ConnTLSHandshake: "tls-handshake",
		ConnActive:       "active",
		ConnCongested:    "congested",
		ConnClosing:      "closing",
		ConnClosed:       "closed",
		ConnState(99):    "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestNewConnectionStartsIdleAndInInitState(t *testing.T) {
	conn := newConnection(nil, nil, config.TransportTCP)
	assert.Equal(t, ConnInit, conn.state)
	assert.True(t, conn.idle())
}

func TestConnectionIdleReflectsBothLists(t *testing.T) {
	conn := newConnection(nil, nil, config.TransportTCP)
	conn.queued.push(&Query{ID: 1})
	assert.False(t, conn.idle())

	q := conn.queued.popFront()
	conn.sent.push(q)
	assert.False(t, conn.idle())

	conn.sent.removeByID(1)
	assert.True(t, conn.idle())
}

func TestResetFramingRestartsAtDNSLen(t *testing.T) {
	conn := newConnection(nil, nil, config.TransportTCP)
	conn.rs = readDNSMsg
	conn.dnsbuf = make([]byte, 37)
	conn.dnsbufPos = 10

	conn.resetFraming()
	assert.Equal(t, readDNSLen, conn.rs)
	assert.Equal(t, 2, len(conn.dnsbuf))
	assert.Equal(t, 0, conn.dnsbufPos)
}
