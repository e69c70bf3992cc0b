// SPDX-License-Identifier: GPL-3.0-or-later

package replay

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/stats"
)

func newTestEngine(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, "127.0.0.1:53", nil)
	require.NoError(t, err)
	return e
}

func TestNewQueryReadsIDFromRawHeader(t *testing.T) {
	cfg := config.NewConfig()
	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	q := c.newQuery(0, dnsHeader(0xBEEF, false, 0))
	assert.Equal(t, uint16(0xBEEF), q.ID)
	assert.Equal(t, StatePendingWrite, q.State)
	assert.True(t, q.Deadline.After(q.CreatedAt) || q.Deadline.Equal(q.CreatedAt))
}

func TestSendUDPRecordsAnswerOnMatchingID(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportUDP
	clk := newClockStub(time.Unix(0, 0))
	cfg.TimeNow = clk.now

	const reqID = uint16(0x1234)
	response := dnsHeader(reqID, false, 0)
	fc := &fakeConn{readFunc: func(b []byte) (int, error) { return copy(b, response), nil }}
	cfg.Dialer = &funcDialer{DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
		return fc, nil
	}}

	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	c.Send(0, dnsHeader(reqID, false, 0))

	require.Eventually(t, func() bool {
		return e.Series.Sum.Answers == 1
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, e.Series.Sum.RCode[stats.RCodeNoError])
	require.Eventually(t, func() bool { return fc.closeCount == 1 }, time.Second, 5*time.Millisecond)
}

func TestSendUDPIgnoresStrayDatagramThenMatches(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportUDP
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now

	const reqID = uint16(0x42)
	reads := 0
	fc := &fakeConn{readFunc: func(b []byte) (int, error) {
		reads++
		if reads == 1 {
			return copy(b, dnsHeader(reqID+1, false, 0)), nil
		}
		return copy(b, dnsHeader(reqID, false, 2)), nil
	}}
	cfg.Dialer = &funcDialer{DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
		return fc, nil
	}}

	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	c.Send(0, dnsHeader(reqID, false, 0))

	require.Eventually(t, func() bool {
		return e.Series.Sum.Answers == 1
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, e.Series.Sum.RCode[stats.RCodeServFail])
}

func TestSendUDPFallsBackToTCPOnTruncation(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportUDPThenTCPFallback
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now

	const reqID = uint16(0x99)
	udpConn := &fakeConn{readFunc: func(b []byte) (int, error) { return copy(b, dnsHeader(reqID, true, 0)), nil }}
	tcpConn := &fakeConn{readFunc: func(b []byte) (int, error) { return 0, io.EOF }}
	cfg.Dialer = &funcDialer{DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
		if network == "tcp" {
			return tcpConn, nil
		}
		return udpConn, nil
	}}

	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	c.Send(0, dnsHeader(reqID, false, 0))

	require.Eventually(t, func() bool {
		return tcpConn.writeCount() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestTimeoutQueryRecordsTimeoutOncePerQuery(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now
	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	q := &Query{ID: 1, State: StateSent}
	before := e.Series.Sum.Latency[cfg.TimeoutMs]
	c.timeoutQuery(q)
	assert.Equal(t, StatePendingClose, q.State)
	assert.EqualValues(t, before+1, e.Series.Sum.Latency[cfg.TimeoutMs])

	// A second timeout on an already-closing query is a no-op.
	c.timeoutQuery(q)
	assert.EqualValues(t, before+1, e.Series.Sum.Latency[cfg.TimeoutMs])
}

func TestFeedCompletesFramedStreamMessage(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now
	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	conn := newConnection(c, &fakeConn{}, config.TransportTCP)
	q := &Query{ID: 7, CreatedAt: cfg.TimeNow()}
	conn.sent.push(q)
	conn.resetFraming()

	c.feed(conn, framedDNSHeader(7, false, 3))

	assert.EqualValues(t, 1, e.Series.Sum.Answers)
	assert.EqualValues(t, 1, e.Series.Sum.RCode[stats.RCodeNXDomain])
	assert.True(t, conn.sent.empty())
}

func TestFeedHandlesSplitChunks(t *testing.T) {
	cfg := config.NewConfig()
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now
	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	conn := newConnection(c, &fakeConn{}, config.TransportTCP)
	q := &Query{ID: 11, CreatedAt: cfg.TimeNow()}
	conn.sent.push(q)
	conn.resetFraming()

	framed := framedDNSHeader(11, false, 0)
	c.feed(conn, framed[:1])
	c.feed(conn, framed[1:5])
	c.feed(conn, framed[5:])

	assert.EqualValues(t, 1, e.Series.Sum.Answers)
}

func TestCloseConnectionOrphansAndRetriesQueuedQueries(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Transport = config.TransportUDP
	cfg.TimeNow = newClockStub(time.Unix(0, 0)).now

	var redialed int32
	fc := &fakeConn{readFunc: func(b []byte) (int, error) { return 0, io.EOF }}
	cfg.Dialer = &funcDialer{DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
		redialed++
		return fc, nil
	}}

	e := newTestEngine(t, cfg)
	c := newClient(0, e)
	defer c.Close()

	conn := newConnection(c, &fakeConn{}, config.TransportTCP)
	c.conns = append(c.conns, conn)
	q := &Query{ID: 5, State: StatePendingWriteCB, CreatedAt: cfg.TimeNow()}
	conn.queued.push(q)
	q.Conn = conn

	// Post through the event channel rather than calling closeConnection
	// directly, matching how the owning goroutine actually learns of a
	// closed connection (evConnClosed from the reader goroutine).
	c.events <- clientEvent{kind: evConnClosed, conn: conn}

	require.Eventually(t, func() bool { return redialed > 0 }, time.Second, 5*time.Millisecond)
}
