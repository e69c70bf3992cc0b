// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I's "single-threaded event loop" client
// model. Each [Client] slot runs its own goroutine reading a channel
// of events (new queries, connection data, timer firings); everything
// touching that client's Connections/Query lists happens only inside
// that goroutine, so no locking is needed there — the single OS thread
// the spec describes becomes a single owning goroutine instead.

package replay

import (
	"context"
	"time"

	"golang.org/x/net/http2"
)

type eventKind int

const (
	evSend eventKind = iota
	evConnData
	evConnClosed
	evConnEstablished
	evH2Frame
	evHandshakeTimeout
	evIdleTimeout
	evRequestTimeout
	evUDPResult
	evStop
)

type clientEvent struct {
	kind  eventKind
	conn  *Connection
	data  []byte
	seq   uint64
	frame http2.Frame
	query *Query
	err   error
}

// Client is one replay client slot (spec.md §3's max_clients table
// entry), owning its own connections and pending-query list.
type Client struct {
	ID     uint32
	engine *Engine

	conns   []*Connection
	pending queryList

	events chan clientEvent
	stop   context.CancelFunc
	ctx    context.Context
}

func newClient(id uint32, e *Engine) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:     id,
		engine: e,
		events: make(chan clientEvent, 64),
		stop:   cancel,
		ctx:    ctx,
	}
	go c.loop()
	return c
}

// Send enqueues a captured request for delivery. Safe to call from any
// goroutine (typically the worker-thread filter's consumer goroutine
// that pkg/routing delivers into). seq is the ingest pipeline's
// sequence number for this message, propagated to the Query so an
// [Engine.AnswerObserver] can correlate the eventual answer.
func (c *Client) Send(seq uint64, raw []byte) {
	select {
	case c.events <- clientEvent{kind: evSend, seq: seq, data: raw}:
	case <-c.ctx.Done():
	}
}

// Close stops the client's event loop and its connections.
func (c *Client) Close() {
	c.stop()
}

func (c *Client) loop() {
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.ctx.Done():
			for _, conn := range c.conns {
				conn.netConn.Close()
			}
			return
		}
	}
}

func (c *Client) handle(ev clientEvent) {
	switch ev.kind {
	case evSend:
		c.dispatch(ev.seq, ev.data)
	case evConnData:
		c.feed(ev.conn, ev.data)
	case evConnClosed:
		c.closeConnection(ev.conn)
	case evConnEstablished:
		c.onConnEstablished(ev.conn, ev.err)
	case evH2Frame:
		c.feedH2(ev.conn, ev.frame)
	case evHandshakeTimeout:
		if ev.conn.state != ConnActive {
			c.closeConnection(ev.conn)
		}
	case evIdleTimeout:
		if ev.conn.idle() {
			c.closeConnection(ev.conn)
		}
	case evRequestTimeout:
		c.timeoutQuery(ev.query)
	case evUDPResult:
		c.completeUDP(ev.query, ev.data, ev.err)
	}
}

// newQuery builds a Query from a raw captured payload, reading its DNS
// id from the first two bytes of the header.
func (c *Client) newQuery(seq uint64, raw []byte) *Query {
	var id uint16
	if len(raw) >= 2 {
		id = uint16(raw[0])<<8 | uint16(raw[1])
	}
	now := c.engine.Config.TimeNow()
	return &Query{
		ID:        id,
		Seq:       seq,
		Raw:       raw,
		State:     StatePendingWrite,
		CreatedAt: now,
		Deadline:  now.Add(time.Duration(c.engine.Config.TimeoutMs) * time.Millisecond),
	}
}

// armRequestTimeout schedules a timeout event for q at its deadline.
func (c *Client) armRequestTimeout(q *Query) {
	d := time.Until(q.Deadline)
	if d < 0 {
		d = 0
	}
	time.AfterFunc(d, func() {
		select {
		case c.events <- clientEvent{kind: evRequestTimeout, query: q}:
		case <-c.ctx.Done():
		}
	})
}

func (c *Client) timeoutQuery(q *Query) {
	if q.State == StateSent || q.State == StatePendingWrite || q.State == StatePendingWriteCB {
		timeout := time.Duration(c.engine.Config.TimeoutMs) * time.Millisecond
		c.engine.Series.RecordTimeout(timeout)
		if q.Conn != nil {
			q.Conn.sent.removeByID(q.ID)
			q.Conn.queued.removeByID(q.ID)
		}
		q.State = StatePendingClose
		c.observeAnswer(q, nil, timeout, true)
	}
}

// observeAnswer reports a query's outcome to the engine's
// AnswerObserver, if one is configured.
func (c *Client) observeAnswer(q *Query, answer []byte, elapsed time.Duration, timedOut bool) {
	if c.engine.AnswerObserver != nil {
		c.engine.AnswerObserver(q.Seq, q.Raw, answer, elapsed, timedOut)
	}
}

// removeConn drops conn from this client's connection list.
func (c *Client) removeConn(conn *Connection) {
	out := c.conns[:0]
	for _, cc := range c.conns {
		if cc != conn {
			out = append(out, cc)
		}
	}
	c.conns = out
}
