// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I's UDP mode ("One UDP socket per in-flight
// query ... a tc=1 response reports _ERR_TC").

package replay

import (
	"context"
	"time"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/dnswire"
	"github.com/dnsreplay/engine/pkg/object"
)

// sendUDP opens a dedicated UDP socket for q, writes the captured
// request, and waits for a matching response up to the configured
// request timeout. Runs in its own goroutine; the outcome is reported
// back to the owning client's event loop via evUDPResult.
func (c *Client) sendUDP(q *Query) {
	go func() {
		cfg := c.engine.Config
		ctx, cancel := context.WithTimeout(c.ctx, time.Duration(cfg.TimeoutMs)*time.Millisecond)
		defer cancel()

		conn, err := dial(ctx, cfg, c.engine.Logger, "udp", c.engine.Address)
		if err != nil {
			c.postUDPResult(q, nil, err)
			return
		}
		defer conn.Close()

		if _, err := conn.Write(q.Raw); err != nil {
			c.postUDPResult(q, nil, err)
			return
		}

		deadline, _ := ctx.Deadline()
		conn.SetReadDeadline(deadline)

		buf := make([]byte, 65535)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				c.postUDPResult(q, nil, err)
				return
			}
			if n >= 2 && uint16(buf[0])<<8|uint16(buf[1]) != q.ID {
				continue // stray datagram, keep reading for the matching id
			}
			c.postUDPResult(q, buf[:n], nil)
			return
		}
	}()
}

func (c *Client) postUDPResult(q *Query, data []byte, err error) {
	select {
	case c.events <- clientEvent{kind: evUDPResult, query: q, data: data, err: err}:
	case <-c.ctx.Done():
	}
}

func (c *Client) completeUDP(q *Query, data []byte, err error) {
	now := c.engine.Config.TimeNow()
	if err != nil {
		q.State = StateWriteFailed
		c.observeAnswer(q, nil, now.Sub(q.CreatedAt), false)
		return
	}

	d := object.NewDNSView(nil, data)
	if perr := dnswire.ParseHeader(d); perr != nil {
		q.State = StateWriteFailed
		return
	}
	if d.ID != q.ID {
		return // stray datagram, keep waiting for the real match
	}
	if d.TC {
		if c.engine.Config.Transport == config.TransportUDPThenTCPFallback {
			c.dispatchStream(q)
		}
		return
	}

	latency := now.Sub(q.CreatedAt)
	if limit := time.Duration(c.engine.Config.TimeoutMs) * time.Millisecond; latency > limit {
		latency = limit
	}
	c.engine.Series.RecordAnswer(latency, int(d.Rcode))
	q.State = StateSent
	c.observeAnswer(q, data, latency, false)
}
