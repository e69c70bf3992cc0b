// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I ("The client owns max_clients client
// slots, mapped by the routing id received in the incoming packet").

package replay

import "sync"

// Pool owns a fixed set of max_clients client slots, indexed by the
// routing-assigned client id modulo the slot count. A client is
// created lazily the first time its slot is addressed.
type Pool struct {
	mu     sync.Mutex
	slots  []*Client
	engine *Engine
}

func newPool(e *Engine) *Pool {
	n := e.Config.MaxClients
	if n <= 0 {
		n = 1
	}
	return &Pool{slots: make([]*Client, n), engine: e}
}

// get returns the client slot owning id, creating it on first use.
func (p *Pool) get(id uint32) *Client {
	idx := int(id % uint32(len(p.slots)))
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.slots[idx]
	if c == nil {
		c = newClient(uint32(idx), p.engine)
		p.slots[idx] = c
	}
	return c
}

// Close stops every client slot's event loop and its connections.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.slots {
		if c != nil {
			c.Close()
		}
	}
}
