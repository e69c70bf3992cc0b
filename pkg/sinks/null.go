// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.J ("Null sink: counts packets; supports both
// push and pull contracts").

// Package sinks implements the engine's terminal consumers: the null
// counting sink, a PCAP writer, and a paired-response store for
// offline diffing between two resolvers.
package sinks

import (
	"sync/atomic"

	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/routing"
)

// Null counts every object it receives or is asked to pull, satisfying
// both the push contract (a [routing.Receiver]) and a pull contract
// (Get, for callers that drive the sink themselves).
type Null struct {
	count atomic.Uint64
}

// NewNull creates a zeroed Null sink.
func NewNull() *Null { return &Null{} }

// Receiver returns a [routing.Receiver] that counts obj and discards it.
func (n *Null) Receiver() routing.Receiver {
	return func(obj object.Object) {
		n.count.Add(1)
	}
}

// Put implements the push contract directly, for callers not going
// through pkg/routing.
func (n *Null) Put(obj object.Object) {
	n.count.Add(1)
}

// Get implements the pull contract: Null has nothing to produce, so it
// always reports done.
func (n *Null) Get() (object.Object, bool) {
	n.count.Add(1)
	return nil, false
}

// Count returns the number of objects seen so far.
func (n *Null) Count() uint64 {
	return n.count.Load()
}
