// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: core/channel.c, core/channel.hh (original_source). The
// reference implementation layers a spin-yield SPSC channel on top of
// Concurrency Kit's ck_ring; Go has no direct ck_ring equivalent, so the
// same two-counter SPSC algorithm (distinct head/tail cursors, each
// touched by exactly one side) is reimplemented directly with
// sync/atomic, and the yield-until-closed spin loop is kept verbatim.

// Package ring implements a single-producer/single-consumer bounded
// channel for handing items from one pipeline stage to the next. The
// cmd/dnsreplay pipeline does not use it.
package ring

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// Receiver consumes one item. It is the Go analogue of core_receiver_t:
// a capability closure rather than a (ctx, fn-pointer) pair.
type Receiver[T any] func(item T)

// Ring is a bounded SPSC queue. Capacity must be a power of two >= 4.
// Exactly one goroutine may call Put/TryPut; exactly one goroutine may
// call Get/TryGet/Run. Violating single-producer/single-consumer
// discipline is a caller error with no runtime detection, matching the
// original's contract.
type Ring[T any] struct {
	buf  []T
	mask uint64

	head atomic.Uint64 // next slot index to write; producer-owned
	tail atomic.Uint64 // next slot index to read; consumer-owned

	closed atomic.Bool
}

// New creates a Ring with the given capacity, which must be a power of
// two >= 4.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 4 || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("ring: invalid capacity %d: must be a power of two >= 4", capacity)
	}
	return &Ring[T]{
		buf:  make([]T, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Capacity returns the ring's fixed capacity.
func (r *Ring[T]) Capacity() int { return len(r.buf) }

// Size returns the number of items currently queued. Always in
// [0, Capacity()].
func (r *Ring[T]) Size() int {
	h := r.head.Load()
	t := r.tail.Load()
	return int(h - t)
}

// Full reports whether the ring currently holds Capacity() items.
func (r *Ring[T]) Full() bool {
	return r.Size() >= len(r.buf)
}

// TryPut enqueues item without blocking, returning false if the ring is
// full.
func (r *Ring[T]) TryPut(item T) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if int(h-t) >= len(r.buf) {
		return false
	}
	r.buf[h&r.mask] = item
	r.head.Store(h + 1)
	return true
}

// Put enqueues item, spinning with a scheduler yield while the ring is
// full. It does not observe Close: the producer is responsible for not
// calling Put after it has closed its own ring.
func (r *Ring[T]) Put(item T) {
	for !r.TryPut(item) {
		runtime.Gosched()
	}
}

// TryGet dequeues one item without blocking, returning false if the
// ring is currently empty.
func (r *Ring[T]) TryGet() (item T, ok bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if t == h {
		return item, false
	}
	item = r.buf[t&r.mask]
	r.tail.Store(t + 1)
	return item, true
}

// Get dequeues one item, spinning with a scheduler yield while the ring
// is empty. If the ring is closed and drained while waiting, Get
// returns the zero value of T and ok=false.
func (r *Ring[T]) Get() (item T, ok bool) {
	for {
		if item, ok = r.TryGet(); ok {
			return item, true
		}
		runtime.Gosched()
		if r.closed.Load() {
			if item, ok = r.TryGet(); ok {
				return item, true
			}
			var zero T
			return zero, false
		}
	}
}

// Close marks the ring closed. Idempotent. After Close, a Get call that
// finds the ring empty returns immediately instead of spinning forever.
func (r *Ring[T]) Close() {
	r.closed.Store(true)
}

// Closed reports whether Close has been called.
func (r *Ring[T]) Closed() bool { return r.closed.Load() }

// Run dequeues items in a loop and delivers each to recv, until the
// ring is closed and drained.
func (r *Ring[T]) Run(recv Receiver[T]) {
	for {
		item, ok := r.Get()
		if !ok {
			return
		}
		recv(item)
	}
}
