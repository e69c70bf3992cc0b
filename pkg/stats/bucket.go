// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/src/output/dnssim.hh's
// output_dnssim_stats struct and output/dnssim/common.c's
// stats_current/stats_sum bookkeeping (the 1ms-granularity latency
// array, the rcode_* counters, and the prev/next doubly-linked bucket
// list rooted at stats_first).

// Package stats implements the engine's time-sliced counters: a
// doubly-linked list of per-interval buckets plus a parallel sum
// bucket that never rotates, both fed by the replay client's request,
// answer, connection and latency events.
package stats

import (
	"sync"
	"time"
)

// Bucket is one stats_interval_ms-wide slice of counters. Latency is a
// 1ms-granularity histogram: Latency[i] counts answers and timeouts
// whose latency fell in [i, i+1) milliseconds, with the final slot catching every
// latency at or above the configured ceiling (normally timeout_ms).
type Bucket struct {
	Since time.Time
	Until time.Time

	Requests uint64
	Ongoing  uint64
	Answers  uint64

	ConnActive           uint64
	ConnHandshakes       uint64
	ConnResumed          uint64
	ConnHandshakesFailed uint64

	RCode   [rcodeCount]uint64
	Latency []uint64

	prev *Bucket
	next *Bucket
}

func newBucket(since time.Time, latencySlots int) *Bucket {
	return &Bucket{Since: since, Latency: make([]uint64, latencySlots)}
}

// Prev returns the chronologically preceding bucket, or nil for the
// first bucket in the series.
func (b *Bucket) Prev() *Bucket { return b.prev }

// Next returns the chronologically following bucket, or nil for the
// current (not yet rotated out) bucket.
func (b *Bucket) Next() *Bucket { return b.next }

func (b *Bucket) recordLatency(slots int, ms int64, rc RCode) {
	if ms < 0 {
		ms = 0
	}
	idx := int(ms)
	if idx >= slots {
		idx = slots - 1
	}
	b.Latency[idx]++
	b.Answers++
	b.RCode[rc]++
}

// Series ties together the current bucket, the full doubly-linked
// history rooted at First, and the Sum bucket that accumulates every
// event for the series' whole lifetime (mirrors stats_sum /
// stats_current / stats_first in the original).
type Series struct {
	Sum     *Bucket
	Current *Bucket
	First   *Bucket

	latencySlots int
	interval     time.Duration
	lastRotate   time.Time

	// mu guards every mutating method below. The replay client's worker
	// threads (spec.md §4.C) may call RecordRequest/RecordAnswer
	// concurrently for different client slots against one shared
	// Series, unlike Bucket's own single-owner-goroutine fields.
	mu sync.Mutex
}

// NewSeries creates a Series whose latency histogram covers
// [0, maxLatencyMs] milliseconds (inclusive ceiling slot) and that
// rotates to a fresh current bucket every interval.
func NewSeries(maxLatencyMs int, interval time.Duration, now time.Time) *Series {
	slots := maxLatencyMs + 1
	if slots < 1 {
		slots = 1
	}
	first := newBucket(now, slots)
	return &Series{
		Sum:          newBucket(now, slots),
		Current:      first,
		First:        first,
		latencySlots: slots,
		interval:     interval,
		lastRotate:   now,
	}
}

// RecordRequest increments the outstanding-request counters in both
// the current and sum buckets.
func (s *Series) RecordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current.Requests++
	s.Current.Ongoing++
	s.Sum.Requests++
	s.Sum.Ongoing++
}

// RecordAnswer records a completed request's latency and RCODE,
// clamped to the series' configured ceiling, and decrements Ongoing.
// rawRCode is the 4-bit wire RCODE from the response header.
func (s *Series) RecordAnswer(latency time.Duration, rawRCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := latency.Milliseconds()
	rc := rawRCodeToBucket(rawRCode)
	s.Current.recordLatency(s.latencySlots, ms, rc)
	s.Sum.recordLatency(s.latencySlots, ms, rc)
	if s.Current.Ongoing > 0 {
		s.Current.Ongoing--
	}
	if s.Sum.Ongoing > 0 {
		s.Sum.Ongoing--
	}
}

// RecordTimeout records a timed-out request's latency (always the
// configured ceiling) without touching Answers or the RCODE counters,
// matching the original's _close_request_timeout, which only ever
// increments stats_current/stats_sum->latency[].
func (s *Series) RecordTimeout(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := timeout.Milliseconds()
	idx := int(ms)
	if idx >= s.latencySlots {
		idx = s.latencySlots - 1
	}
	if idx < 0 {
		idx = 0
	}
	s.Current.Latency[idx]++
	s.Sum.Latency[idx]++
}

// RecordHandshake records a connection handshake attempt's outcome.
func (s *Series) RecordHandshake(success, resumed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current.ConnHandshakes++
	s.Sum.ConnHandshakes++
	if resumed {
		s.Current.ConnResumed++
		s.Sum.ConnResumed++
	}
	if !success {
		s.Current.ConnHandshakesFailed++
		s.Sum.ConnHandshakesFailed++
	}
}

// SetConnActive overwrites the current bucket's open-connection gauge,
// following the original's "snapshot at end of interval" semantics.
func (s *Series) SetConnActive(n uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current.ConnActive = n
}

// MaybeRotate closes the current bucket and opens a new one if
// interval has elapsed since the last rotation, returning whether a
// rotation happened. Intended to be driven by a periodic timer, per
// spec.md §4.I's "stats bucket rotation runs on a timer at
// stats_interval_ms".
func (s *Series) MaybeRotate(now time.Time) bool {
	s.mu.Lock()
	if now.Sub(s.lastRotate) < s.interval {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.Rotate(now)
	return true
}

// Rotate unconditionally closes the current bucket and links a fresh
// one, becoming the new Current.
func (s *Series) Rotate(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Current.Until = now
	next := newBucket(now, s.latencySlots)
	next.ConnActive = s.Current.ConnActive
	s.Current.next = next
	next.prev = s.Current
	s.Current = next
	s.lastRotate = now
}
