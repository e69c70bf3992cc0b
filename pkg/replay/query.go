// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md's Query state model (§3, "Query (one transport
// attempt per request)") and original_source's output/dnssim/*.c
// request/query state fields.

package replay

import "time"

// State is a query's position in its connection's lifecycle.
type State int

const (
	StatePendingWrite State = iota
	StatePendingWriteCB
	StatePendingClose
	StateWriteFailed
	StateSent
	StateOrphaned
)

func (s State) String() string {
	switch s {
	case StatePendingWrite:
		return "pending-write"
	case StatePendingWriteCB:
		return "pending-write-cb"
	case StatePendingClose:
		return "pending-close"
	case StateWriteFailed:
		return "write-failed"
	case StateSent:
		return "sent"
	case StateOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// Query is one transport attempt at delivering a captured DNS request
// and collecting its answer.
type Query struct {
	// ID is the DNS message id read from Raw's header, used to match a
	// TCP/TLS/UDP response back to this query.
	ID uint16

	// Seq is the ingest pipeline's sequence number for the captured
	// message this query resends, propagated from [object.DNS.Seq] so
	// an [Engine.AnswerObserver] can correlate answers across engines.
	Seq uint64

	// Raw is the captured request payload, resent byte-for-byte.
	Raw []byte

	// StreamID identifies this query's HTTP/2 stream; zero outside H2 mode.
	StreamID uint32

	State State

	// Conn is the connection this query is queued/sent/pending-close on.
	// Nil while the query has not yet been attached to a connection.
	Conn *Connection

	CreatedAt time.Time
	Deadline  time.Time

	// next chains this query into its connection's queued or sent list,
	// or into a client's pending list.
	next *Query
}
