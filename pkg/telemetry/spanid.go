// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spanid.go (bassosimone/nop).

package telemetry

import "github.com/google/uuid"

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way: one layer-decode pass, one DNS parse, one timing-filter sleep, one
// DNS exchange over a transport. Attach the span ID to a logger with
// [*slog.Logger.With] so every log entry from that operation correlates.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id.String()
}
