// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: slogger.go (bassosimone/nop), moved out of the DNS
// client so that other packages can share it.

// Package telemetry carries the engine's ambient logging and span
// correlation conventions.
//
// The components that accept an [SLogger] are pkg/layer's Decoder and
// pkg/replay's Engine; pkg/replay logs Info-level "connectStart"/
// "connectDone" and "tlsHandshakeStart"/"tlsHandshakeDone" pairs.
// [NewSpanID] produces UUIDv7 span ids for correlating log entries; no
// component attaches one to its log entries on its own.
package telemetry

// SLogger abstracts the *slog.Logger behavior used throughout the engine.
//
// This package uses two log levels:
//   - Info for lifecycle and protocol events (decode, parse, route,
//     schedule, connect, close, TLS handshake, HTTP round trip, DNS
//     exchange, DNS query/response).
//   - Debug for per-I/O or per-packet events (read, write, deadline
//     changes, individual packet admission).
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// DefaultSLogger returns the default [SLogger].
//
// The default discards all output, following library convention: the
// engine never writes to stdout/stderr unless a caller opts in with a
// real [*slog.Logger].
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

func (discardSLogger) Debug(msg string, args ...any) {}
func (discardSLogger) Info(msg string, args ...any)  {}
