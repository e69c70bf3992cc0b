// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: errclassifier.go (bassosimone/nop).

package telemetry

import "github.com/dnsreplay/engine/internal/errclass"

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g.
// "timed_out", "connection_reset") that facilitate systematic analysis
// of replay results and satisfy spec.md §7's requirement that no error
// kind is silently swallowed.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies using [internal/errclass.Classify],
// covering OS-level errno classes, timeouts and cancellation. The
// DNS/replay class constants defined in internal/errclass (malformed
// packet, id mismatch, truncated response, handshake failure, request
// timeout) are never returned by it.
var DefaultErrClassifier = ErrClassifierFunc(errclass.Classify)
