// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from the teacher's use of github.com/bassosimone/sud in
// httpconn.go: a dialer that hands out one already-established
// connection exactly once, so an *http2.Transport (or our own HTTP/2
// framing in pkg/replay) can be pointed at a connection we dialed and
// handshaked ourselves instead of letting it dial again.

// Package oneshot provides a dialer that serves a single pre-established
// connection exactly once, then fails.
package oneshot

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
)

// Dialer hands out conn the first time it is dialed and fails every
// subsequent call. This lets net/http-family transports, which assume
// they own dialing, be driven over a connection whose dial and TLS
// handshake already happened under our own timeout/observability rules.
type Dialer struct {
	mu   sync.Mutex
	conn net.Conn
	used bool
}

// New returns a *Dialer that will serve conn exactly once.
func New(conn net.Conn) *Dialer {
	return &Dialer{conn: conn}
}

// DialContext implements the plain dial signature used by [http.Transport.DialContext].
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used {
		return nil, fmt.Errorf("oneshot: dialer already used for %s %s", network, address)
	}
	d.used = true
	return d.conn, nil
}

// DialTLSContext implements the signature used by [http2.Transport.DialTLSContext].
//
// The wrapped connection is expected to be TLS-handshaked already, so
// this simply hands it back without performing another handshake.
func (d *Dialer) DialTLSContext(ctx context.Context, network, address string, _ *tls.Config) (net.Conn, error) {
	return d.DialContext(ctx, network, address)
}
