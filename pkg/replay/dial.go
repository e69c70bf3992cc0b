// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop/connect.go's ConnectFunc and tls.go's
// TLSEngine/TLSEngineStdlib, generalized from a one-shot Func[A,B]
// pipeline stage into plain methods the event loop calls directly
// (the teacher's pipeline composition only matters before the
// connection has a lifecycle to manage; once a query needs to reuse,
// idle-timeout and orphan a connection, the event loop owns it).

package replay

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/telemetry"
)

// dial opens a TCP/UDP connection to address using cfg.Dialer, bounded
// by ctx's deadline and logged the same way bassosimone-nop's
// ConnectFunc logs connectStart/connectDone.
func dial(ctx context.Context, cfg *config.Config, logger telemetry.SLogger, network, address string) (net.Conn, error) {
	t0 := cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	logger.Info("connectStart",
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
		slog.Time("deadline", deadline),
	)
	conn, err := cfg.Dialer.DialContext(ctx, network, address)
	logger.Info("connectDone",
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
	)
	return conn, err
}

// tlsHandshake upgrades conn to TLS with the given ALPN protocols
// (empty for plain DoT, ["h2"] for DoH-over-H2), mirroring
// bassosimone-nop's TLSEngineStdlib.Client plus an explicit
// HandshakeContext call so the handshake itself is bounded by ctx.
func tlsHandshake(ctx context.Context, conn net.Conn, serverName string, alpn []string, logger telemetry.SLogger, ec telemetry.ErrClassifier, now func() time.Time) (*tls.Conn, error) {
	cfg := &tls.Config{ServerName: serverName, NextProtos: alpn}
	tconn := tls.Client(conn, cfg)

	t0 := now()
	logger.Info("tlsHandshakeStart", slog.String("remoteAddr", conn.RemoteAddr().String()), slog.Time("t", t0))
	err := tconn.HandshakeContext(ctx)
	logger.Info("tlsHandshakeDone",
		slog.Any("err", err),
		slog.String("errClass", ec.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", now()),
	)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return tconn, nil
}
