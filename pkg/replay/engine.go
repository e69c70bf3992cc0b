// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: spec.md §4.I's overall replay client description,
// wired to the client-routing filter (pkg/routing) as its Receiver and
// to pkg/stats for latency/RCODE accounting.

// Package replay implements the replay client: it receives routed DNS
// requests, delivers each to the client slot its routing id maps to,
// and replays it over UDP, TCP, TLS or HTTP/2 to the resolver under
// test, recording latency and RCODE into a stats series.
package replay

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"net"
	"time"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/routing"
	"github.com/dnsreplay/engine/pkg/stats"
	"github.com/dnsreplay/engine/pkg/telemetry"
)

// Engine ties the replay client's configuration, stats series and
// client-slot pool together and exposes a [routing.Receiver] entry
// point for the client-routing filter to deliver into.
type Engine struct {
	Config  *config.Config
	Series  *stats.Series
	Logger  telemetry.SLogger
	Address string // resolver under test, "host:port"

	// AnswerObserver, if set, is called once per query attempt with its
	// outcome: seq and query identify the captured message (see
	// [object.DNS.Seq]), answer is nil on timeout or transport failure.
	// Used to feed a respdiff-style sink comparing this engine's
	// answers against another engine replaying the same capture
	// against a different resolver.
	AnswerObserver func(seq uint64, query, answer []byte, elapsed time.Duration, timedOut bool)

	pool *Pool
	host string

	h2Authority string
	h2Path      string
}

// NewEngine creates an Engine replaying traffic to address. For H2
// mode, cfg.DoHURL must be a valid absolute URL; its host becomes the
// HTTP/2 :authority and its path the request path for every query.
func NewEngine(cfg *config.Config, address string, logger telemetry.SLogger) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = telemetry.DefaultSLogger()
	}
	e := &Engine{
		Config:  cfg,
		Logger:  logger,
		Address: address,
		Series:  stats.NewSeries(cfg.TimeoutMs, time.Duration(cfg.StatsIntervalMs)*time.Millisecond, cfg.TimeNow()),
	}

	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	e.host = host

	if cfg.Transport == config.TransportH2 {
		authority, path, err := doHPath(cfg.DoHURL)
		if err != nil {
			return nil, fmt.Errorf("replay: parsing doh_url %q: %w", cfg.DoHURL, err)
		}
		e.h2Authority = authority
		e.h2Path = path
	}

	e.pool = newPool(e)
	return e, nil
}

func (e *Engine) serverName() string { return e.host }

// Receiver returns a [routing.Receiver] that extracts the client id
// and DNS payload from a routed packet and delivers it to the
// matching client slot.
func (e *Engine) Receiver() routing.Receiver {
	return e.deliver
}

func (e *Engine) deliver(obj object.Object) {
	payload := dnsPayloadOf(obj)
	if payload == nil {
		return
	}
	e.Series.RecordRequest()
	e.pool.get(clientIDOf(obj)).Send(seqOf(obj), payload)
}

// seqOf recovers the ingest pipeline's sequence number for obj, or 0
// if obj never passed through DNS header parsing (e.g. a fallback
// generic payload).
func seqOf(obj object.Object) uint64 {
	if d, ok := object.Chain(obj, object.KindDNS).(*object.DNS); ok {
		return d.Seq
	}
	return 0
}

// Close stops every client slot's event loop and closes its connections.
func (e *Engine) Close() {
	e.pool.Close()
}

// clientIDOf recovers the client-routing filter's assigned id. For
// IPv6 packets the filter overwrites the destination address's
// leading four bytes with the id (spec.md §4.G); IPv4 packets are
// never rewritten, so their source address is hashed instead —
// unstable across process restarts but stable for the lifetime of one
// replay run, which is all the single-threaded-per-slot model needs.
func clientIDOf(obj object.Object) uint32 {
	if ip6, ok := object.Chain(obj, object.KindIP6).(*object.IP6); ok {
		return binary.BigEndian.Uint32(ip6.Dst[:4])
	}
	if ip, ok := object.Chain(obj, object.KindIP).(*object.IP); ok {
		h := fnv.New32a()
		h.Write(ip.Src[:])
		return h.Sum32()
	}
	return 0
}

// dnsPayloadOf returns the raw DNS message bytes carried by obj,
// preferring an already-parsed DNS view's backing buffer and falling
// back to a generic payload.
func dnsPayloadOf(obj object.Object) []byte {
	if d, ok := object.Chain(obj, object.KindDNS).(*object.DNS); ok {
		return d.Payload
	}
	if p, ok := object.Chain(obj, object.KindPayload).(*object.Payload); ok {
		return p.Bytes
	}
	return nil
}
