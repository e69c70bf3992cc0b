// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: config.go (bassosimone/nop), generalized from a
// client-only Dialer/ErrClassifier/TimeNow bundle into the whole
// pipeline's shared configuration.

// Package config holds the engine's shared, pre-wired configuration.
package config

import (
	"context"
	"net"
	"time"

	"github.com/dnsreplay/engine/pkg/telemetry"
)

// Dialer abstracts [*net.Dialer] so callers can inject alternative
// dialers (tests, parrots, proxies) without the rest of the engine
// depending on anything but this narrow interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// RoutingMode selects how the client-routing filter (spec.md §4.G)
// assigns a newly seen source address to a receiver.
type RoutingMode int

const (
	// RoutingRoundRobin cycles through receivers in registration order.
	RoutingRoundRobin RoutingMode = iota
	// RoutingWeighted cycles through receivers proportionally to configured weights.
	RoutingWeighted
	// RoutingRandom picks a receiver uniformly at random.
	RoutingRandom
)

// TimingMode selects the inter-packet gap computation (spec.md §4.H).
type TimingMode int

const (
	TimingKeep TimingMode = iota
	TimingIncrease
	TimingReduce
	TimingMultiply
	TimingFixed
	TimingRealtime
)

// Transport selects the wire protocol the replay client (spec.md §4.I)
// uses to reach the resolver under test.
type Transport int

const (
	TransportUDP Transport = iota
	TransportTCP
	TransportTLS
	TransportH2
	// TransportUDPThenTCPFallback starts every request over UDP and
	// re-sends over TCP when the response carries TC=1 (spec.md §4.I
	// UDP mode, scenario S2).
	TransportUDPThenTCPFallback
)

// Config holds common configuration for engine components.
//
// Pass this to constructor functions to pre-wire dependencies. All
// fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used to establish outbound connections.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging and counters.
	ErrClassifier telemetry.ErrClassifier

	// TimeNow returns the current time. Overridable for deterministic tests.
	TimeNow func() time.Time

	// --- Ring channel / worker pool (spec.md §4.B, §4.C) ---

	// RingCapacity is the number of work slots in the worker-thread
	// filter (cmd/dnsreplay passes it to [pkg/workerpool.New]). No
	// power-of-two check is applied to it.
	RingCapacity int

	// Workers is the number of consumer threads in the worker-thread filter.
	Workers int

	// WritersBarrier enables cross-slot ordering preservation (spec.md §4.C).
	WritersBarrier bool

	// --- Client routing (spec.md §4.G) ---

	RoutingMode RoutingMode

	// --- Timing filter (spec.md §4.H) ---

	Timing          TimingMode
	TimingIncreaseNs int64
	TimingReduceNs   int64
	TimingMultiplier float64
	TimingFixedNs    int64
	RealtimeBatch    int
	RealtimeDriftNs  int64

	// --- Replay client (spec.md §4.I) ---

	Transport           Transport
	TimeoutMs           int
	HandshakeTimeoutMs  int
	IdleTimeoutMs       int
	StatsIntervalMs     int
	MaxClients          int
	MaxReuseClients     int
	DoHURL              string
	DoHMaxGETURILen     int
	DoHUseGET           bool
}

// NewConfig creates a [*Config] with sensible defaults, mirroring the
// teacher's [NewConfig] for the shared fields and filling in the rest
// from spec.md's documented defaults (HTTP/2 SETTINGS.MAX_CONCURRENT_STREAMS
// = 100, GET URI bound = 512 bytes, etc).
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: telemetry.DefaultErrClassifier,
		TimeNow:       time.Now,

		RingCapacity:   1024,
		Workers:        4,
		WritersBarrier: false,

		RoutingMode: RoutingRoundRobin,

		Timing:           TimingKeep,
		TimingMultiplier: 1.0,
		RealtimeBatch:    10,
		RealtimeDriftNs:  int64(2 * time.Second),

		Transport:          TransportUDP,
		TimeoutMs:          2000,
		HandshakeTimeoutMs: 3000,
		IdleTimeoutMs:      10000,
		StatsIntervalMs:    1000,
		MaxClients:         4096,
		MaxReuseClients:    64,
		DoHMaxGETURILen:    512,
	}
}
