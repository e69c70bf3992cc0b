// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: filter/timing.c (original_source)'s _keep/_increase/
// _reduce/_multiply/_fixed/_realtime callbacks and their shared _init.
// The original tracks sleep targets as (tv_sec, tv_nsec) pairs and
// renormalizes them by hand after every add/subtract; time.Duration
// already does that arithmetic, so each mode collapses to a handful of
// Duration operations plus one Sleep call.

// Package timing paces packet replay against a capture's recorded
// timestamps, reproducing the inter-packet delay the original capture
// observed (or a deliberately modified version of it) in real time.
package timing

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects how Pace derives the delay between packets from their
// captured timestamps.
type Mode int

const (
	// ModeKeep replays packets at the same relative spacing as the
	// capture, anchored to the instant the first packet was paced.
	ModeKeep Mode = iota
	// ModeIncrease adds a fixed delay on top of each inter-packet gap.
	ModeIncrease
	// ModeReduce subtracts a fixed delay from each inter-packet gap
	// (floored at zero: a gap never goes negative).
	ModeReduce
	// ModeMultiply scales each inter-packet gap by a constant factor.
	ModeMultiply
	// ModeFixed ignores the capture's spacing and sleeps a constant
	// duration between every packet.
	ModeFixed
	// ModeRealtime checks the pacer's progress every RTBatch packets
	// against the wall clock, sleeping to catch up when replay is
	// running ahead of the capture's schedule and aborting with
	// ErrDrifted when it falls too far behind.
	ModeRealtime
)

func (m Mode) String() string {
	switch m {
	case ModeKeep:
		return "keep"
	case ModeIncrease:
		return "increase"
	case ModeReduce:
		return "reduce"
	case ModeMultiply:
		return "multiply"
	case ModeFixed:
		return "fixed"
	case ModeRealtime:
		return "realtime"
	default:
		return fmt.Sprintf("timing.Mode(%d)", int(m))
	}
}

// ErrDrifted is returned by Pace in ModeRealtime when real time has
// fallen behind the capture's simulated schedule by more than RTDrift.
var ErrDrifted = errors.New("timing: real time drifted behind simulated time beyond the configured limit")

// Config configures a Pacer. The zero value is ModeKeep with no
// modification to the capture's original spacing.
type Config struct {
	Mode Mode

	Inc   time.Duration // ModeIncrease
	Red   time.Duration // ModeReduce
	Fixed time.Duration // ModeFixed
	Mul   float64       // ModeMultiply

	RTBatch uint64        // ModeRealtime: packets between drift checks
	RTDrift time.Duration // ModeRealtime: abort threshold

	// Now returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	Now func() time.Time

	// Sleep pauses the calling goroutine for d.
	//
	// Set by [NewConfig] to [time.Sleep].
	Sleep func(d time.Duration)
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Mode:    ModeKeep,
		Mul:     1.0,
		RTBatch: 1,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Pacer paces a stream of packets against their captured timestamps.
// A Pacer is not safe for concurrent use: packets must be paced in
// capture order, by a single goroutine.
type Pacer struct {
	cfg *Config

	initialized bool
	firstPktTS  time.Time
	firstReal   time.Time
	lastPktTS   time.Time
	lastReal    time.Time
	diff        time.Duration // ModeKeep: real minus packet time, fixed at init
	counter     uint64
}

// New creates a Pacer. A nil cfg is replaced with [NewConfig]'s
// defaults.
func New(cfg *Config) *Pacer {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Pacer{cfg: cfg}
}

// Pace blocks until it is time to deliver the packet captured at
// pktTS, per the Pacer's configured Mode. The first call only seeds
// the pacer's clock anchors and never sleeps, matching the original's
// dedicated _init step.
func (p *Pacer) Pace(pktTS time.Time) error {
	if !p.initialized {
		p.init(pktTS)
		return nil
	}

	switch p.cfg.Mode {
	case ModeKeep:
		return p.keep(pktTS)
	case ModeIncrease:
		return p.stepBy(pktTS, p.cfg.Inc)
	case ModeReduce:
		return p.stepBy(pktTS, -p.cfg.Red)
	case ModeMultiply:
		return p.multiply(pktTS)
	case ModeFixed:
		return p.fixed(pktTS)
	case ModeRealtime:
		return p.realtime(pktTS)
	default:
		return fmt.Errorf("timing: invalid mode %v", p.cfg.Mode)
	}
}

func (p *Pacer) init(pktTS time.Time) {
	now := p.cfg.Now()
	p.firstReal = now
	p.lastReal = now
	p.firstPktTS = pktTS
	p.lastPktTS = pktTS
	p.diff = now.Sub(pktTS)
	p.counter = 0
	p.initialized = true
}

func (p *Pacer) sleepUntil(target time.Time) {
	if d := target.Sub(p.cfg.Now()); d > 0 {
		p.cfg.Sleep(d)
	}
}

// keep anchors every packet to the instant Pace first ran, preserving
// the capture's original relative spacing.
func (p *Pacer) keep(pktTS time.Time) error {
	p.sleepUntil(pktTS.Add(p.diff))
	p.lastPktTS = pktTS
	return nil
}

// stepBy adds mod to each inter-packet gap (negative mod reduces it,
// floored at zero so a gap never goes negative).
func (p *Pacer) stepBy(pktTS time.Time, mod time.Duration) error {
	delta := pktTS.Sub(p.lastPktTS) + mod
	if delta > 0 {
		p.sleepUntil(p.lastReal.Add(delta))
	}
	p.lastPktTS = pktTS
	p.lastReal = p.cfg.Now()
	return nil
}

func (p *Pacer) multiply(pktTS time.Time) error {
	delta := pktTS.Sub(p.lastPktTS)
	scaled := time.Duration(float64(delta) * p.cfg.Mul)
	if scaled > 0 {
		p.sleepUntil(p.lastReal.Add(scaled))
	}
	p.lastPktTS = pktTS
	p.lastReal = p.cfg.Now()
	return nil
}

func (p *Pacer) fixed(pktTS time.Time) error {
	if p.cfg.Fixed > 0 {
		p.sleepUntil(p.lastReal.Add(p.cfg.Fixed))
	}
	p.lastPktTS = pktTS
	p.lastReal = p.cfg.Now()
	return nil
}

// realtime checks progress every RTBatch packets: if the capture's
// simulated elapsed time is ahead of real elapsed time, it sleeps to
// catch up; if real time has fallen behind simulated time by more
// than RTDrift, it aborts with ErrDrifted.
func (p *Pacer) realtime(pktTS time.Time) error {
	p.counter++
	if p.counter < p.cfg.RTBatch {
		return nil
	}
	p.counter = 0

	now := p.cfg.Now()
	p.lastReal = now

	simulated := pktTS.Sub(p.firstPktTS)
	real := now.Sub(p.firstReal)

	if simulated > real {
		p.cfg.Sleep(simulated - real)
		return nil
	}

	drift := real - simulated
	if drift >= p.cfg.RTDrift {
		return fmt.Errorf("%w: simulated=%s real=%s drift=%s", ErrDrifted, simulated, real, drift)
	}
	return nil
}
