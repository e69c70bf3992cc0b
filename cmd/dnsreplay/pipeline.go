// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dnsreplay/engine/pkg/config"
	"github.com/dnsreplay/engine/pkg/dnswire"
	"github.com/dnsreplay/engine/pkg/layer"
	"github.com/dnsreplay/engine/pkg/object"
	"github.com/dnsreplay/engine/pkg/pcapsrc"
	"github.com/dnsreplay/engine/pkg/replay"
	"github.com/dnsreplay/engine/pkg/routing"
	"github.com/dnsreplay/engine/pkg/sinks"
	"github.com/dnsreplay/engine/pkg/stats"
	"github.com/dnsreplay/engine/pkg/timing"
	"github.com/dnsreplay/engine/pkg/workerpool"
)

// runPipeline composes every pipeline stage (spec.md §2 modules D
// through J) around the ingest loop: pcapsrc decodes the capture,
// pkg/layer and pkg/dnswire turn each record into a DNS object,
// pkg/timing paces delivery, pkg/workerpool fans out owned copies to
// pkg/routing's client-routing filter, which finally delivers into one
// or two pkg/replay engines and an optional pkg/sinks consumer.
func runPipeline(cfg *config.Config, o *opts, logger *slog.Logger) error {
	src, err := pcapsrc.OpenCompressed(o.pcapPath)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer src.Close()

	decoder := layer.New(logger)
	pacer := timing.New(buildTimingConfig(cfg))

	engine, err := replay.NewEngine(cfg, o.resolver, logger)
	if err != nil {
		return fmt.Errorf("building replay engine: %w", err)
	}
	defer engine.Close()

	var compareEngine *replay.Engine
	if o.compareResolver != "" {
		compareEngine, err = replay.NewEngine(cfg, o.compareResolver, logger)
		if err != nil {
			return fmt.Errorf("building comparison replay engine: %w", err)
		}
		defer compareEngine.Close()
	}

	respdiffSink, inlineSink, closeSink, err := openSink(o, src.Header(), engine, compareEngine, logger)
	if err != nil {
		return err
	}
	if closeSink != nil {
		defer closeSink()
	}

	if o.metricsAddr != "" {
		serveMetrics(o.metricsAddr, engine, logger)
	}

	receiver := func(obj object.Object) {
		engine.Receiver()(obj)
		if compareEngine != nil {
			compareEngine.Receiver()(obj)
		}
	}
	router := routing.New(&routing.Config{Mode: routingModeFromConfig(cfg.RoutingMode)}, []routing.Receiver{receiver})

	pool := workerpool.New[object.Object](cfg.RingCapacity, cfg.WritersBarrier)
	pool.Copy = object.CopyChain
	pool.Free = object.FreeChain
	for i := 0; i < cfg.Workers; i++ {
		pool.Add(func(obj object.Object) { router.Route(obj) })
	}
	pool.Start()

	start := cfg.TimeNow()
	var seq uint64
	runErr := src.Run(func(pkt *object.PCAP) {
		dnsObj, ok := toDNSObject(pkt, decoder)
		if !ok {
			return
		}
		seq++
		dnsObj.Seq = seq

		if inlineSink != nil {
			inlineSink(dnsObj)
		}

		if perr := pacer.Pace(pkt.Timestamp); perr != nil {
			logger.Info("pacingDrifted", "error", perr.Error())
		}
		pool.Put(dnsObj)
	})
	end := cfg.TimeNow()

	pool.Stop()

	if respdiffSink != nil {
		if cerr := respdiffSink.Commit(context.Background(), o.resolver, o.compareResolver, start, end); cerr != nil {
			logger.Info("respdiffCommitFailed", "error", cerr.Error())
		}
	}

	logger.Info("replayDone",
		"requests", engine.Series.Sum.Requests,
		"answers", engine.Series.Sum.Answers,
		"duration", end.Sub(start).String(),
	)

	if runErr != nil {
		return fmt.Errorf("ingest: %w", runErr)
	}
	return nil
}

// toDNSObject decodes pkt into a DNS view, stripping the DNS-over-TCP
// length prefix captured alongside TCP-carried messages (pkg/layer
// hands back the full TCP payload without reassembly, so this only
// handles the common case of one DNS message per captured segment).
func toDNSObject(pkt *object.PCAP, decoder *layer.Decoder) (*object.DNS, bool) {
	obj, deliver := decoder.Decode(pkt)
	if !deliver {
		return nil, false
	}
	payload, ok := object.Chain(obj, object.KindPayload).(*object.Payload)
	if !ok {
		return nil, false
	}

	raw := payload.Bytes
	if _, isTCP := object.Chain(obj, object.KindTCP).(*object.TCP); isTCP {
		if len(raw) < 2 {
			return nil, false
		}
		declared := binary.BigEndian.Uint16(raw[:2])
		if int(declared) != len(raw)-2 {
			return nil, false // truncated or multi-message segment, no reassembly
		}
		raw = raw[2:]
	}

	dnsObj := object.NewDNSView(payload, raw)
	if err := dnswire.ParseHeader(dnsObj); err != nil {
		return nil, false
	}
	return dnsObj, true
}

func routingModeFromConfig(m config.RoutingMode) routing.Mode {
	switch m {
	case config.RoutingWeighted:
		return routing.ModeWeighted
	case config.RoutingRandom:
		return routing.ModeRandom
	default:
		return routing.ModeRoundRobin
	}
}

func buildTimingConfig(cfg *config.Config) *timing.Config {
	tc := timing.NewConfig()
	switch cfg.Timing {
	case config.TimingIncrease:
		tc.Mode = timing.ModeIncrease
		tc.Inc = time.Duration(cfg.TimingIncreaseNs)
	case config.TimingReduce:
		tc.Mode = timing.ModeReduce
		tc.Red = time.Duration(cfg.TimingReduceNs)
	case config.TimingMultiply:
		tc.Mode = timing.ModeMultiply
		tc.Mul = cfg.TimingMultiplier
	case config.TimingFixed:
		tc.Mode = timing.ModeFixed
		tc.Fixed = time.Duration(cfg.TimingFixedNs)
	case config.TimingRealtime:
		tc.Mode = timing.ModeRealtime
		tc.RTBatch = uint64(cfg.RealtimeBatch)
		tc.RTDrift = time.Duration(cfg.RealtimeDriftNs)
	default:
		tc.Mode = timing.ModeKeep
	}
	return tc
}

// openSink wires the configured terminal consumer. For "null" and
// "pcap" it returns an inline function the ingest loop calls
// synchronously (before fan-out, while the capture record's memory is
// still valid) since neither consumer is documented safe for
// concurrent writers. For "respdiff" it instead wires each engine's
// AnswerObserver into a correlator pairing answers by sequence number,
// and inlineSink stays nil since respdiff never sees pre-routing
// objects directly.
func openSink(o *opts, hdr pcapsrc.GlobalHeader, engine, compareEngine *replay.Engine, logger *slog.Logger) (respdiffSink *sinks.RespdiffSink, inlineSink func(object.Object), closeFn func(), err error) {
	switch o.sinkKind {
	case "", "none":
		return nil, nil, nil, nil
	case "null":
		n := sinks.NewNull()
		return nil, n.Receiver(), nil, nil
	case "pcap":
		if o.sinkOut == "" {
			return nil, nil, nil, fmt.Errorf("--sink pcap requires --sink-out")
		}
		f, ferr := os.Create(o.sinkOut)
		if ferr != nil {
			return nil, nil, nil, fmt.Errorf("opening sink output: %w", ferr)
		}
		w := sinks.NewPCAPWriter(f, hdr.Linktype, hdr.Snaplen)
		return nil, w.Receiver(), func() {
			w.Flush()
			f.Close()
		}, nil
	case "respdiff":
		if o.sinkOut == "" {
			return nil, nil, nil, fmt.Errorf("--sink respdiff requires --sink-out")
		}
		if compareEngine == nil {
			return nil, nil, nil, fmt.Errorf("--sink respdiff requires --compare-resolver")
		}
		s, serr := sinks.OpenRespdiffSink(o.sinkOut)
		if serr != nil {
			return nil, nil, nil, fmt.Errorf("opening respdiff sink: %w", serr)
		}
		corr := newRespdiffCorrelator(s, logger)
		engine.AnswerObserver = corr.observeOriginal
		compareEngine.AnswerObserver = corr.observeReceiver
		return s, nil, func() { s.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown sink %q", o.sinkKind)
	}
}

// respdiffCorrelator pairs the two engines' answers to the same
// captured query, keyed by [object.DNS.Seq], and records the pair once
// both resolvers have answered (or timed out).
type respdiffCorrelator struct {
	mu      sync.Mutex
	pending map[uint64]*respdiffPending
	sink    *sinks.RespdiffSink
	logger  *slog.Logger
}

type respdiffPending struct {
	query       []byte
	orig, recv  []byte
	origElapsed time.Duration
	recvElapsed time.Duration
	haveOrig    bool
	haveRecv    bool
}

func newRespdiffCorrelator(sink *sinks.RespdiffSink, logger *slog.Logger) *respdiffCorrelator {
	return &respdiffCorrelator{pending: make(map[uint64]*respdiffPending), sink: sink, logger: logger}
}

func (c *respdiffCorrelator) observeOriginal(seq uint64, query, answer []byte, elapsed time.Duration, timedOut bool) {
	c.observe(seq, query, answer, elapsed, true)
}

func (c *respdiffCorrelator) observeReceiver(seq uint64, query, answer []byte, elapsed time.Duration, timedOut bool) {
	c.observe(seq, query, answer, elapsed, false)
}

func (c *respdiffCorrelator) observe(seq uint64, query, answer []byte, elapsed time.Duration, isOriginal bool) {
	c.mu.Lock()
	p := c.pending[seq]
	if p == nil {
		p = &respdiffPending{query: query}
		c.pending[seq] = p
	}
	if isOriginal {
		p.orig, p.origElapsed, p.haveOrig = answer, elapsed, true
	} else {
		p.recv, p.recvElapsed, p.haveRecv = answer, elapsed, true
	}
	ready := p.haveOrig && p.haveRecv
	if ready {
		delete(c.pending, seq)
	}
	c.mu.Unlock()

	if !ready {
		return
	}
	if err := c.sink.Record(context.Background(), p.query, p.orig, p.recv, p.origElapsed, p.recvElapsed); err != nil {
		c.logger.Info("respdiffRecordFailed", "seq", seq, "error", err.Error())
	}
}

// serveMetrics starts a Prometheus /metrics endpoint over the
// original engine's series in the background; the comparison engine
// (if any) only feeds the respdiff sink, not this exporter.
func serveMetrics(addr string, engine *replay.Engine, logger *slog.Logger) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(stats.NewCollector(engine.Series))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Info("metricsServerFailed", "error", err.Error())
		}
	}()
}
