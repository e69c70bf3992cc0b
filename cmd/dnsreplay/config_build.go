// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/viper"

	"github.com/dnsreplay/engine/pkg/config"
)

// applyViperOverrides re-reads every bound flag through v, so a value
// set only in a config file or environment variable (and never passed
// on the command line) still reaches opts; viper.BindPFlags already
// gives the command-line flag priority when the user sets it.
func applyViperOverrides(v *viper.Viper) {
	o.pcapPath = v.GetString("pcap")
	o.resolver = v.GetString("resolver")
	o.compareResolver = v.GetString("compare-resolver")

	o.transport = v.GetString("transport")
	o.workers = v.GetInt("workers")
	o.ringCapacity = v.GetInt("ring-capacity")
	o.writersBarrier = v.GetBool("writers-barrier")
	o.routingMode = v.GetString("routing-mode")

	o.timingMode = v.GetString("timing-mode")
	o.timingIncrease = v.GetDuration("timing-increase")
	o.timingReduce = v.GetDuration("timing-reduce")
	o.timingMultiply = v.GetFloat64("timing-multiply")
	o.timingFixed = v.GetDuration("timing-fixed")
	o.timingRealtimeBatch = v.GetUint64("timing-realtime-batch")
	o.timingRealtimeDrift = v.GetDuration("timing-realtime-drift")

	o.timeout = v.GetDuration("timeout")
	o.handshakeTimeout = v.GetDuration("handshake-timeout")
	o.idleTimeout = v.GetDuration("idle-timeout")
	o.statsInterval = v.GetDuration("stats-interval")
	o.maxClients = v.GetInt("max-clients")
	o.maxReuseClients = v.GetInt("max-reuse-clients")

	o.dohURL = v.GetString("doh-url")
	o.dohUseGET = v.GetBool("doh-get")
	o.dohMaxGETLen = v.GetInt("doh-max-get-uri-len")

	o.sinkKind = v.GetString("sink")
	o.sinkOut = v.GetString("sink-out")

	o.metricsAddr = v.GetString("metrics-addr")
	o.logLevel = v.GetString("log-level")
}

// buildConfig translates the flag/config-file-resolved opts into the
// shared [*config.Config] every pipeline stage accepts.
func buildConfig(o *opts) (*config.Config, error) {
	cfg := config.NewConfig()

	transport, err := transportFromString(o.transport)
	if err != nil {
		return nil, err
	}
	cfg.Transport = transport
	if transport == config.TransportH2 && o.dohURL == "" {
		return nil, fmt.Errorf("--transport h2 requires --doh-url")
	}

	cfg.RingCapacity = o.ringCapacity
	cfg.Workers = o.workers
	cfg.WritersBarrier = o.writersBarrier
	cfg.RoutingMode = routingModeFromFlag(o.routingMode)

	cfg.Timing = timingModeFromFlag(o.timingMode)
	cfg.TimingIncreaseNs = int64(o.timingIncrease)
	cfg.TimingReduceNs = int64(o.timingReduce)
	cfg.TimingMultiplier = o.timingMultiply
	cfg.TimingFixedNs = int64(o.timingFixed)
	cfg.RealtimeBatch = int(o.timingRealtimeBatch)
	cfg.RealtimeDriftNs = int64(o.timingRealtimeDrift)

	cfg.TimeoutMs = int(o.timeout / time.Millisecond)
	cfg.HandshakeTimeoutMs = int(o.handshakeTimeout / time.Millisecond)
	cfg.IdleTimeoutMs = int(o.idleTimeout / time.Millisecond)
	cfg.StatsIntervalMs = int(o.statsInterval / time.Millisecond)
	cfg.MaxClients = o.maxClients
	cfg.MaxReuseClients = o.maxReuseClients

	cfg.DoHURL = o.dohURL
	cfg.DoHUseGET = o.dohUseGET
	cfg.DoHMaxGETURILen = o.dohMaxGETLen

	return cfg, nil
}

func transportFromString(s string) (config.Transport, error) {
	switch s {
	case "udp":
		return config.TransportUDP, nil
	case "tcp":
		return config.TransportTCP, nil
	case "tls":
		return config.TransportTLS, nil
	case "h2":
		return config.TransportH2, nil
	case "udp-tcp-fallback":
		return config.TransportUDPThenTCPFallback, nil
	default:
		return 0, fmt.Errorf("unknown --transport %q", s)
	}
}

func routingModeFromFlag(s string) config.RoutingMode {
	switch s {
	case "weighted":
		return config.RoutingWeighted
	case "random":
		return config.RoutingRandom
	default:
		return config.RoutingRoundRobin
	}
}

func timingModeFromFlag(s string) config.TimingMode {
	switch s {
	case "increase":
		return config.TimingIncrease
	case "reduce":
		return config.TimingReduce
	case "multiply":
		return config.TimingMultiply
	case "fixed":
		return config.TimingFixed
	case "realtime":
		return config.TimingRealtime
	default:
		return config.TimingKeep
	}
}

// logHostResources logs a one-time snapshot of host CPU/memory at
// startup, informational only — it never gates correctness or
// replay behavior.
func logHostResources(logger *slog.Logger) {
	attrs := []any{"numCPU", runtime.NumCPU()}
	if pct, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(pct) > 0 {
		attrs = append(attrs, "cpuPercent", pct[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		attrs = append(attrs, "memTotalMB", float64(vm.Total)/1024/1024, "memUsedPercent", vm.UsedPercent)
	}
	logger.Info("hostResources", attrs...)
}
