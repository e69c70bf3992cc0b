// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dnsreplay/engine/pkg/config"
)

// opts collects every flag dnsreplay accepts, bound through viper so
// values layer config file < environment < flag, per the teacher
// pack's config.go convention of one struct holding every dependency a
// run needs up front.
type opts struct {
	cfgFile string

	pcapPath        string
	resolver        string
	compareResolver string

	transport      string
	workers        int
	ringCapacity   int
	writersBarrier bool
	routingMode    string

	timingMode          string
	timingIncrease      time.Duration
	timingReduce        time.Duration
	timingMultiply      float64
	timingFixed         time.Duration
	timingRealtimeBatch uint64
	timingRealtimeDrift time.Duration

	timeout          time.Duration
	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	statsInterval    time.Duration
	maxClients       int
	maxReuseClients  int

	dohURL        string
	dohUseGET     bool
	dohMaxGETLen  int

	sinkKind string
	sinkOut  string

	metricsAddr string
	logLevel    string
}

var o = &opts{}

var rootCmd = &cobra.Command{
	Use:   "dnsreplay",
	Short: "Replay captured DNS traffic against a resolver under test",
	Long: `dnsreplay reads a pcap (optionally gzip/zstd/lz4/xz/bz2-compressed)
capture of DNS traffic, paces and fans it out across a pool of replay
clients, and resends every request over UDP, TCP, TLS or HTTP/2 to a
resolver under test, recording latency and RCODE statistics.

Example:
  dnsreplay --pcap capture.pcap.zst --resolver 192.0.2.53:53 --workers 8
`,
	RunE: runRoot,
}

// Execute runs the root command and returns the process exit code:
// 0 on normal completion, 1 on a fatal runtime error, matching
// spec.md §6's exit-code contract.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dnsreplay:", err)
		return 1
	}
	return 0
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&o.cfgFile, "config", "", "config file (overrides defaults; flags override the config file)")

	flags.StringVar(&o.pcapPath, "pcap", "", "path to the capture file to replay (required)")
	flags.StringVar(&o.resolver, "resolver", "", "resolver under test, host:port (required)")
	flags.StringVar(&o.compareResolver, "compare-resolver", "", "second resolver to replay the same capture against, for respdiff-style comparison")

	flags.StringVar(&o.transport, "transport", "udp", "wire transport: udp, tcp, tls, h2, udp-tcp-fallback")
	flags.IntVar(&o.workers, "workers", 4, "worker-thread filter consumer count")
	flags.IntVar(&o.ringCapacity, "ring-capacity", 1024, "worker-thread filter slot count (power of two)")
	flags.BoolVar(&o.writersBarrier, "writers-barrier", false, "preserve cross-slot delivery order in the worker-thread filter")
	flags.StringVar(&o.routingMode, "routing-mode", "round-robin", "client-routing assignment mode: round-robin, weighted, random")

	flags.StringVar(&o.timingMode, "timing-mode", "keep", "inter-packet pacing mode: keep, increase, reduce, multiply, fixed, realtime")
	flags.DurationVar(&o.timingIncrease, "timing-increase", 0, "ModeIncrease: amount added to every inter-packet gap")
	flags.DurationVar(&o.timingReduce, "timing-reduce", 0, "ModeReduce: amount subtracted from every inter-packet gap")
	flags.Float64Var(&o.timingMultiply, "timing-multiply", 1.0, "ModeMultiply: inter-packet gap scale factor")
	flags.DurationVar(&o.timingFixed, "timing-fixed", 0, "ModeFixed: constant inter-packet gap")
	flags.Uint64Var(&o.timingRealtimeBatch, "timing-realtime-batch", 10, "ModeRealtime: packets between drift checks")
	flags.DurationVar(&o.timingRealtimeDrift, "timing-realtime-drift", 2*time.Second, "ModeRealtime: abort threshold once real time falls behind")

	flags.DurationVar(&o.timeout, "timeout", 2*time.Second, "per-query request timeout")
	flags.DurationVar(&o.handshakeTimeout, "handshake-timeout", 3*time.Second, "TCP/TLS/H2 handshake timeout")
	flags.DurationVar(&o.idleTimeout, "idle-timeout", 10*time.Second, "stream connection idle timeout")
	flags.DurationVar(&o.statsInterval, "stats-interval", time.Second, "stats bucket rotation interval")
	flags.IntVar(&o.maxClients, "max-clients", 4096, "replay client slot count")
	flags.IntVar(&o.maxReuseClients, "max-reuse-clients", 64, "connection-reuse client slot count")

	flags.StringVar(&o.dohURL, "doh-url", "", "DoH URL (required for --transport h2)")
	flags.BoolVar(&o.dohUseGET, "doh-get", false, "use HTTP GET instead of POST for DoH")
	flags.IntVar(&o.dohMaxGETLen, "doh-max-get-uri-len", 512, "maximum DoH GET URI length; a GET query whose URI would exceed it is not sent")

	flags.StringVar(&o.sinkKind, "sink", "none", "terminal consumer: none, null, pcap, respdiff")
	flags.StringVar(&o.sinkOut, "sink-out", "", "sink output path (pcap file or respdiff sqlite database)")

	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flags.StringVar(&o.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.MarkFlagRequired("pcap")
	rootCmd.MarkFlagRequired("resolver")
}

// bindViper layers config file and environment values under the flags
// the user actually passed, using viper the way cobra/viper CLIs
// conventionally wire config precedence (flags always win once set).
func bindViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DNSREPLAY")
	v.AutomaticEnv()

	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", o.cfgFile, err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	v, err := bindViper(cmd)
	if err != nil {
		return err
	}
	applyViperOverrides(v)

	logger := newLogger(o.logLevel)
	logHostResources(logger)

	cfg, err := buildConfig(o)
	if err != nil {
		return err
	}

	return runPipeline(cfg, o, logger)
}

// newLogger builds the [*slog.Logger] every pipeline stage's
// [telemetry.SLogger] parameter accepts, per the teacher's
// DefaultSLogger/real-logger split (spec.md's ambient logging stack).
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
