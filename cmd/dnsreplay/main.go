// SPDX-License-Identifier: GPL-3.0-or-later

// Command dnsreplay reads a packet capture of DNS traffic and replays
// every captured request against a resolver under test, reporting
// latency and RCODE statistics and optionally recording paired
// answers for offline comparison.
package main

import "os"

func main() {
	os.Exit(Execute())
}
