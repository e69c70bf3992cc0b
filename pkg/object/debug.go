// SPDX-License-Identifier: GPL-3.0-or-later

package object

import "fmt"

// Debug enables runtime checks that are too costly to leave on in a
// production replay run (millions of objects per second). Set it to
// true in tests and in development builds.
var Debug = false

// assertOwned panics with a diagnostic when Debug is enabled and obj is
// a view, mirroring the DNSJIT convention of crashing loudly on API
// misuse rather than silently corrupting shared memory.
func assertOwned(kind Kind, owned bool) {
	if Debug && !owned {
		panic(fmt.Sprintf("object: Free called on a %s view, not an owned copy", kind))
	}
}
