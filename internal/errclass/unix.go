//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's errclass/unix.go errno table.

package errclass

import (
	"errors"

	"golang.org/x/sys/unix"
)

var unixErrnoClass = map[unix.Errno]string{
	unix.EADDRNOTAVAIL:   EADDRNOTAVAIL,
	unix.EADDRINUSE:      EADDRINUSE,
	unix.ECONNABORTED:    ECONNABORTED,
	unix.ECONNREFUSED:    ECONNREFUSED,
	unix.ECONNRESET:      ECONNRESET,
	unix.EHOSTUNREACH:    EHOSTUNREACH,
	unix.EINVAL:          EINVAL,
	unix.EINTR:           EINTR,
	unix.ENETDOWN:        ENETDOWN,
	unix.ENETUNREACH:     ENETUNREACH,
	unix.ENOBUFS:         ENOBUFS,
	unix.ENOTCONN:        ENOTCONN,
	unix.EPROTONOSUPPORT: EPROTONOSUPPORT,
	unix.ETIMEDOUT:       ETIMEDOUT,
}

func classifyErrno(err error) (string, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	class, ok := unixErrnoClass[errno]
	return class, ok
}
