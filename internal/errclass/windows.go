//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the teacher's errclass/windows.go errno table.

package errclass

import (
	"errors"

	"golang.org/x/sys/windows"
)

var windowsErrnoClass = map[windows.Errno]string{
	windows.WSAEADDRNOTAVAIL:   EADDRNOTAVAIL,
	windows.WSAEADDRINUSE:      EADDRINUSE,
	windows.WSAECONNABORTED:    ECONNABORTED,
	windows.WSAECONNREFUSED:    ECONNREFUSED,
	windows.WSAECONNRESET:      ECONNRESET,
	windows.WSAEHOSTUNREACH:    EHOSTUNREACH,
	windows.WSAEINVAL:          EINVAL,
	windows.WSAEINTR:           EINTR,
	windows.WSAENETDOWN:        ENETDOWN,
	windows.WSAENETUNREACH:     ENETUNREACH,
	windows.WSAENOBUFS:         ENOBUFS,
	windows.WSAENOTCONN:        ENOTCONN,
	windows.WSAEPROTONOSUPPORT: EPROTONOSUPPORT,
	windows.WSAETIMEDOUT:       ETIMEDOUT,
}

func classifyErrno(err error) (string, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	class, ok := windowsErrnoClass[errno]
	return class, ok
}
