// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !unix

package pcapsrc

import (
	"bufio"
	"fmt"
	"os"
)

// OpenMmap falls back to a buffered file read on platforms without a
// unix-style mmap syscall (see mmap_unix.go for the real mapping).
func OpenMmap(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapsrc: open %s: %w", path, err)
	}
	src, err := Open(bufio.NewReaderSize(f, 1<<20))
	if err != nil {
		f.Close()
		return nil, err
	}
	src.closer = f.Close
	return src, nil
}
