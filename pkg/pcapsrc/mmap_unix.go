// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: input/mmpcap.c (original_source), which mmaps the whole
// capture file and parses records directly out of the mapping instead
// of copying each one through a read() buffer.

//go:build unix

package pcapsrc

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// OpenMmap maps path into memory and returns a Source reading from the
// mapping instead of issuing a read() syscall per record. Close must be
// called to release the mapping.
func OpenMmap(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapsrc: open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapsrc: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("pcapsrc: %s is empty", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapsrc: mmap %s: %w", path, err)
	}

	src, err := Open(bytes.NewReader(data))
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}
	src.closer = func() error {
		err := unix.Munmap(data)
		f.Close()
		return err
	}
	return src, nil
}
