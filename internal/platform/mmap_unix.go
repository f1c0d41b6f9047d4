//go:build unix

package platform

import (
	"golang.org/x/sys/unix"
)

func queryPageSize() int {
	return unix.Getpagesize()
}

// Map requests size bytes of page-aligned host memory and returns a slice
// backed directly by the mapping. readwrite and commit both true is the
// only mode the fabric core currently exercises (heap management always
// wants committed read-write pages); the flags stay as parameters because
// the platform facade's signature is fixed by spec.md §4.A regardless of
// what a given build exercises.
func Map(size uint64, readwrite, commit bool) ([]byte, error) {
	prot := unix.PROT_NONE
	if readwrite {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}
	flags := unix.MAP_PRIVATE | unix.MAP_ANON
	if !commit {
		flags |= unix.MAP_NORESERVE
	}
	b, err := unix.Mmap(-1, 0, int(size), prot, flags)
	if err != nil {
		if err == unix.ENOMEM {
			return nil, ErrNoMem
		}
		return nil, err
	}
	return b, nil
}

// Free releases a mapping previously returned by Map.
func Free(b []byte) error {
	return unix.Munmap(b)
}
