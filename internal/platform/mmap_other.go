//go:build !unix

package platform

import "os"

func queryPageSize() int {
	return os.Getpagesize()
}

// Map falls back to a plain heap-backed slice on GOOS without a unix mmap
// syscall. There is no host page table to hand off to a library on this
// path, so this stays stdlib-only by necessity rather than omission (see
// DESIGN.md).
func Map(size uint64, readwrite, commit bool) ([]byte, error) {
	return make([]byte, size), nil
}

// Free is a no-op on the fallback path; the slice is reclaimed by the Go
// garbage collector once unreferenced.
func Free(b []byte) error { return nil }
