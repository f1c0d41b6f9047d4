// Package arena implements the bump-pointer, chained-region allocators the
// rest of the fabric core uses for short-lived, owner-freed storage:
// workers and queue waiters live in Typed arenas, and each worker's
// scratch space in a byte Arena.
//
// Grounded on original_source/fabric/src/memory/global.cpp: a Region bumps
// a byte offset within a fixed-size pool; an Arena chains regions by
// prepending a fresh one whenever the head region runs out of room. Go
// slices already track capacity, so the region itself is just a []byte with
// a write cursor instead of hand-rolled pointer arithmetic (the idiom is
// the same one other_examples/98a7fb20_flier-goutil__pkg-arena-arena.go.go
// and other_examples/daa6be11_alex60217101990-opa__v1-storage-arena-arena.go.go
// both use for a bump arena written natively in Go).
package arena

import "fmt"

// DefaultPoolSize is the default byte size of a single region, matching
// the original's Arena::DEFAULT_POOL_SIZE.
const DefaultPoolSize = 4096

// region is one fixed-size, contiguously bump-allocated buffer, chained to
// the region that existed before it.
type region struct {
	pool []byte // len == poolSize, cap == poolSize; bump grows within it
	bump int
	next *region
}

func newRegion(poolSize int) *region {
	return &region{pool: make([]byte, poolSize)}
}

func (r *region) allocate(n int) (unsafeRef, bool) {
	if r.bump+n > len(r.pool) {
		return unsafeRef{}, false
	}
	off := r.bump
	r.bump += n
	return unsafeRef{r: r, off: off, n: n}, true
}

// unsafeRef names a byte range inside a region. It is the Go-safe stand-in
// for the original's raw pointer into a region's pool: the backing slice
// header keeps the region alive and bounds-checked, so no unsafe.Pointer
// is needed at this layer.
type unsafeRef struct {
	r   *region
	off int
	n   int
}

// Bytes returns the byte range this reference names.
func (u unsafeRef) Bytes() []byte { return u.r.pool[u.off : u.off+u.n] }

// Arena is a single-writer bump allocator over a chain of regions. An Arena
// must not be allocated from concurrently by more than one goroutine (per
// spec.md §5's "an Arena is single-writer" resource policy); all of this
// repo's arena owners (QueueClient, Worker arena, Scheduler's worker arena)
// are themselves single-threaded owners of their arena.
type Arena struct {
	poolSize int
	head     *region
}

// New returns an Arena whose regions are poolSize bytes each. poolSize must
// be large enough to hold the largest single allocation the caller will
// ever request from it; allocate panics otherwise, per spec.md §4.C
// ("An allocation larger than pool_size is a programmer error").
func New(poolSize int) *Arena {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	return &Arena{poolSize: poolSize, head: newRegion(poolSize)}
}

// Allocate returns n contiguous bytes, always within a single region. If
// the head region lacks room, a new region is prepended and the request is
// served from it.
func (a *Arena) Allocate(n int) []byte {
	if n > a.poolSize {
		panic(fmt.Sprintf("arena: allocation of %d bytes exceeds pool size %d", n, a.poolSize))
	}
	if ref, ok := a.head.allocate(n); ok {
		return ref.Bytes()
	}
	fresh := newRegion(a.poolSize)
	fresh.next = a.head
	a.head = fresh
	ref, ok := fresh.allocate(n)
	if !ok {
		// Unreachable: a fresh region always has room for n <= poolSize.
		panic("arena: fresh region could not satisfy allocation within its own pool size")
	}
	return ref.Bytes()
}

// FreeAll walks the region chain and drops every reference to it, allowing
// the garbage collector to reclaim the backing storage. After FreeAll, no
// address previously returned by Allocate remains reachable from the arena.
func (a *Arena) FreeAll() {
	a.head = nil
}

// Iterator returns a cursor over the arena's allocations, visiting regions
// newest-first (since new regions are prepended) and, within a region,
// oldest-allocation-first. Not restartable: construct a fresh Iterator to
// scan again. Callers needing stable chronological order must track it
// themselves (spec.md §4.C).
func (a *Arena) Iterator() *Iterator {
	return &Iterator{target: a.head}
}

// Iterator is a stateful forward cursor over an Arena's bytes.
type Iterator struct {
	target *region
	offset int
}

// Next yields the next step bytes in the iterator's traversal order,
// advancing to the following region once the current region's written
// range (its bump offset) is exhausted. Returns nil, false once the chain
// is exhausted.
func (it *Iterator) Next(step int) ([]byte, bool) {
	for it.target != nil {
		if it.offset+step <= it.target.bump {
			b := it.target.pool[it.offset : it.offset+step]
			it.offset += step
			return b, true
		}
		it.target = it.target.next
		it.offset = 0
	}
	return nil, false
}
