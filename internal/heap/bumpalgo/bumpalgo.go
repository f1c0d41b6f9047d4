// Package bumpalgo is the default heap.Algorithm: a slab-bucketed bump
// allocator with no compaction and no collector. It never relocates a
// pointer's backing storage, so Acquire returns a stable address valid
// until the matching Release.
//
// The slab tiers and their sizes are grounded on
// _examples/abiolaogu-MinIO/internal/cache/cache_engine_v3.go's
// SlabAllocator/SlabPool idiom (tiny/small/medium/large pools sized in
// power-of-two-ish steps, each a channel-backed free list of pre-sized
// buffers); here the tiers bucket ManagedPointer requests instead of cache
// entries, and the backing memory for a tier's slabs comes from
// heap.Management.HeapMap instead of a plain make([]byte, n).
package bumpalgo

import (
	"fmt"
	"sync"

	"github.com/alphaharrius/veil-fabric/internal/atomics"
	"github.com/alphaharrius/veil-fabric/internal/heap"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/veilerr"
)

// Slab tier sizes, carried over from the teacher's cache engine's slab
// constants.
const (
	SlabTiny   = 4 * 1024
	SlabSmall  = 64 * 1024
	SlabMedium = 512 * 1024
	SlabLarge  = 4 * 1024 * 1024

	// MaxSupportedHeapSize is this algorithm's hard ceiling: it keeps every
	// mapped slab resident for the management's lifetime, so a generous but
	// bounded ceiling (four times the 4GiB per-pointer cap) keeps
	// misconfiguration from silently mapping unbounded host memory.
	MaxSupportedHeapSize = 1 << 34 // 16 GiB
)

func tierFor(size uint32) int {
	switch {
	case size <= SlabTiny:
		return SlabTiny
	case size <= SlabSmall:
		return SlabSmall
	case size <= SlabMedium:
		return SlabMedium
	default:
		return SlabLarge
	}
}

// pointerState is the algorithm-private payload attached to every
// ManagedPointer this algorithm vends.
type pointerState struct {
	buf       []byte
	tier      int
	reserved  bool
	acquired  bool
	exclusive bool

	// lock is a per-pointer spinlock word standing in for the teacher's
	// per-shard sync.RWMutex, held only across an exclusive Acquire/
	// Release pair; a non-exclusive Acquire never touches it, matching
	// §4.D's "non-exclusive is advisory" contract.
	lock atomics.Flag
}

// state is the structure this algorithm installs into
// heap.Management.SetAlgoState. It is protected by mu because
// heap.Allocator handles vended by CreateAllocator may be used from
// multiple worker threads concurrently.
type state struct {
	mu       sync.Mutex
	mgmt     *heap.Management
	freeList map[int][]*pointerState // tier size -> reusable slabs
}

// Algorithm is the exported, stateless plug-in object; all of its mutable
// structures live in the state installed on the Management it initializes,
// matching the "no implicit attributes" contract in heap.Algorithm's doc.
type Algorithm struct{}

// New returns the default bump/slab algorithm.
func New() *Algorithm { return &Algorithm{} }

func (*Algorithm) Name() string { return "bumpalgo" }

func (*Algorithm) MaxSupportedHeapSize() uint64 { return MaxSupportedHeapSize }

func (a *Algorithm) Initialize(m *heap.Management, params any) error {
	m.SetAlgoState(&state{mgmt: m, freeList: make(map[int][]*pointerState)})
	return nil
}

func (a *Algorithm) Terminate(m *heap.Management) {
	s := m.AlgoState().(*state)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freeList = nil
}

func (a *Algorithm) CreateAllocator(m *heap.Management) (heap.Allocator, error) {
	s := m.AlgoState().(*state)
	return &allocator{s: s}, nil
}

// allocator is the per-thread handle this algorithm vends. Its operations
// all funnel through the shared state's mutex, since slabs are pooled
// across every allocator bound to the same management.
type allocator struct {
	s *state
}

func (al *allocator) Allocate(size uint32) (*heap.ManagedPointer, error) {
	if uint64(size) > heap.MaxPointerSize {
		return nil, veilerr.New(veilerr.HeapOverflow, fmt.Sprintf("bumpalgo: %d bytes exceeds the per-pointer cap", size))
	}
	tier := tierFor(size)

	al.s.mu.Lock()
	if free := al.s.freeList[tier]; len(free) > 0 {
		ps := free[len(free)-1]
		al.s.freeList[tier] = free[:len(free)-1]
		al.s.mu.Unlock()
		ps.reserved = false
		if m := al.s.mgmt.Metrics(); m != nil {
			m.AllocatorAllocTotal.Inc()
		}
		return heap.NewManagedPointer(size, ps), nil
	}
	al.s.mu.Unlock()

	buf, err := al.s.mgmt.HeapMap(uint64(tier))
	if err != nil {
		return nil, err
	}
	ps := &pointerState{buf: buf, tier: tier}
	if m := al.s.mgmt.Metrics(); m != nil {
		m.AllocatorAllocTotal.Inc()
	}
	return heap.NewManagedPointer(size, ps), nil
}

func (al *allocator) Reserve(ptr *heap.ManagedPointer) {
	ps := ptr.Payload().(*pointerState)
	al.s.mu.Lock()
	defer al.s.mu.Unlock()
	ps.reserved = true
	al.s.freeList[ps.tier] = append(al.s.freeList[ps.tier], ps)
}

// Acquire grants access to ptr. An exclusive acquire spins on ps.lock
// until it wins it, excluding every other exclusive acquire until the
// matching Release; a non-exclusive acquire never touches the lock at all,
// per §4.D's advisory contract, so it is not excluded by an exclusive one.
func (al *allocator) Acquire(ptr *heap.ManagedPointer, exclusive bool) ([]byte, error) {
	ps := ptr.Payload().(*pointerState)

	if exclusive {
		for !ps.lock.CompareExchange(false, true) {
			platform.Yield()
		}
	}

	al.s.mu.Lock()
	ps.acquired = true
	ps.exclusive = exclusive
	al.s.mu.Unlock()

	return ps.buf[:ptr.Size()], nil
}

func (al *allocator) Release(ptr *heap.ManagedPointer) {
	ps := ptr.Payload().(*pointerState)

	al.s.mu.Lock()
	wasExclusive := ps.exclusive
	ps.acquired = false
	ps.exclusive = false
	al.s.mu.Unlock()

	if wasExclusive {
		ps.lock.Store(false)
	}
}
