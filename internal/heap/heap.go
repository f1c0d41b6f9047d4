// Package heap implements the global mapped-byte accounting and the
// pluggable Algorithm contract that backs all dynamic, garbage-collectible
// storage in the fabric core. Grounded on
// original_source/fabric/src/memory/management.{hpp,cpp}: a Management
// owns one Algorithm, a page-rounded MAX_HEAP_SIZE, and an atomic
// mapped_bytes counter; the Algorithm vends per-thread Allocators and
// opaque ManagedPointers.
package heap

import (
	"fmt"

	"github.com/alphaharrius/veil-fabric/internal/atomics"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/telemetry"
	"github.com/alphaharrius/veil-fabric/internal/veilerr"
)

// MaxPointerSize is the hard ceiling on a single ManagedPointer, matching
// the original's "maximum memory size associated with a Pointer must not
// exceed 4GiB" requirement.
const MaxPointerSize = 4 << 30

// ManagedPointer is an opaque handle to a heap-resident value. It exposes
// only its byte size; the backing address is algorithm-private and is
// discovered exclusively through Allocator.Acquire/Release, so a moving
// collector remains free to relocate the payload between acquisitions.
type ManagedPointer struct {
	size    uint32
	payload any // algorithm-private state; opaque to callers
}

// NewManagedPointer constructs a pointer of the given size carrying an
// algorithm-private payload. size must not exceed MaxPointerSize.
func NewManagedPointer(size uint32, payload any) *ManagedPointer {
	if uint64(size) > MaxPointerSize {
		panic(fmt.Sprintf("heap: pointer size %d exceeds the 4GiB ceiling", size))
	}
	return &ManagedPointer{size: size, payload: payload}
}

// Size returns the pointer's byte size.
func (p *ManagedPointer) Size() uint32 { return p.size }

// Payload returns the algorithm-private state attached to this pointer.
// Only the installed Algorithm is expected to type-assert this value.
func (p *ManagedPointer) Payload() any { return p.payload }

// SetPayload replaces the algorithm-private state, used by algorithms that
// relocate a pointer's backing storage on acquire.
func (p *ManagedPointer) SetPayload(payload any) { p.payload = payload }

// Allocator is the per-thread handle a Service uses to interact with a
// heap. One Allocator is bound to exactly one Management for its lifetime.
type Allocator interface {
	// Allocate reserves size bytes and returns a new ManagedPointer.
	Allocate(size uint32) (*ManagedPointer, error)
	// Reserve marks ptr reusable without freeing its backing storage.
	Reserve(ptr *ManagedPointer)
	// Acquire grants access to ptr, exclusive or shared, and returns the
	// current backing address. The address is valid only until Release.
	Acquire(ptr *ManagedPointer, exclusive bool) ([]byte, error)
	// Release ends the access granted by the matching Acquire.
	Release(ptr *ManagedPointer)
}

// Algorithm is the plug-in contract a heap-management backend must
// implement. An Algorithm instance must not carry implicit mutable state;
// anything it needs to remember belongs in the AlgoState it installs via
// Initialize.
type Algorithm interface {
	// Name identifies the algorithm for diagnostics.
	Name() string
	// MaxSupportedHeapSize is the hard upper bound this algorithm
	// implements; Management.New rejects a request exceeding it.
	MaxSupportedHeapSize() uint64
	// Initialize installs whatever structures this algorithm needs into
	// the still-premature Management, returning an error if it can't.
	Initialize(m *Management, params any) error
	// Terminate tears down everything Initialize installed.
	Terminate(m *Management)
	// CreateAllocator returns a new Allocator bound to m.
	CreateAllocator(m *Management) (Allocator, error)
}

// Management owns one Algorithm, the page-rounded heap size cap, and the
// atomic count of bytes currently mapped from the host.
type Management struct {
	MaxHeapSize uint64

	algorithm   Algorithm
	algoState   any
	mappedBytes atomics.Word

	metrics *telemetry.Metrics
}

// SetMetrics attaches a Metrics instance that HeapMap reports mapped-byte
// and overflow counts to. A nil (the default) skips reporting entirely.
func (m *Management) SetMetrics(metrics *telemetry.Metrics) { m.metrics = metrics }

// Metrics returns whatever Metrics instance was attached via SetMetrics, or
// nil. Algorithms use this to report their own counters (e.g. successful
// allocations) without Management needing to know about algorithm-specific
// metric names.
func (m *Management) Metrics() *telemetry.Metrics { return m.metrics }

// New constructs a Management over algo, rejecting algo == nil
// (NoAlgorithm) and a requested heap size that exceeds what algo supports
// (InvalidHeapSize). maxHeapSize is rounded up to a whole number of host
// pages before the ceiling check, per the original's page-alignment step.
func New(algo Algorithm, maxHeapSize uint64, params any) (*Management, error) {
	if algo == nil {
		return nil, veilerr.New(veilerr.NoAlgorithm, "heap: initialize called with a nil algorithm")
	}
	rounded := platform.RoundUpToPage(maxHeapSize)
	if rounded > algo.MaxSupportedHeapSize() {
		return nil, veilerr.New(veilerr.InvalidHeapSize, fmt.Sprintf(
			"heap: requested cap %d exceeds %s's supported ceiling %d", rounded, algo.Name(), algo.MaxSupportedHeapSize()))
	}
	m := &Management{MaxHeapSize: rounded, algorithm: algo}
	if err := algo.Initialize(m, params); err != nil {
		return nil, veilerr.Wrap(veilerr.AlgorithmInit, err, "heap: algorithm initialization failed")
	}
	return m, nil
}

// AlgoState returns the algorithm-private structure installed by
// Initialize. Only the installed Algorithm and the Allocators it creates
// are expected to use this.
func (m *Management) AlgoState() any { return m.algoState }

// SetAlgoState installs the algorithm-private structure. Called once, by
// the Algorithm's Initialize.
func (m *Management) SetAlgoState(state any) { m.algoState = state }

// Terminate tears down the installed algorithm's structures. The
// Management must not be used afterward.
func (m *Management) Terminate() {
	m.algorithm.Terminate(m)
}

// CreateAllocator delegates to the installed algorithm.
func (m *Management) CreateAllocator() (Allocator, error) {
	return m.algorithm.CreateAllocator(m)
}

// MappedBytes returns the current count of bytes mapped from the host.
func (m *Management) MappedBytes() uint64 { return m.mappedBytes.Load() }

// HeapMap atomically adds size to the mapped-byte count; if the resulting
// total exceeds MaxHeapSize, it signals HeapOverflow and performs no OS
// mapping. The increment is not rolled back on rejection: a rejected map
// permanently consumes budget from subsequent maps, carried over from the
// original implementation's behavior rather than corrected, since nothing
// in the surrounding contract depends on the counter being exact after an
// overflow.
func (m *Management) HeapMap(size uint64) ([]byte, error) {
	total := m.mappedBytes.FetchAdd(size) + size
	if m.metrics != nil {
		m.metrics.MappedBytes.Set(float64(total))
	}
	if total > m.MaxHeapSize {
		if m.metrics != nil {
			m.metrics.HeapOverflowTotal.Inc()
		}
		return nil, veilerr.New(veilerr.HeapOverflow, fmt.Sprintf(
			"heap: mapping %d bytes would bring mapped_bytes to %d, over the %d cap", size, total, m.MaxHeapSize))
	}
	b, err := platform.Map(size, true, true)
	if err != nil {
		return nil, veilerr.Wrap(veilerr.HostOutOfMemory, err, "heap: host refused page mapping")
	}
	return b, nil
}
