package heap_test

import (
	"testing"

	"github.com/alphaharrius/veil-fabric/internal/heap"
	"github.com/alphaharrius/veil-fabric/internal/heap/bumpalgo"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/veilerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsNilAlgorithm(t *testing.T) {
	_, err := heap.New(nil, 1<<20, nil)
	require.Error(t, err)
	assert.True(t, veilerr.Is(err, veilerr.NoAlgorithm))
}

func TestNewRejectsOversizedHeap(t *testing.T) {
	_, err := heap.New(bumpalgo.New(), bumpalgo.MaxSupportedHeapSize+1, nil)
	require.Error(t, err)
	assert.True(t, veilerr.Is(err, veilerr.InvalidHeapSize))
}

func TestNewRoundsUpToPageSize(t *testing.T) {
	m, err := heap.New(bumpalgo.New(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(platform.PageSize()), m.MaxHeapSize)
}

// TestHeapCap exercises the S4 scenario: with max_heap_bytes == 4*page_size,
// four maps of page_size each succeed and bring mapped_bytes to exactly the
// cap; the fifth overflows.
func TestHeapCap(t *testing.T) {
	page := uint64(platform.PageSize())
	m, err := heap.New(bumpalgo.New(), 4*page, nil)
	require.NoError(t, err)
	require.Equal(t, 4*page, m.MaxHeapSize)

	for i := 0; i < 4; i++ {
		b, err := m.HeapMap(page)
		require.NoError(t, err)
		assert.Len(t, b, int(page))
	}
	assert.Equal(t, 4*page, m.MappedBytes())

	_, err = m.HeapMap(page)
	require.Error(t, err)
	assert.True(t, veilerr.Is(err, veilerr.HeapOverflow))
	// The rejected map's increment is not rolled back.
	assert.Equal(t, 5*page, m.MappedBytes())
}

func TestAllocatorRoundTrip(t *testing.T) {
	m, err := heap.New(bumpalgo.New(), 1<<20, nil)
	require.NoError(t, err)

	al, err := m.CreateAllocator()
	require.NoError(t, err)

	ptr, err := al.Allocate(128)
	require.NoError(t, err)
	assert.Equal(t, uint32(128), ptr.Size())

	buf, err := al.Acquire(ptr, true)
	require.NoError(t, err)
	buf[0] = 0x42
	al.Release(ptr)

	buf2, err := al.Acquire(ptr, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), buf2[0])
	al.Release(ptr)
}

func TestAllocatorReserveReusesSlab(t *testing.T) {
	m, err := heap.New(bumpalgo.New(), 1<<20, nil)
	require.NoError(t, err)
	al, err := m.CreateAllocator()
	require.NoError(t, err)

	ptr1, err := al.Allocate(64)
	require.NoError(t, err)
	al.Reserve(ptr1)

	before := m.MappedBytes()
	ptr2, err := al.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, before, m.MappedBytes(), "reused slab must not map new host pages")
	assert.NotNil(t, ptr2)
}
