package atomics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordLoadStoreExchange(t *testing.T) {
	var w Word
	w.Store(7)
	assert.Equal(t, uint64(7), w.Load())

	prev := w.Exchange(11)
	assert.Equal(t, uint64(7), prev)
	assert.Equal(t, uint64(11), w.Load())
}

func TestWordCompareExchange(t *testing.T) {
	var w Word
	w.Store(1)

	witnessed := w.CompareExchange(1, 2)
	require.Equal(t, uint64(1), witnessed, "witnessed value should be the pre-swap value")
	assert.Equal(t, uint64(2), w.Load())

	// A mismatched expected value must witness the current value and leave it untouched.
	witnessed = w.CompareExchange(99, 3)
	assert.Equal(t, uint64(2), witnessed)
	assert.Equal(t, uint64(2), w.Load())
}

func TestWordFetchOps(t *testing.T) {
	var w Word
	w.Store(10)

	assert.Equal(t, uint64(10), w.FetchAdd(5))
	assert.Equal(t, uint64(15), w.Load())

	assert.Equal(t, uint64(15), w.FetchSub(5))
	assert.Equal(t, uint64(10), w.Load())

	w.Store(0b1010)
	assert.Equal(t, uint64(0b1010), w.FetchOr(0b0101))
	assert.Equal(t, uint64(0b1111), w.Load())

	assert.Equal(t, uint64(0b1111), w.FetchXor(0b1111))
	assert.Equal(t, uint64(0), w.Load())
}

func TestPointerRoundTrip(t *testing.T) {
	type object struct{ x, y int }
	obj := &object{x: 1, y: 2}

	var p Pointer[object]
	assert.Nil(t, p.Load())

	witnessed := p.CompareExchange(nil, obj)
	assert.Nil(t, witnessed)
	assert.Same(t, obj, p.Load())

	prev := p.Exchange(nil)
	assert.Same(t, obj, prev)
	assert.Nil(t, p.Load())

	witnessed = p.CompareExchange(obj, obj)
	assert.Nil(t, witnessed, "exchange must fail since current value is nil, not obj")
	assert.Nil(t, p.Load())
}

func TestFlag(t *testing.T) {
	var f Flag
	assert.False(t, f.Load())

	assert.True(t, f.CompareExchange(false, true))
	assert.True(t, f.Load())

	assert.False(t, f.CompareExchange(false, true), "flag is already true")

	prev := f.Exchange(false)
	assert.True(t, prev)
	assert.False(t, f.Load())
}
