package arena

// typedRegion is one fixed-capacity, contiguously bump-allocated slice of T,
// chained to the region that existed before it. Unlike Arena's region (a
// plain []byte, which Go allocates as noscan memory), a []T slice is
// allocated by Go as scanned memory whenever T itself contains pointers —
// required here since queue.Waiter and scheduler.Worker both carry pointer
// fields that must stay visible to the garbage collector for as long as the
// arena is live (spec.md §9: waiters and workers are referred to by index or
// by non-owning references bounded by the arena's lifetime, never through
// reinterpreted noscan bytes).
type typedRegion[T any] struct {
	pool []T
	bump int
	next *typedRegion[T]
}

func newTypedRegion[T any](capacity int) *typedRegion[T] {
	return &typedRegion[T]{pool: make([]T, capacity)}
}

func (r *typedRegion[T]) allocate() (*T, bool) {
	if r.bump >= len(r.pool) {
		return nil, false
	}
	p := &r.pool[r.bump]
	r.bump++
	return p, true
}

// Typed is a generics-based bump allocator over a chain of scanned []T
// regions, for callers (QueueClient's waiter pool, Scheduler's worker pool)
// that always allocate the same element type. It mirrors Arena's bump/chain
// behavior one-for-one, but never reinterprets raw bytes into T.
type Typed[T any] struct {
	regionCapacity int
	head           *typedRegion[T]
}

// NewTyped returns a Typed arena whose regions hold regionCapacity elements
// of T each.
func NewTyped[T any](regionCapacity int) *Typed[T] {
	if regionCapacity <= 0 {
		regionCapacity = 64
	}
	return &Typed[T]{regionCapacity: regionCapacity, head: newTypedRegion[T](regionCapacity)}
}

// Allocate returns a pointer to a newly bump-allocated, zero-valued T.
func (t *Typed[T]) Allocate() *T {
	if p, ok := t.head.allocate(); ok {
		return p
	}
	fresh := newTypedRegion[T](t.regionCapacity)
	fresh.next = t.head
	t.head = fresh
	p, ok := fresh.allocate()
	if !ok {
		// Unreachable: a fresh region always has room for one element.
		panic("arena: fresh typed region could not satisfy allocation within its own capacity")
	}
	return p
}

// FreeAll releases every element this arena ever handed out.
func (t *Typed[T]) FreeAll() { t.head = nil }

// Iterator returns a cursor that yields every live *T in the arena, in the
// same newest-region-first order Arena.Iterator uses.
func (t *Typed[T]) Iterator() *TypedIterator[T] {
	return &TypedIterator[T]{target: t.head}
}

// TypedIterator is the typed counterpart of Iterator.
type TypedIterator[T any] struct {
	target *typedRegion[T]
	offset int
}

// Next returns the next element and true, or nil and false once exhausted.
func (ti *TypedIterator[T]) Next() (*T, bool) {
	for ti.target != nil {
		if ti.offset < ti.target.bump {
			p := &ti.target.pool[ti.offset]
			ti.offset++
			return p, true
		}
		ti.target = ti.target.next
		ti.offset = 0
	}
	return nil, false
}
