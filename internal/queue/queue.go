// Package queue implements the ordered, fair FIFO mutex used throughout
// the fabric core to protect shared objects with minimal footprint on the
// protected object itself.
//
// Grounded on
// original_source/fabric/src/threading/ordered-queue.{hpp,cpp}: an
// OrderedQueue is a single atomic pointer to the most recently queued
// Waiter; a Waiter installs itself at the tail via compare-and-swap (or,
// failing a short spin, via an unconditional exchange) and blocks on its
// predecessor's condition variable until released. QueueClient pools
// Waiters in a typed arena per thread and fuses reentrant acquires of the
// same target into a single Waiter, exactly as the original's
// OrderedQueueClient does with its TArena<OrderedQueuee>.
package queue

import (
	"github.com/alphaharrius/veil-fabric/internal/arena"
	"github.com/alphaharrius/veil-fabric/internal/atomics"
	"github.com/alphaharrius/veil-fabric/internal/platform"
)

// status values for a Waiter.
type status uint8

const (
	idle status = iota
	waiting
	owning
)

// DefaultSpinRounds is how many compare-and-swap attempts a Waiter makes
// against an OrderedQueue's tail before falling back to a blocking wait.
const DefaultSpinRounds = 32

// OrderedQueue is a fair FIFO mutex whose entire state is one atomic
// pointer: the most recently installed Waiter, or nil if uncontended.
type OrderedQueue struct {
	tailWaiter atomics.Pointer[Waiter]
}

// New returns an uncontended OrderedQueue.
func New() *OrderedQueue { return &OrderedQueue{} }

// Waiter is a per-acquire slot, pooled by a QueueClient's typed arena. One
// Waiter is reused across every reentrant acquire of the same target by
// the same client. blockerMu guards exitSignaled/successorAck and is the
// mutex blockerCV is fused to; both are addressed through the Waiter's own
// pointer, which stays stable across reuse since an arena never relocates
// an element once allocated.
type Waiter struct {
	status          status
	reentranceCount uint32
	target          *OrderedQueue

	blockerMu platform.Mutex
	blockerCV *platform.ConditionVariable

	exitSignaled bool
	successorAck bool

	spinRounds int
}

func (w *Waiter) cv() *platform.ConditionVariable {
	if w.blockerCV == nil {
		w.blockerCV = platform.NewConditionVariable(&w.blockerMu)
	}
	return w.blockerCV
}

// tryQueue attempts to install w at the tail of target without blocking: a
// reentrant short-circuit if w already owns target, else a single
// compare-and-swap attempt followed by up to spinRounds further attempts,
// yielding between each. Returns whether w now owns target.
func (w *Waiter) tryQueue(target *OrderedQueue) bool {
	if w.status != idle && w.target == target {
		w.reentranceCount++
		return true
	}
	if target.tailWaiter.CompareExchange(nil, w) == nil {
		w.target = target
		return true
	}
	for i := 0; i < w.spinRounds; i++ {
		if target.tailWaiter.CompareExchange(nil, w) == nil {
			w.target = target
			return true
		}
		platform.Yield()
	}
	return false
}

// queue acquires target, blocking if necessary.
func (w *Waiter) queue(target *OrderedQueue) {
	if w.tryQueue(target) {
		w.status = owning
		return
	}

	w.target = target
	predecessor := target.tailWaiter.Exchange(w)
	if predecessor != nil {
		w.status = waiting
		predecessor.blockerMu.Lock()
		for !predecessor.exitSignaled {
			predecessor.cv().Wait()
		}
		predecessor.successorAck = true
		predecessor.cv().NotifyAll()
		predecessor.blockerMu.Unlock()
	}
	w.status = owning
}

// exit releases ownership of target. Returns false if w does not currently
// own target (a caller error: exiting before owning blocks on a successor
// that never arrives).
func (w *Waiter) exit(target *OrderedQueue) bool {
	if w.target != target {
		return false
	}
	if w.reentranceCount > 0 {
		w.reentranceCount--
		return true
	}

	if target.tailWaiter.CompareExchange(w, nil) != w {
		// A successor has installed itself behind w; hand off ownership.
		// exitSignaled is set and read only under blockerMu, and the
		// successor checks it before every wait, so there is no
		// lost-wakeup race even if the successor has not yet reached its
		// wait call when the notify below fires.
		w.blockerMu.Lock()
		w.exitSignaled = true
		w.cv().NotifyAll()
		for !w.successorAck {
			w.cv().Wait()
		}
		w.blockerMu.Unlock()
	}

	w.status = idle
	w.target = nil
	w.exitSignaled = false
	w.successorAck = false
	return true
}

// Client is the per-thread owner of a pool of Waiters, fusing reentrant
// acquires of the same target into a single Waiter. A Client must be used
// by exactly one goroutine at a time.
type Client struct {
	waiters     *arena.Typed[Waiter]
	nestedDepth uint32
	spinRounds  int
}

// NewClient returns a Client whose Waiter pool is backed by a typed arena
// sized regionCapacity elements per region, spinning DefaultSpinRounds
// times against a contended target before blocking.
func NewClient(regionCapacity int) *Client {
	return NewClientWithSpinRounds(regionCapacity, DefaultSpinRounds)
}

// NewClientWithSpinRounds is NewClient with an explicit CAS spin bound,
// wired to the queue_spin_rounds tunable by internal/runtime.
func NewClientWithSpinRounds(regionCapacity, spinRounds int) *Client {
	if spinRounds <= 0 {
		spinRounds = DefaultSpinRounds
	}
	return &Client{
		waiters:    arena.NewTyped[Waiter](regionCapacity),
		spinRounds: spinRounds,
	}
}

// Wait acquires target, blocking the calling goroutine until ownership is
// granted. Reentrant waits on a target already owned by this client fuse
// into the original Waiter instead of deadlocking.
func (c *Client) Wait(target *OrderedQueue) {
	var reentrance, available *Waiter

	it := c.waiters.Iterator()
	for {
		cur, ok := it.Next()
		if !ok {
			break
		}
		if cur.status == idle {
			if available == nil {
				available = cur
			}
		} else if cur.target == target {
			reentrance = cur
			break
		}
		if available != nil && c.nestedDepth == 0 {
			break
		}
	}

	if reentrance != nil {
		available = reentrance
	}
	if available == nil {
		available = c.waiters.Allocate()
		available.spinRounds = c.spinRounds
	}
	available.queue(target)
	c.nestedDepth++
}

// Exit releases this client's ownership of target, acquired by a prior
// Wait. A no-op if the client never waited on target.
func (c *Client) Exit(target *OrderedQueue) {
	if c.nestedDepth == 0 {
		return
	}
	it := c.waiters.Iterator()
	for {
		cur, ok := it.Next()
		if !ok {
			break
		}
		if cur.exit(target) {
			c.nestedDepth--
			return
		}
	}
}
