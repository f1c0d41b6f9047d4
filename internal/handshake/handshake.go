// Package handshake implements a tri-state negotiation primitive used by
// the scheduler's worker pause/resume protocol.
//
// Grounded on original_source/fabric/src/threading/handshake.{hpp,cpp}'s
// HandShake: a single atomic word starting at tick, flipped to tok by one
// side's compare-and-swap and back to tick by the other's. This version
// adds the closed state the specification calls for, so a channel can be
// retired once a worker is torn down instead of staying perpetually
// available for a tick/tok exchange nobody will answer. It also adds a
// condition variable over the same state, per spec.md §4.E: the requester
// waits on a condvar keyed to the handshake's state rather than spinning,
// and every winning transition notifies it (§4.G's "worker notifies the
// caller" on ack).
package handshake

import (
	"time"

	"github.com/alphaharrius/veil-fabric/internal/atomics"
	"github.com/alphaharrius/veil-fabric/internal/platform"
)

const (
	tick uint64 = 0
	tok  uint64 = 1
	// closed marks a handshake that will never again accept a tick or tok;
	// numbered after tick/tok to match the specification's {closed=2,
	// tick=0, tok=1} encoding.
	closed uint64 = 2
)

// Handshake is a tri-state word for a producer/consumer negotiation pair:
// one side calls Tick to request, the other calls Tok to acknowledge;
// either side can Close to retire the channel permanently. Every
// successful transition notifies whoever is blocked in WaitForTick/
// WaitForTok, so neither side needs to poll the state.
type Handshake struct {
	state atomics.Word

	mu  platform.Mutex
	cvp *platform.ConditionVariable
}

// New returns a Handshake open in the tick state.
func New() *Handshake {
	h := &Handshake{}
	h.state.Store(tick)
	h.cvp = platform.NewConditionVariable(&h.mu)
	return h
}

// Tick attempts the tick -> tok transition, returning whether it won the
// compare-and-swap. A winning transition notifies any WaitForTok waiter.
func (h *Handshake) Tick() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	won := h.state.CompareExchange(tick, tok) == tick
	if won {
		h.cvp.NotifyAll()
	}
	return won
}

// Tok attempts the tok -> tick transition, returning whether it won the
// compare-and-swap. A winning transition notifies any WaitForTick waiter.
func (h *Handshake) Tok() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	won := h.state.CompareExchange(tok, tick) == tok
	if won {
		h.cvp.NotifyAll()
	}
	return won
}

// Close attempts the tick -> closed transition, returning whether it won
// the compare-and-swap. A handshake can only be closed from the tick
// state, that is, once any pending tick has been answered by a tok.
func (h *Handshake) Close() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	won := h.state.CompareExchange(tick, closed) == tick
	if won {
		h.cvp.NotifyAll()
	}
	return won
}

// IsTick reports whether the handshake currently holds the tick state.
func (h *Handshake) IsTick() bool { return h.state.Load() == tick }

// IsTok reports whether the handshake currently holds the tok state.
func (h *Handshake) IsTok() bool { return h.state.Load() == tok }

// IsClosed reports whether the handshake has been retired.
func (h *Handshake) IsClosed() bool { return h.state.Load() == closed }

// WaitForTick blocks, via condition variable, until the handshake reads
// tick again (the other side's Tok call landed), or until timeout elapses.
// A timeout of zero or less waits indefinitely. Returns false if the
// deadline elapsed before tick was observed.
func (h *Handshake) WaitForTick(timeout time.Duration) bool {
	return h.waitFor(tick, timeout)
}

// WaitForTok blocks, via condition variable, until the handshake reads tok
// (the other side's Tick call landed), or until timeout elapses. A timeout
// of zero or less waits indefinitely. Returns false if the deadline
// elapsed before tok was observed.
func (h *Handshake) WaitForTok(timeout time.Duration) bool {
	return h.waitFor(tok, timeout)
}

// waitFor blocks until the handshake reads want, or closed (a closed
// handshake will never reach any other state again), or timeout elapses.
func (h *Handshake) waitFor(want uint64, timeout time.Duration) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if timeout <= 0 {
		for h.state.Load() != want && h.state.Load() != closed {
			h.cvp.Wait()
		}
		return h.state.Load() == want
	}

	deadline := time.Now().Add(timeout)
	for h.state.Load() != want && h.state.Load() != closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		h.cvp.WaitFor(remaining)
	}
	return h.state.Load() == want
}
