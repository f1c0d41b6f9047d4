package scheduler

import (
	"reflect"
	"time"

	"github.com/alphaharrius/veil-fabric/internal/arena"
	"github.com/alphaharrius/veil-fabric/internal/atomics"
	"github.com/alphaharrius/veil-fabric/internal/handshake"
	"github.com/alphaharrius/veil-fabric/internal/platform"
	"github.com/alphaharrius/veil-fabric/internal/queue"
)

// workerQueueClientCapacity sizes a Worker's own queue.Client waiter pool.
// A hosted service rarely holds more than a couple of OrderedQueues at
// once (see queue.Client's reentrance-fusing), so a small region is ample.
const workerQueueClientCapacity = 8

// Service is user-supplied work hosted on a Worker. Run is invoked on the
// worker's own OS thread; it may call the Worker's Sleep, CheckInterrupted,
// and CheckPause to cooperate with the scheduler's lifecycle control.
type Service interface {
	Name() string
	Run(w *Worker)
}

// UniqueID derives a 64-bit identifier for svc by mixing the current
// monotonic-clock reading with its address, mirroring the source's
// VMService::get_unique_identifier (epoch-millis XOR this). A collision is
// no more than theoretically possible, exactly as in the original.
func UniqueID(svc Service) uint64 {
	now := uint64(platform.MonotonicMillis())
	addr := uint64(reflect.ValueOf(svc).Pointer())
	return now ^ addr
}

// Worker hosts one Service at a time on its own OS thread. Grounded on
// original_source/fabric/src/threading/scheduler.{hpp,cpp}'s VMThread:
// idle/service_identifier/embedded thread/self-blocking condition
// variable/pause+resume handshakes/interrupted flag, all carried over
// one-for-one.
type Worker struct {
	idle      atomics.Flag
	serviceID uint64
	thread    *platform.Thread

	selfBlockMu  platform.Mutex
	selfBlockCVP *platform.ConditionVariable

	pauseHandshake  *handshake.Handshake
	resumeHandshake *handshake.Handshake

	interrupted atomics.Flag

	joinNegotiated bool

	// queueClient is this worker's own QueueClient, per spec: a hosted
	// service synchronizes on OrderedQueues through the worker that's
	// running it, never by constructing a client of its own.
	queueClient *queue.Client

	// scratch is this worker's own byte-oriented Arena, sized by the
	// arena_pool_bytes tunable, for a hosted service's short-lived
	// allocations (request scratch space, temporary buffers) distinct
	// from heap-managed, cross-call storage.
	scratch *arena.Arena
}

// initWorker (re-)initializes w in place for reuse, rather than
// constructing a fresh Worker value and copying it over the slot: Worker
// embeds a platform.Mutex, and copying a struct containing a mutex is a
// go vet copylocks violation (and, for a live worker's arena slot, would
// race the very handshakes a copy clobbers).
func initWorker(w *Worker, queueSpinRounds, arenaPoolBytes int) {
	w.pauseHandshake = handshake.New()
	w.resumeHandshake = handshake.New()
	w.queueClient = queue.NewClientWithSpinRounds(workerQueueClientCapacity, queueSpinRounds)
	w.scratch = arena.New(arenaPoolBytes)
	w.idle.Store(true)
}

// QueueWait acquires target on behalf of the service this worker is
// hosting, blocking until ownership is granted.
func (w *Worker) QueueWait(target *queue.OrderedQueue) { w.queueClient.Wait(target) }

// QueueExit releases target, acquired by a prior QueueWait.
func (w *Worker) QueueExit(target *queue.OrderedQueue) { w.queueClient.Exit(target) }

// Scratch returns this worker's byte-oriented Arena, for a hosted
// service's short-lived allocations.
func (w *Worker) Scratch() *arena.Arena { return w.scratch }

func (w *Worker) selfBlockCV() *platform.ConditionVariable {
	if w.selfBlockCVP == nil {
		w.selfBlockCVP = platform.NewConditionVariable(&w.selfBlockMu)
	}
	return w.selfBlockCVP
}

// IsIdle reports whether this worker currently hosts no service.
func (w *Worker) IsIdle() bool { return w.idle.Load() }

// host resets this worker's per-service state, binds service, and starts
// the worker's OS thread running it. When service.Run returns, the worker
// posts a thread-return task back to scheduler so the scheduler thread can
// join the OS thread and reclaim the worker.
func (w *Worker) host(scheduler *Scheduler, service Service) {
	w.interrupted.Store(false)
	w.joinNegotiated = false
	w.serviceID = UniqueID(service)

	w.thread = platform.Spawn(func() {
		service.Run(w)
		scheduler.postThreadReturn(w)
	})
}

// Sleep blocks the calling goroutine for up to milliseconds, waking early
// (and returning false) if Interrupt is called in the meantime. Must be
// called only from the goroutine this worker is hosting a service on:
// unlike the source, which asserts the OS thread identity explicitly, this
// is enforced structurally here since the *Worker is handed only to the
// goroutine spawned in host, never to any other.
func (w *Worker) Sleep(milliseconds uint32) bool {
	if w.CheckInterrupted() {
		return false
	}

	start := platform.MonotonicMillis()
	timeLeft := int64(milliseconds)
	for timeLeft > 0 {
		if w.CheckInterrupted() {
			return false
		}
		w.selfBlockMu.Lock()
		w.selfBlockCV().WaitFor(time.Duration(timeLeft) * time.Millisecond)
		w.selfBlockMu.Unlock()

		elapsed := platform.MonotonicMillis() - start
		if int64(milliseconds) > elapsed {
			timeLeft = int64(milliseconds) - elapsed
		} else {
			timeLeft = 0
		}
	}
	return true
}

// CheckInterrupted reports whether Interrupt has been called on this
// worker since its last host.
func (w *Worker) CheckInterrupted() bool { return w.interrupted.Load() }

// Interrupt cuts short a blocking Sleep and marks the worker interrupted
// for the remainder of its hosted service's run. Must not be called by the
// worker's own hosted service (it never self-interrupts in practice: a
// service cancels another service's worker, never its own).
func (w *Worker) Interrupt() {
	w.interrupted.Store(true)
	w.selfBlockMu.Lock()
	w.selfBlockCV().NotifyAll()
	w.selfBlockMu.Unlock()
}

// CheckPause is the cooperative checkpoint a hosted service must call
// periodically. If the scheduler has requested a pause, it acknowledges
// the pause handshake (notifying Scheduler.Pause's waiter), blocks on the
// resume handshake's condvar until the scheduler requests resume, then
// acknowledges the resume handshake before returning.
func (w *Worker) CheckPause() {
	if !w.pauseHandshake.IsTok() {
		return
	}
	w.pauseHandshake.Tok()

	w.resumeHandshake.WaitForTok(0)
	w.resumeHandshake.Tok()
}
